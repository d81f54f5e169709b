package bluesky

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/utils/text"
)

func TestFacets(t *testing.T) {
	msg := "Delay #Northern see https://example.com/a#frag\n"
	got := Facets(text.Annotate(msg))

	want := []Facet{
		{Index: ByteSlice{20, 46}, Features: []Feature{{Type: TypeLink, URI: "https://example.com/a#frag"}}},
		{Index: ByteSlice{6, 15}, Features: []Feature{{Type: TypeTag, Tag: "Northern"}}},
		{Index: ByteSlice{41, 46}, Features: []Feature{{Type: TypeTag, Tag: "frag"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Facets mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, Facets(nil))
}

func TestNewPost_Embed(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	thumb := &Blob{Type: TypeBlob, Ref: BlobRef{Link: "bafk"}, MimeType: "image/jpeg", Size: 10}
	card := &entity.LinkCard{URI: "https://www.nationalrail.co.uk/x/", Title: "National Rail Disruptions", Description: "raw"}

	p := NewPost("hi\n", nil, card, thumb, created)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"$type":"app.bsky.feed.post",
		"text":"hi\n",
		"createdAt":"2025-03-14T09:00:00Z",
		"langs":["en"],
		"embed":{"$type":"app.bsky.embed.external","external":{
			"uri":"https://www.nationalrail.co.uk/x/",
			"title":"National Rail Disruptions",
			"description":"raw",
			"thumb":{"$type":"blob","ref":{"$link":"bafk"},"mimeType":"image/jpeg","size":10}}}
	}`, string(raw))
}

func TestNewPost_NoCard(t *testing.T) {
	p := NewPost("hi\n", nil, nil, nil, time.Now())
	assert.Nil(t, p.Embed)
	assert.Empty(t, p.Facets)
}
