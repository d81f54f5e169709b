package bluesky

import (
	"strings"
	"time"

	"natrail-bot/internal/domain/entity"
)

// Lexicon identifiers used by this client.
const (
	TypePost     = "app.bsky.feed.post"
	TypeExternal = "app.bsky.embed.external"
	TypeLink     = "app.bsky.richtext.facet#link"
	TypeTag      = "app.bsky.richtext.facet#tag"
	TypeBlob     = "blob"
)

// Post is an app.bsky.feed.post record.
type Post struct {
	Type      string         `json:"$type"`
	Text      string         `json:"text"`
	CreatedAt string         `json:"createdAt"`
	Langs     []string       `json:"langs,omitempty"`
	Facets    []Facet        `json:"facets,omitempty"`
	Embed     *ExternalEmbed `json:"embed,omitempty"`
}

// Facet annotates a byte range of the post text.
type Facet struct {
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

// ByteSlice is a half-open UTF-8 byte range.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Feature is a link or tag facet feature.
type Feature struct {
	Type string `json:"$type"`
	URI  string `json:"uri,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// ExternalEmbed is the link preview card.
type ExternalEmbed struct {
	Type     string   `json:"$type"`
	External External `json:"external"`
}

// External holds the card contents.
type External struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       *Blob  `json:"thumb,omitempty"`
}

// Blob references uploaded binary data.
type Blob struct {
	Type     string  `json:"$type"`
	Ref      BlobRef `json:"ref"`
	MimeType string  `json:"mimeType"`
	Size     int64   `json:"size"`
}

// BlobRef is the content link of a blob.
type BlobRef struct {
	Link string `json:"$link"`
}

// Facets converts annotation spans to facets, keeping their order.
// Tag features carry the hashtag without its leading '#'.
func Facets(spans []entity.Span) []Facet {
	if len(spans) == 0 {
		return nil
	}
	out := make([]Facet, 0, len(spans))
	for _, s := range spans {
		f := Facet{Index: ByteSlice{ByteStart: s.ByteStart, ByteEnd: s.ByteEnd}}
		switch s.Kind {
		case entity.SpanURL:
			f.Features = []Feature{{Type: TypeLink, URI: s.Text}}
		case entity.SpanHashtag:
			f.Features = []Feature{{Type: TypeTag, Tag: strings.TrimPrefix(s.Text, "#")}}
		default:
			continue
		}
		out = append(out, f)
	}
	return out
}

// NewPost builds a post record. card may be nil, in which case no embed is
// attached; thumb may be nil for a card without an image.
func NewPost(text string, spans []entity.Span, card *entity.LinkCard, thumb *Blob, createdAt time.Time) *Post {
	p := &Post{
		Type:      TypePost,
		Text:      text,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		Langs:     []string{"en"},
		Facets:    Facets(spans),
	}
	if card != nil {
		p.Embed = &ExternalEmbed{
			Type: TypeExternal,
			External: External{
				URI:         card.URI,
				Title:       card.Title,
				Description: card.Description,
				Thumb:       thumb,
			},
		}
	}
	return p
}
