package text_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/utils/text"
)

func TestFindHashtags_ByteOffsets(t *testing.T) {
	msg := "Delay #Northern between #London and #Leeds\nhttps://example.com/x"

	want := []entity.Span{
		{Text: "#Northern", Kind: entity.SpanHashtag, ByteStart: 6, ByteEnd: 15},
		{Text: "#London", Kind: entity.SpanHashtag, ByteStart: 24, ByteEnd: 31},
		{Text: "#Leeds", Kind: entity.SpanHashtag, ByteStart: 36, ByteEnd: 42},
	}
	if diff := cmp.Diff(want, text.FindHashtags(msg)); diff != "" {
		t.Fatalf("FindHashtags mismatch (-want +got):\n%s", diff)
	}

	wantURL := []entity.Span{
		{Text: "https://example.com/x", Kind: entity.SpanURL, ByteStart: 43, ByteEnd: 64},
	}
	if diff := cmp.Diff(wantURL, text.FindURLs(msg)); diff != "" {
		t.Fatalf("FindURLs mismatch (-want +got):\n%s", diff)
	}
}

func TestFindHashtags_MultiByteShiftsOffsets(t *testing.T) {
	// "é" is two bytes and "–" is three, so the hashtag starts at byte 10 but rune 7.
	msg := "é – ab #Tag"

	got := text.FindHashtags(msg)
	want := []entity.Span{{Text: "#Tag", Kind: entity.SpanHashtag, ByteStart: 10, ByteEnd: 14}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FindHashtags mismatch (-want +got):\n%s", diff)
	}
	if msg[got[0].ByteStart:got[0].ByteEnd] != "#Tag" {
		t.Fatalf("span does not address the hashtag bytes: %q", msg[got[0].ByteStart:got[0].ByteEnd])
	}
}

func TestFindHashtags_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want []string
	}{
		{name: "lone hash", msg: "# not a tag", want: nil},
		{name: "trailing hash", msg: "end#", want: nil},
		{name: "double hash", msg: "##London", want: []string{"#London"}},
		{name: "stops at punctuation", msg: "#York, #Hull.", want: []string{"#York", "#Hull"}},
		{name: "underscore and digits", msg: "#line_2 #A1", want: []string{"#line_2", "#A1"}},
		{name: "non ascii stops tag", msg: "#Café", want: []string{"#Caf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range text.FindHashtags(tt.msg) {
				got = append(got, s.Text)
				if tt.msg[s.ByteStart:s.ByteEnd] != s.Text {
					t.Errorf("span [%d,%d) does not match text %q", s.ByteStart, s.ByteEnd, s.Text)
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindURLs_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want []string
	}{
		{name: "http", msg: "see http://a.b/c now", want: []string{"http://a.b/c"}},
		{name: "end of string", msg: "https://a.b", want: []string{"https://a.b"}},
		{name: "tab and CR", msg: "https://a\thttps://b\r", want: []string{"https://a", "https://b"}},
		{name: "scheme only", msg: "https:// x", want: []string{"https://"}},
		{name: "no scheme", msg: "www.example.com", want: nil},
		{name: "ftp ignored", msg: "ftp://x", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range text.FindURLs(tt.msg) {
				got = append(got, s.Text)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnnotate_HashtagInsideURLReportedTwice(t *testing.T) {
	msg := "#Leeds https://x.uk/p#Top\n"

	got := text.Annotate(msg)
	want := []entity.Span{
		{Text: "https://x.uk/p#Top", Kind: entity.SpanURL, ByteStart: 7, ByteEnd: 25},
		{Text: "#Leeds", Kind: entity.SpanHashtag, ByteStart: 0, ByteEnd: 6},
		{Text: "#Top", Kind: entity.SpanHashtag, ByteStart: 21, ByteEnd: 25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Annotate mismatch (-want +got):\n%s", diff)
	}
}
