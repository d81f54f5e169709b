package text

import (
	"strings"

	"natrail-bot/internal/domain/entity"
)

// Annotate returns the URL spans of message followed by its hashtag spans.
// The two scans are independent: a '#' inside a URL fragment is reported
// both as part of the URL span and as a hashtag span.
func Annotate(message string) []entity.Span {
	urls := FindURLs(message)
	tags := FindHashtags(message)
	spans := make([]entity.Span, 0, len(urls)+len(tags))
	spans = append(spans, urls...)
	return append(spans, tags...)
}

// FindHashtags scans for '#' followed by one or more ASCII word bytes
// ([A-Za-z0-9_]). Offsets are byte offsets into message.
func FindHashtags(message string) []entity.Span {
	var spans []entity.Span
	for i := 0; i < len(message); {
		if message[i] != '#' || i+1 >= len(message) || !isWordByte(message[i+1]) {
			i++
			continue
		}
		j := i + 1
		for j < len(message) && isWordByte(message[j]) {
			j++
		}
		spans = append(spans, entity.Span{
			Text:      message[i:j],
			Kind:      entity.SpanHashtag,
			ByteStart: i,
			ByteEnd:   j,
		})
		i = j
	}
	return spans
}

// FindURLs scans for runs starting with http:// or https:// and ending at
// space, tab, CR, LF or the end of message.
func FindURLs(message string) []entity.Span {
	var spans []entity.Span
	for i := 0; i < len(message); {
		rest := message[i:]
		var scheme int
		switch {
		case strings.HasPrefix(rest, "https://"):
			scheme = len("https://")
		case strings.HasPrefix(rest, "http://"):
			scheme = len("http://")
		default:
			i++
			continue
		}
		j := i + scheme
		for j < len(message) && !isURLTerminator(message[j]) {
			j++
		}
		spans = append(spans, entity.Span{
			Text:      message[i:j],
			Kind:      entity.SpanURL,
			ByteStart: i,
			ByteEnd:   j,
		})
		i = j
	}
	return spans
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z') ||
		('0' <= b && b <= '9')
}

func isURLTerminator(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
