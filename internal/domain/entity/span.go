package entity

// SpanKind identifies what an annotated byte range refers to.
type SpanKind int

const (
	SpanHashtag SpanKind = iota
	SpanURL
)

// String returns the lowercase name of the kind.
func (k SpanKind) String() string {
	switch k {
	case SpanHashtag:
		return "hashtag"
	case SpanURL:
		return "url"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [ByteStart, ByteEnd) into the UTF-8 encoding
// of a message. Text holds the matched bytes.
type Span struct {
	Text      string
	Kind      SpanKind
	ByteStart int
	ByteEnd   int
}
