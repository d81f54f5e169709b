package entity

import (
	"strings"
	"time"
)

// Page is a fetched document ready for extraction.
type Page struct {
	// URL is the address that was requested, including any cache-busting query.
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// IsFeed reports whether the page looks like an RSS or Atom document rather than HTML.
func (p *Page) IsFeed() bool {
	ct := strings.ToLower(p.ContentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	if strings.Contains(ct, "html") {
		return false
	}

	head := p.Body
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(strings.TrimSpace(string(head)))
	s = strings.TrimPrefix(s, "\ufeff")
	if strings.HasPrefix(s, "<?xml") {
		s = s[strings.Index(s, "?>")+2:]
		s = strings.TrimSpace(s)
	}
	return strings.HasPrefix(s, "<rss") || strings.HasPrefix(s, "<feed") || strings.HasPrefix(s, "<rdf")
}
