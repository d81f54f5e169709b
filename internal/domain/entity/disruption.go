package entity

import (
	"net/url"
	"strings"
	"time"
)

// NoDescription is stored when a notification link carries no accessible label.
const NoDescription = "No description available"

// Disruption is one service-status notice scraped from the disruption listing.
// Description and Link together identify the notice in the relational store;
// the flat-file store keys on Description alone.
type Disruption struct {
	ID          int64
	Description string
	Link        string
	ObservedAt  time.Time
	Posted      bool
}

// DisruptionKey is the dedup identity of a disruption.
type DisruptionKey struct {
	Description string
	Link        string
}

// Key returns the identity of the disruption.
func (d *Disruption) Key() DisruptionKey {
	return DisruptionKey{Description: d.Description, Link: d.Link}
}

// Validate checks that the record can be stored and published.
func (d *Disruption) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return &ValidationError{Field: "description", Message: "description is required"}
	}
	if d.Link == "" {
		return &ValidationError{Field: "link", Message: "link is required"}
	}
	u, err := url.Parse(d.Link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "link", Message: "link must be an absolute http(s) URL"}
	}
	return nil
}

// LinkCard is the preview attached to a post pointing at the disruption page.
type LinkCard struct {
	URI         string
	Title       string
	Description string
	// ImageURL is the og:image advertised by the page, empty when absent.
	ImageURL string
}
