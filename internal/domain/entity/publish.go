package entity

import "time"

// PublishState is a step of a single publish attempt cycle.
type PublishState int

const (
	StateIdle PublishState = iota
	StateAuthenticating
	StateBuildingPayload
	StateSending
	StateSucceeded
	StateRateLimited
	StateFailed
)

var publishStateNames = map[PublishState]string{
	StateIdle:            "idle",
	StateAuthenticating:  "authenticating",
	StateBuildingPayload: "building_payload",
	StateSending:         "sending",
	StateSucceeded:       "succeeded",
	StateRateLimited:     "rate_limited",
	StateFailed:          "failed",
}

// String returns the snake_case name used in logs and metric labels.
func (s PublishState) String() string {
	if name, ok := publishStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s PublishState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// PostRef identifies a created record on the social network.
type PostRef struct {
	URI string
	CID string
}

// BlobRef references binary data uploaded ahead of a post.
type BlobRef struct {
	Link     string
	MimeType string
	Size     int64
}

// PostDraft is the content of one post as handed to the social network.
type PostDraft struct {
	Text  string
	Spans []Span
	// Card is nil when the link travels in the text.
	Card      *LinkCard
	Thumb     *BlobRef
	CreatedAt time.Time
}

// PublishResult describes how a publish ended.
type PublishResult struct {
	State    PublishState
	Attempts int
	Ref      PostRef
	// DryRun is set when the post was built but not sent.
	DryRun bool
	// Err is the last error observed when State is StateFailed.
	Err error
}

// Succeeded reports whether the post was confirmed by the remote service.
func (r *PublishResult) Succeeded() bool {
	return r != nil && r.State == StateSucceeded
}
