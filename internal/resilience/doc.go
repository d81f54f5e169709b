// Package resilience holds the fault-tolerance helpers used for every
// outbound call except publishing, which runs its own bounded retry.
//
// Subpackages:
//   - circuitbreaker: gobreaker-backed breakers, one per upstream
//   - retry: exponential backoff with jitter for transient errors
//
// Call combines the two the way every adapter uses them:
//
//	cb := circuitbreaker.New(circuitbreaker.LinkPreviewConfig())
//	card, err := resilience.Call(ctx, cb, retry.LinkPreviewConfig(), func() (*entity.LinkCard, error) {
//	    return fetchCard(ctx, uri)
//	})
package resilience
