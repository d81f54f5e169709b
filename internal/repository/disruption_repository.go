package repository

import (
	"context"

	"natrail-bot/internal/domain/entity"
)

// DisruptionStats summarises the dedup store.
type DisruptionStats struct {
	Total  int64
	Posted int64
}

// DisruptionRepository is the durable dedup state. Every mutation is committed
// before the call returns. Failures are reported as *entity.PersistenceError.
type DisruptionRepository interface {
	// IsNew reports whether the identity key of d has never been recorded.
	IsNew(ctx context.Context, d *entity.Disruption) (bool, error)
	// RecordSeen inserts d unless its key already exists; existing records are
	// never modified. It reports whether a record was inserted.
	RecordSeen(ctx context.Context, d *entity.Disruption) (bool, error)
	// Unposted returns records not yet posted, in insertion order.
	Unposted(ctx context.Context) ([]*entity.Disruption, error)
	// MarkPosted flags the record with the given key as posted. It reports
	// false when no record matched.
	MarkPosted(ctx context.Context, key entity.DisruptionKey) (bool, error)
	Stats(ctx context.Context) (DisruptionStats, error)
}
