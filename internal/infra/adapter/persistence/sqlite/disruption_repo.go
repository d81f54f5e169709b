// Package sqlite provides the SQLite implementation of the disruption dedup store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/repository"
)

// DateLayout is the text format of the date column.
const DateLayout = "2006-01-02 15:04:05"

// DisruptionRepo implements repository.DisruptionRepository on a SQLite file.
type DisruptionRepo struct{ db *sql.DB }

// NewDisruptionRepo creates a new SQLite-backed disruption repository.
func NewDisruptionRepo(db *sql.DB) repository.DisruptionRepository {
	return &DisruptionRepo{db: db}
}

// IsNew reports whether no row has the description and link of d.
func (repo *DisruptionRepo) IsNew(ctx context.Context, d *entity.Disruption) (bool, error) {
	const query = `SELECT 1 FROM disruptions WHERE disruption = ? AND link = ? LIMIT 1`

	var one int
	err := repo.db.QueryRowContext(ctx, query, d.Description, d.Link).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, &entity.PersistenceError{Op: "IsNew: QueryRowContext", Err: err}
	}
	return false, nil
}

// RecordSeen inserts d as unposted. The NOT EXISTS guard keeps databases
// without the unique key free of duplicates.
func (repo *DisruptionRepo) RecordSeen(ctx context.Context, d *entity.Disruption) (bool, error) {
	const query = `
INSERT OR IGNORE INTO disruptions (disruption, link, posted, date)
SELECT ?, ?, 0, ?
WHERE NOT EXISTS (SELECT 1 FROM disruptions WHERE disruption = ? AND link = ?)`

	observed := d.ObservedAt
	if observed.IsZero() {
		observed = time.Now()
	}

	res, err := repo.db.ExecContext(ctx, query,
		d.Description, d.Link, observed.Format(DateLayout),
		d.Description, d.Link)
	if err != nil {
		return false, &entity.PersistenceError{Op: "RecordSeen: ExecContext", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &entity.PersistenceError{Op: "RecordSeen: RowsAffected", Err: err}
	}
	if n > 0 {
		if id, err := res.LastInsertId(); err == nil {
			d.ID = id
		}
	}
	return n > 0, nil
}

// Unposted returns one record per unposted key, oldest first. Tables created
// without the unique key may hold several rows for a key; they collapse into
// the earliest one, and a key with any posted row is not returned.
func (repo *DisruptionRepo) Unposted(ctx context.Context) ([]*entity.Disruption, error) {
	const query = `
SELECT MIN(id), disruption, link, MIN(date)
FROM disruptions
GROUP BY disruption, link
HAVING COALESCE(MAX(posted), 0) = 0
ORDER BY MIN(id) ASC`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &entity.PersistenceError{Op: "Unposted: QueryContext", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var result []*entity.Disruption
	for rows.Next() {
		var (
			d    entity.Disruption
			date string
		)
		if err := rows.Scan(&d.ID, &d.Description, &d.Link, &date); err != nil {
			return nil, &entity.PersistenceError{Op: "Unposted: Scan", Err: err}
		}
		// Rows written by other tools may carry a different date format.
		if t, err := time.ParseInLocation(DateLayout, date, time.Local); err == nil {
			d.ObservedAt = t
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, &entity.PersistenceError{Op: "Unposted: rows.Err", Err: err}
	}
	return result, nil
}

// MarkPosted sets posted = 1 on the row with key.
func (repo *DisruptionRepo) MarkPosted(ctx context.Context, key entity.DisruptionKey) (bool, error) {
	const query = `UPDATE disruptions SET posted = 1 WHERE disruption = ? AND link = ?`

	res, err := repo.db.ExecContext(ctx, query, key.Description, key.Link)
	if err != nil {
		return false, &entity.PersistenceError{Op: "MarkPosted: ExecContext", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &entity.PersistenceError{Op: "MarkPosted: RowsAffected", Err: err}
	}
	return n > 0, nil
}

// Stats counts stored and posted rows.
func (repo *DisruptionRepo) Stats(ctx context.Context) (repository.DisruptionStats, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(posted), 0) FROM disruptions`

	var s repository.DisruptionStats
	if err := repo.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Posted); err != nil {
		return repository.DisruptionStats{}, &entity.PersistenceError{Op: "Stats: QueryRowContext", Err: fmt.Errorf("scan: %w", err)}
	}
	return s, nil
}
