package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/repository"
)

type DisruptionRepo struct {
	db *sql.DB
}

func NewDisruptionRepo(db *sql.DB) repository.DisruptionRepository {
	return &DisruptionRepo{db: db}
}

func (repo *DisruptionRepo) IsNew(ctx context.Context, d *entity.Disruption) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM disruptions WHERE disruption = $1 AND link = $2)`
	var exists bool
	if err := repo.db.QueryRowContext(ctx, query, d.Description, d.Link).Scan(&exists); err != nil {
		return false, &entity.PersistenceError{Op: "IsNew: QueryRowContext", Err: err}
	}
	return !exists, nil
}

func (repo *DisruptionRepo) RecordSeen(ctx context.Context, d *entity.Disruption) (bool, error) {
	const query = `
INSERT INTO disruptions (disruption, link, posted, date)
SELECT $1::text, $2::text, FALSE, $3::timestamptz
WHERE NOT EXISTS (SELECT 1 FROM disruptions WHERE disruption = $1 AND link = $2)
ON CONFLICT DO NOTHING
RETURNING id`

	observed := d.ObservedAt
	if observed.IsZero() {
		observed = time.Now()
	}

	var id int64
	err := repo.db.QueryRowContext(ctx, query, d.Description, d.Link, observed).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &entity.PersistenceError{Op: "RecordSeen: QueryRowContext", Err: err}
	}
	d.ID = id
	return true, nil
}

// Unposted returns one record per key with no posted row, oldest first.
func (repo *DisruptionRepo) Unposted(ctx context.Context) ([]*entity.Disruption, error) {
	const query = `
SELECT MIN(id), disruption, link, MIN(date)
FROM disruptions
GROUP BY disruption, link
HAVING NOT bool_or(posted)
ORDER BY MIN(id) ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &entity.PersistenceError{Op: "Unposted: QueryContext", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var result []*entity.Disruption
	for rows.Next() {
		var d entity.Disruption
		if err := rows.Scan(&d.ID, &d.Description, &d.Link, &d.ObservedAt); err != nil {
			return nil, &entity.PersistenceError{Op: "Unposted: Scan", Err: err}
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, &entity.PersistenceError{Op: "Unposted: rows.Err", Err: err}
	}
	return result, nil
}

func (repo *DisruptionRepo) MarkPosted(ctx context.Context, key entity.DisruptionKey) (bool, error) {
	const query = `UPDATE disruptions SET posted = TRUE WHERE disruption = $1 AND link = $2`
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

func (repo *DisruptionRepo) Stats(ctx context.Context) (repository.DisruptionStats, error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE posted) FROM disruptions`
	var s repository.DisruptionStats
	if err := repo.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Posted); err != nil {
		return repository.DisruptionStats{}, &entity.PersistenceError{Op: "Stats: QueryRowContext", Err: err}
	}
	return s, nil
}
