package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/infra/adapter/persistence/sqlite"
	"natrail-bot/internal/repository"
)

/* ────────────────────────────  helpers  ──────────────────────────── */

func sample() *entity.Disruption {
	return &entity.Disruption{
		Description: "Disruption between Leeds and York",
		Link:        "https://www.nationalrail.co.uk/service-disruptions/leeds-york/",
		ObservedAt:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local),
	}
}

/* ──────────────────────────── 1. IsNew ──────────────────────────── */

func TestDisruptionRepo_IsNew(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	d := sample()
	q := regexp.QuoteMeta(`SELECT 1 FROM disruptions WHERE disruption = ? AND link = ? LIMIT 1`)
	mock.ExpectQuery(q).WithArgs(d.Description, d.Link).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(q).WithArgs(d.Description, d.Link).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	repo := sqlite.NewDisruptionRepo(db)

	isNew, err := repo.IsNew(context.Background(), d)
	if err != nil || !isNew {
		t.Fatalf("first IsNew = %v, %v; want true", isNew, err)
	}
	isNew, err = repo.IsNew(context.Background(), d)
	if err != nil || isNew {
		t.Fatalf("second IsNew = %v, %v; want false", isNew, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDisruptionRepo_IsNew_Error(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT 1 FROM disruptions").WillReturnError(errors.New("disk I/O error"))

	_, err := sqlite.NewDisruptionRepo(db).IsNew(context.Background(), sample())
	if !entity.IsPersistence(err) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
}

/* ──────────────────────────── 2. RecordSeen ──────────────────────────── */

func TestDisruptionRepo_RecordSeen(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	d := sample()
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO disruptions")).
		WithArgs(d.Description, d.Link, "2025-03-14 09:30:00", d.Description, d.Link).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO disruptions")).
		WithArgs(d.Description, d.Link, "2025-03-14 09:30:00", d.Description, d.Link).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := sqlite.NewDisruptionRepo(db)

	inserted, err := repo.RecordSeen(context.Background(), d)
	if err != nil || !inserted {
		t.Fatalf("first RecordSeen = %v, %v", inserted, err)
	}
	if d.ID != 7 {
		t.Errorf("ID = %d, want 7", d.ID)
	}

	inserted, err = repo.RecordSeen(context.Background(), d)
	if err != nil || inserted {
		t.Fatalf("duplicate RecordSeen = %v, %v; want false", inserted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDisruptionRepo_RecordSeen_Error(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT OR IGNORE").WillReturnError(errors.New("database is locked"))

	_, err := sqlite.NewDisruptionRepo(db).RecordSeen(context.Background(), sample())
	var pe *entity.PersistenceError
	if !errors.As(err, &pe) || pe.Op != "RecordSeen: ExecContext" {
		t.Fatalf("err = %v, want PersistenceError from ExecContext", err)
	}
}

/* ──────────────────────────── 3. Unposted ──────────────────────────── */

func TestDisruptionRepo_Unposted(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(id), disruption, link, MIN(date)")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "disruption", "link", "date"}).
			AddRow(1, "A", "https://a.example/", "2025-03-14 09:30:00").
			AddRow(2, "B", "https://b.example/", "not a date"))

	got, err := sqlite.NewDisruptionRepo(db).Unposted(context.Background())
	if err != nil {
		t.Fatalf("Unposted err=%v", err)
	}

	want := []*entity.Disruption{
		{ID: 1, Description: "A", Link: "https://a.example/", ObservedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)},
		{ID: 2, Description: "B", Link: "https://b.example/"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Unposted mismatch (-want +got):\n%s", diff)
	}
}

/* ──────────────────────────── 4. MarkPosted ──────────────────────────── */

func TestDisruptionRepo_MarkPosted(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	key := sample().Key()
	q := regexp.QuoteMeta(`UPDATE disruptions SET posted = 1 WHERE disruption = ? AND link = ?`)
	mock.ExpectExec(q).WithArgs(key.Description, key.Link).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("gone", "https://x/").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := sqlite.NewDisruptionRepo(db)

	ok, err := repo.MarkPosted(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("MarkPosted = %v, %v", ok, err)
	}
	ok, err = repo.MarkPosted(context.Background(), entity.DisruptionKey{Description: "gone", Link: "https://x/"})
	if err != nil || ok {
		t.Fatalf("MarkPosted(missing) = %v, %v; want false", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────── 5. Stats ──────────────────────────── */

func TestDisruptionRepo_Stats(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(posted), 0) FROM disruptions")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(5, 3))

	got, err := sqlite.NewDisruptionRepo(db).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats err=%v", err)
	}
	if diff := cmp.Diff(repository.DisruptionStats{Total: 5, Posted: 3}, got); diff != "" {
		t.Fatalf("Stats mismatch (-want +got):\n%s", diff)
	}
}
