package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

// advisoryLockKey identifies the transaction-scoped lock that serializes
// overlap-check-then-insert across every process sharing the database.
const advisoryLockKey int64 = 0x7363686564

const schema = `CREATE TABLE IF NOT EXISTS bookings (
	id          TEXT PRIMARY KEY,
	summary     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	start_at    TIMESTAMPTZ NOT NULL,
	end_at      TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	CHECK (start_at < end_at)
);
CREATE INDEX IF NOT EXISTS bookings_start_at_idx ON bookings (start_at);`

// PostgresStore keeps bookings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool using the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the bookings table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Overlaps returns all bookings intersecting iv.
func (s *PostgresStore) Overlaps(ctx context.Context, iv model.Interval) ([]model.BookingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, summary, description, start_at, end_at, created_at
		 FROM bookings
		 WHERE start_at < $2 AND end_at > $1
		 ORDER BY start_at`,
		iv.Start, iv.End,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query overlaps: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []model.BookingRecord
	for rows.Next() {
		var b model.BookingRecord
		if err := rows.Scan(&b.ID, &b.Summary, &b.Description, &b.Start, &b.End, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan booking: %v", ErrStoreUnavailable, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate bookings: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Insert commits a booking inside a transaction that holds the advisory
// lock, so a concurrent insert waits until this one commits or rolls back.
func (s *PostgresStore) Insert(ctx context.Context, summary, description string, iv model.Interval) (model.BookingRecord, error) {
	if !iv.Valid() {
		return model.BookingRecord{}, ErrInvalidInterval
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.BookingRecord{}, fmt.Errorf("%w: begin transaction: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return model.BookingRecord{}, fmt.Errorf("%w: acquire lock: %v", ErrStoreUnavailable, err)
	}

	var conflicts int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE start_at < $2 AND end_at > $1`,
		iv.Start, iv.End,
	).Scan(&conflicts)
	if err != nil {
		return model.BookingRecord{}, fmt.Errorf("%w: check overlaps: %v", ErrStoreUnavailable, err)
	}
	if conflicts > 0 {
		return model.BookingRecord{}, ErrConflict
	}

	rec := newRecord(summary, description, iv)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (id, summary, description, start_at, end_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Summary, rec.Description, rec.Start, rec.End, rec.CreatedAt,
	)
	if err != nil {
		return model.BookingRecord{}, fmt.Errorf("%w: insert booking: %v", ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return model.BookingRecord{}, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// ListForDay returns busy intervals of the day in start order.
func (s *PostgresStore) ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]model.Interval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_at, end_at
		 FROM bookings
		 WHERE start_at < $2 AND end_at > $1
		 ORDER BY start_at, end_at`,
		dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query day: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := []model.Interval{}
	for rows.Next() {
		var iv model.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("%w: scan interval: %v", ErrStoreUnavailable, err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate intervals: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}
