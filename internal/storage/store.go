package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"tickerwall/internal/quote"
)

// SampleStore archives applied live price samples in SQLite. It backs
// the local fallback for intraday history when the provider backfill
// fails, and survives restarts.
type SampleStore struct {
	db *sql.DB
}

// NewSampleStore opens (or creates) the sample archive with WAL mode
// enabled.
func NewSampleStore(dbPath string) (*SampleStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			ticker TEXT NOT NULL,
			ts INTEGER NOT NULL,
			price REAL NOT NULL,
			PRIMARY KEY (ticker, ts)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create samples table: %w", err)
	}

	return &SampleStore{db: db}, nil
}

// Append stores one applied sample. Duplicate timestamps for a ticker
// are overwritten rather than erroring.
func (s *SampleStore) Append(ctx context.Context, ticker string, tsUnixMs int64, price float64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO samples (ticker, ts, price) VALUES (?, ?, ?) ON CONFLICT(ticker, ts) DO UPDATE SET price=excluded.price",
		ticker, tsUnixMs, price,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// History returns archived samples for a ticker since the given time,
// oldest first.
func (s *SampleStore) History(ctx context.Context, ticker string, since time.Time) ([]quote.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, price FROM samples WHERE ticker = ? AND ts >= ? ORDER BY ts ASC",
		ticker, since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []quote.Sample
	for rows.Next() {
		var sm quote.Sample
		if err := rows.Scan(&sm.TsUnixMs, &sm.Price); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return samples, nil
}

// Prune removes samples older than the cutoff.
func (s *SampleStore) Prune(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM samples WHERE ts < ?", before.UnixMilli())
	return err
}

// Close closes the database connection.
func (s *SampleStore) Close() error {
	return s.db.Close()
}
