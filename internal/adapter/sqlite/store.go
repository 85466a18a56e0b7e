// Package sqlite persists extracted unit observations so repeated runs over
// the same point skip the remote service.
package sqlite

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// Store is a sqlite-backed observation store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. ":memory:" gives a private in-process database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-open database. Callers must run Migrate.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("observation cache: %w", err)
	}
	return nil
}

// Entry is one cached unit extraction.
type Entry struct {
	Key          Key
	Observations []domain.RawObservation
	FetchedAt    time.Time
}

// Get returns the cached entry for key. The boolean is false on a miss.
func (s *Store) Get(ctx context.Context, key Key) (Entry, bool, error) {
	var (
		payload   []byte
		fetchedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_compressed, fetched_at FROM unit_observations WHERE cache_key = ?`,
		key.Hash(),
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query cache: %w", err)
	}

	obs, err := decompress(payload)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Key: key, Observations: obs, FetchedAt: fetchedAt}, true, nil
}

// Put stores obs under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key Key, obs []domain.RawObservation, fetchedAt time.Time) error {
	payload, err := compress(obs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO unit_observations
			(cache_key, collection, model, scenario, start_year, end_year, lat, lon, variables,
			 observation_count, payload_compressed, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			observation_count = excluded.observation_count,
			payload_compressed = excluded.payload_compressed,
			fetched_at = excluded.fetched_at
	`, key.Hash(), key.Collection, string(key.Model), string(key.Scenario),
		key.Years.Start, key.Years.End, key.Lat, key.Lon, key.variableList(),
		len(obs), payload, fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("store cache entry %s: %w", key, err)
	}
	return nil
}

// Count returns the number of cached units.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unit_observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

// Prune deletes entries fetched before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM unit_observations WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

// Expire prunes entries fetched more than maxAge before now and logs how
// many remain. A zero maxAge keeps every entry and only counts them.
func (s *Store) Expire(ctx context.Context, maxAge time.Duration, now time.Time) (removed int64, remaining int, err error) {
	if maxAge > 0 {
		removed, err = s.Prune(ctx, now.Add(-maxAge))
		if err != nil {
			return 0, 0, err
		}
	}
	remaining, err = s.Count(ctx)
	if err != nil {
		return removed, 0, err
	}
	s.logger.Info("observation cache maintained", "removed", removed, "remaining", remaining, "max_age", maxAge)
	return removed, remaining, nil
}

func compress(obs []domain.RawObservation) ([]byte, error) {
	if obs == nil {
		obs = []domain.RawObservation{}
	}
	raw, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("encode observations: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(payload []byte) ([]domain.RawObservation, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	var obs []domain.RawObservation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}
	return obs, nil
}
