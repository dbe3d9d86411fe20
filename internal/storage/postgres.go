package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vulnsight/vulnsight/internal/output"
)

// PostgresStore keeps scans in a shared Postgres database, for teams
// running the dashboard against one history.
type PostgresStore struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, goose.DialectPostgres, db)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *output.Record) (*HistoryEntry, error) {
	blob, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode scan record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := newEntry(rec, s.now())
	_, err = s.pool.Exec(ctx,
		`INSERT INTO scans (id, target, timestamp, scan_data) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Target, e.Timestamp, string(blob))
	if err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) History(ctx context.Context) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, target, timestamp FROM scans ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Target, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Scan, error) {
	var (
		e    HistoryEntry
		blob string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, target, timestamp, scan_data FROM scans WHERE id = $1`, id).
		Scan(&e.ID, &e.Target, &e.Timestamp, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return decodeScan(e, blob)
}
