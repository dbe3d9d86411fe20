package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/output"
)

var ErrNotFound = errors.New("scan not found")

// TimestampFormat is how save times are stored and displayed.
const TimestampFormat = "2006-01-02 15:04:05"

// HistoryEntry identifies one saved scan. It never changes after Save.
type HistoryEntry struct {
	ID        string `json:"id"`
	Target    string `json:"target"`
	Timestamp string `json:"timestamp"`
}

// Scan is a saved record together with its history entry.
type Scan struct {
	HistoryEntry
	Record *output.Record `json:"scan_data"`
}

// Store persists scan records. Implementations serialize their own writes,
// so one Store may be shared by concurrent scans.
type Store interface {
	Save(ctx context.Context, rec *output.Record) (*HistoryEntry, error)
	// History lists saved scans, newest first.
	History(ctx context.Context) ([]HistoryEntry, error)
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Scan, error)
	Close() error
}

// Open connects to the configured backend and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", "sqlite3":
		return NewSQLiteStore(ctx, cfg.Path)
	case "postgres", "postgresql", "pgx":
		if cfg.URL == "" {
			return nil, errors.New("database.url is required for the postgres driver")
		}
		return NewPostgresStore(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// GenerateScanID creates a short UUID (8 hex chars) such as "a1b2c3d4".
func GenerateScanID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// newEntry stamps a record that is about to be saved.
func newEntry(rec *output.Record, now time.Time) HistoryEntry {
	return HistoryEntry{
		ID:        GenerateScanID(),
		Target:    rec.Target,
		Timestamp: now.Format(TimestampFormat),
	}
}

func decodeScan(e HistoryEntry, blob string) (*Scan, error) {
	rec, err := output.Parse([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", e.ID, err)
	}
	return &Scan{HistoryEntry: e, Record: rec}, nil
}
