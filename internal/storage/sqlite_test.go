package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/portscan"
	"github.com/vulnsight/vulnsight/internal/vulnscan"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "db", "vulnsight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock returns a clock that advances one second per call.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(time.Second)
		return t
	}
}

func sampleRecord(target string) *output.Record {
	rec := output.NewRecord(target)
	rec.Subdomains = []string{"a." + target}
	rec.PortScan = portscan.Failure("nmap not found")
	rec.Vulnerabilities = []vulnscan.Finding{{Severity: vulnscan.High, Name: "x", MatchedAt: "https://" + target}}
	rec.AISuggestions = "CVE-2021-23017"
	return rec
}

func TestSaveAndGet(t *testing.T) {
	s := testStore(t)
	s.now = fixedClock(time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local))
	ctx := context.Background()

	rec := sampleRecord("example.com")
	e, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.Len(t, e.ID, 8)
	assert.Equal(t, "example.com", e.Target)
	assert.Equal(t, "2024-05-01 10:30:00", e.Timestamp)

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, *e, got.HistoryEntry)
	assert.Equal(t, rec, got.Record)
	assert.Equal(t, "Error: nmap not found", got.Record.PortScan.String())
}

func TestGet_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "deadbeef")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestHistory_NewestFirst(t *testing.T) {
	s := testStore(t)
	s.now = fixedClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local))
	ctx := context.Background()

	empty, err := s.History(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	var ids []string
	for _, target := range []string{"one.com", "two.com", "three.com"} {
		e, err := s.Save(ctx, sampleRecord(target))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	hist, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, ids[2], hist[0].ID)
	assert.Equal(t, "three.com", hist[0].Target)
	assert.Equal(t, ids[0], hist[2].ID)
}

func TestSave_Concurrent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, sampleRecord("example.com"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	hist, err := s.History(ctx)
	require.NoError(t, err)
	assert.Len(t, hist, 10)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulnsight.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	e, err := s.Save(ctx, sampleRecord("example.com"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// migrations are idempotent on an existing file
	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "example.com", got.Target)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(ctx, config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	e, err := s.Save(context.Background(), sampleRecord("example.com"))
	require.NoError(t, err)
	_, err = s.Get(context.Background(), e.ID)
	assert.NoError(t, err)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("VULNSIGHT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VULNSIGHT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	e, err := s.Save(ctx, sampleRecord("pg.example.com"))
	require.NoError(t, err)
	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "pg.example.com", got.Record.Target)

	_, err = s.Get(ctx, "missing0")
	assert.True(t, errors.Is(err, ErrNotFound))
}
