package compat

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nerrad567/partcompat/internal/infrastructure/database"
	_ "github.com/nerrad567/partcompat/migrations" // registers the schema
)

// setupTestDB opens an in-memory database with the real schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return openMigrated(t, database.MemoryPath)
}

// openMigrated opens path (file or MemoryPath) and applies migrations.
func openMigrated(t *testing.T, path string) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db.DB
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "partcompat.db")
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(setupTestDB(t), 16)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func mustLink(t *testing.T, e *Engine, part PartType, models ...string) *LinkResult {
	t.Helper()
	res, err := e.LinkParts(context.Background(), models, part)
	if err != nil {
		t.Fatalf("LinkParts(%v, %s) error = %v", models, part, err)
	}
	return res
}

func mustCompatible(t *testing.T, e *Engine, model string, part PartType) []string {
	t.Helper()
	got, err := e.GetCompatibleModels(context.Background(), model, part)
	if err != nil {
		t.Fatalf("GetCompatibleModels(%q, %s) error = %v", model, part, err)
	}
	return got
}

func mustGroups(t *testing.T, e *Engine, part PartType) []GroupRecord {
	t.Helper()
	groups, err := e.ListGroups(context.Background(), part)
	if err != nil {
		t.Fatalf("ListGroups(%q) error = %v", part, err)
	}
	return groups
}

func assertIntegrity(t *testing.T, e *Engine) {
	t.Helper()
	report, err := e.CheckIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckIntegrity() error = %v", err)
	}
	if !report.OK() {
		t.Fatalf("integrity issues: %+v", report.Issues)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recordingPublisher captures change events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChange(_ context.Context, ev ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// recordingObserver captures operation and cache events.
type recordingObserver struct {
	mu     sync.Mutex
	ops    []OperationEvent
	hits   int
	misses int
}

func (o *recordingObserver) ObserveOperation(ev OperationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, ev)
}

func (o *recordingObserver) ObserveCacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}
