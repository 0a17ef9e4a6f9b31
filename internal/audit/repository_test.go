package audit

import (
	"context"
	"testing"
	"time"

	"github.com/cyncmesh/cync-core/internal/config"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, config.AuditConfig{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteRepository(db)
}

func TestSQLiteRepository_RecordAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry := &CommandAudit{
		EntityID:  "h1-5",
		Operation: "turn_on",
		Params:    map[string]any{"brightness": 200},
		Succeeded: true,
		LatencyMS: 42,
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("Record did not assign an ID")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1", result.Total)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(result.Entries))
	}
	got := result.Entries[0]
	if got.EntityID != "h1-5" || got.Operation != "turn_on" || !got.Succeeded || got.LatencyMS != 42 {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Params["brightness"] != float64(200) {
		t.Fatalf("Params[brightness] = %v, want 200", got.Params["brightness"])
	}
}

func TestSQLiteRepository_RecordFailure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	err := repo.Record(ctx, &CommandAudit{
		EntityID:  "h1-6",
		Operation: "turn_off",
		Succeeded: false,
		Error:     "command timeout",
		LatencyMS: 5000,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	result, err := repo.List(ctx, Filter{EntityID: "h1-6"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(result.Entries))
	}
	if result.Entries[0].Error != "command timeout" {
		t.Fatalf("Error = %q, want %q", result.Entries[0].Error, "command timeout")
	}
}

func TestSQLiteRepository_ListFiltersByEntityAndOperation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entries := []*CommandAudit{
		{EntityID: "h1-1", Operation: "turn_on", Succeeded: true},
		{EntityID: "h1-1", Operation: "turn_off", Succeeded: true},
		{EntityID: "h1-2", Operation: "turn_on", Succeeded: true},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{EntityID: "h1-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2", result.Total)
	}

	result, err = repo.List(ctx, Filter{EntityID: "h1-1", Operation: "turn_on"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1", result.Total)
	}
}

func TestSQLiteRepository_ListOrdersMostRecentFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"cmd-1", "cmd-2", "cmd-3"} {
		e := &CommandAudit{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second), EntityID: "h1-1", Operation: "turn_on", Succeeded: true}
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(result.Entries))
	}
	if result.Total != 3 {
		t.Fatalf("Total = %d, want 3", result.Total)
	}
	if result.Entries[0].ID != "cmd-3" || result.Entries[1].ID != "cmd-2" {
		t.Errorf("entries = [%s %s], want [cmd-3 cmd-2]", result.Entries[0].ID, result.Entries[1].ID)
	}
}
