package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/incipit/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func record(id, project string, at time.Time, ok bool) models.CompileRecord {
	r := models.CompileRecord{
		ID:        id,
		Mode:      models.ModeProject,
		Project:   project,
		File:      "main.tex",
		Success:   ok,
		StartedAt: at,
		Duration:  1500 * time.Millisecond,
	}
	if ok {
		r.OutputBytes = 42
		r.Checksum = "abc"
	} else {
		r.Error = "compilation failed: boom"
	}
	return r
}

func TestRecordAndRecent(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, r := range []models.CompileRecord{
		record("a", "/p1", base, true),
		record("b", "/p1", base.Add(time.Minute), false),
		record("c", "/p2", base.Add(2*time.Minute), true),
	} {
		if err := db.Record(r); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	all, err := db.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	p1, err := db.Recent("/p1", 10)
	if err != nil {
		t.Fatalf("Recent(/p1): %v", err)
	}
	if len(p1) != 2 {
		t.Fatalf("len = %d, want 2", len(p1))
	}
	failed := p1[0]
	if failed.Success || failed.Error == "" || failed.Duration != 1500*time.Millisecond {
		t.Errorf("failed record = %+v", failed)
	}
	if !p1[1].StartedAt.Equal(base) {
		t.Errorf("started_at = %v, want %v", p1[1].StartedAt, base)
	}
}

func TestRecent_EmptyIsNonNil(t *testing.T) {
	db := testDB(t)
	got, err := db.Recent("/nothing", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}

func TestRecord_Upsert(t *testing.T) {
	db := testDB(t)
	at := time.Now()
	_ = db.Record(record("x", "/p", at, false))
	if err := db.Record(record("x", "/p", at, true)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, _ := db.Recent("/p", 0)
	if len(got) != 1 || !got[0].Success {
		t.Errorf("got %+v", got)
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	base := time.Now()
	for i, id := range []string{"a", "b", "c", "d"} {
		_ = db.Record(record(id, "/p", base.Add(time.Duration(i)*time.Second), true))
	}
	n, err := db.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
	got, _ := db.Recent("", 0)
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "c" {
		t.Errorf("kept %+v", got)
	}
}
