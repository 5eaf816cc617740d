package runlog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"runs", "run_warnings", "concepts"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestRecordAndLastRun(t *testing.T) {
	db := testDB(t)
	start := time.Date(2025, 4, 11, 10, 0, 0, 0, time.UTC)

	if _, err := db.LastRun(); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("LastRun on empty db = %v, want ErrNotFound", err)
	}

	_, err := db.RecordRun(Run{StartedAt: start, FinishedAt: start, Status: "error", Error: "missing file"})
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	id, err := db.RecordRun(Run{
		StartedAt: start.Add(time.Minute), FinishedAt: start.Add(time.Minute + time.Second),
		Status: "success", Fingerprint: "fp", TotalConcepts: 7, ConceptSchemes: 2, MaxDepth: 6,
		Warnings: []models.Warning{{Kind: models.WarningKindLimitExceeded, Code: models.LimitHierarchyDepth, Limit: 5, Actual: 6, Message: "too deep"}},
	})
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	last, err := db.LastRun()
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last.ID != id || last.Status != "success" || last.TotalConcepts != 7 || last.MaxDepth != 6 {
		t.Errorf("last = %+v", last)
	}
	if !last.StartedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("startedAt = %v", last.StartedAt)
	}
	if len(last.Warnings) != 1 || last.Warnings[0].Code != models.LimitHierarchyDepth || last.Warnings[0].Kind != models.WarningKindLimitExceeded {
		t.Errorf("warnings = %+v", last.Warnings)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := db.RecordRun(Run{StartedAt: now, FinishedAt: now, Status: "success", TotalConcepts: i}); err != nil {
			t.Fatal(err)
		}
	}
	runs, total, err := db.ListRuns(2, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 3 || len(runs) != 2 {
		t.Fatalf("total=%d len=%d", total, len(runs))
	}
	if runs[0].TotalConcepts != 2 || runs[1].TotalConcepts != 1 {
		t.Errorf("order = %d, %d", runs[0].TotalConcepts, runs[1].TotalConcepts)
	}
	if runs[0].Warnings == nil {
		t.Error("warnings should be an empty list, not nil")
	}

	runs, _, _ = db.ListRuns(2, 2)
	if len(runs) != 1 || runs[0].TotalConcepts != 0 {
		t.Errorf("page 2 = %+v", runs)
	}
}

func sampleConcepts() []models.Concept {
	return []models.Concept{
		{Sys: models.Sys{ID: "software"}, PreferredLabel: "Software", InScheme: []models.Ref{models.NewRef("tech")}, Broader: []models.Ref{}, AltLabels: []string{"Apps", "Programs"}},
		{Sys: models.Sys{ID: "databases"}, PreferredLabel: "Databases", InScheme: []models.Ref{models.NewRef("tech")}, Broader: []models.Ref{models.NewRef("software")}},
		{Sys: models.Sys{ID: "music"}, PreferredLabel: "Music", InScheme: []models.Ref{models.NewRef("arts")}, Broader: []models.Ref{}},
	}
}

func TestReplaceAndGetConcept(t *testing.T) {
	db := testDB(t)
	if err := db.ReplaceConcepts(sampleConcepts()); err != nil {
		t.Fatalf("ReplaceConcepts: %v", err)
	}
	c, err := db.GetConcept("databases")
	if err != nil {
		t.Fatalf("GetConcept: %v", err)
	}
	if c.SchemeID != "tech" || c.BroaderID != "software" || c.AltLabels != nil {
		t.Errorf("concept = %+v", c)
	}

	if err := db.ReplaceConcepts(sampleConcepts()[2:]); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetConcept("databases"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("replaced concept still present: %v", err)
	}
}

func TestSearchConcepts(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceConcepts(sampleConcepts())

	hits, err := db.SearchConcepts("prog", 10)
	if err != nil {
		t.Fatalf("SearchConcepts: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "software" || len(hits[0].AltLabels) != 2 {
		t.Errorf("alt label hits = %+v", hits)
	}

	hits, _ = db.SearchConcepts("s", 10)
	if len(hits) != 3 || hits[0].ID != "software" || hits[2].ID != "music" {
		t.Errorf("hits not in export order: %+v", hits)
	}

	hits, _ = db.SearchConcepts("zzz", 10)
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}
}
