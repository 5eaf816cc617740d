package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/export"
	"github.com/starford/taxport/internal/models"
	"github.com/starford/taxport/internal/pipeline"
	"github.com/starford/taxport/internal/status"
	"github.com/starford/taxport/internal/testutil"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 4, 11, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestRun_WritesExportAndStatus(t *testing.T) {
	svc, dir := testutil.Service(t, pipeline.WithClock(fixedClock()))

	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.RunID == 0 {
		t.Error("run was not recorded")
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out", "taxonomy-export.json"))
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	doc, err := export.Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}

	// arts.yaml sorts before tech.yaml.
	var ids []string
	for _, c := range doc.Taxonomy.Concepts {
		ids = append(ids, c.Sys.ID)
	}
	want := []string{"music", "software", "databases", "sql", "hardware"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("concept order (-want +got):\n%s", diff)
	}
	if doc.Metadata.MaxDepth != 3 || doc.Metadata.TotalConcepts != 5 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.GeneratedAt != "2025-04-11T12:00:00.000Z" {
		t.Errorf("generatedAt = %q", doc.Metadata.GeneratedAt)
	}

	rep, err := svc.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !rep.OK() || rep.Summary.TotalConcepts != 5 || rep.Summary.ConceptSchemes != 2 || rep.SourceFingerprint == "" {
		t.Errorf("report = %+v", rep)
	}
	if svc.Latest() != out {
		t.Error("Latest should return the last outcome")
	}

	c, err := svc.Runs().GetConcept("databases")
	if err != nil {
		t.Fatalf("GetConcept: %v", err)
	}
	if c.BroaderID != "software" || c.SchemeID != "tech" {
		t.Errorf("stored concept = %+v", c)
	}
}

func TestRun_IdempotentConcepts(t *testing.T) {
	svc, _ := testutil.Service(t)
	first, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first.Document.Taxonomy, second.Document.Taxonomy); diff != "" {
		t.Errorf("taxonomy changed between runs:\n%s", diff)
	}
	if first.Report.SourceFingerprint != second.Report.SourceFingerprint {
		t.Error("fingerprint changed on unchanged input")
	}
}

func TestRun_MissingCategoriesIsFatal(t *testing.T) {
	svc, dir := testutil.Service(t)
	_ = os.Remove(filepath.Join(dir, "core-categories.yaml"))

	var notified error
	svc.Subscribe(func(_ *status.Report, err error) { notified = err })

	_, err := svc.Run(context.Background())
	if !errors.Is(err, apperr.ErrSourceRead) || !pipeline.IsSourceError(err) {
		t.Fatalf("err = %v, want ErrSourceRead", err)
	}
	if notified == nil {
		t.Error("listener not told about the failure")
	}

	rep, err := svc.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rep.Status != status.Error || !strings.Contains(rep.Error, "source read error") {
		t.Errorf("report = %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "taxonomy-export.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("export should not be written on a failed run")
	}
	last, err := svc.Runs().LastRun()
	if err != nil || last.Status != status.Error {
		t.Errorf("last run = %+v, %v", last, err)
	}
}

func TestRun_UnparsableSubcategoryIsFatal(t *testing.T) {
	svc, dir := testutil.Service(t)
	testutil.WriteFile(t, dir, "subcategories/broken.yaml", "parent: tech\nsubcategories: [\n")

	_, err := svc.Run(context.Background())
	if !errors.Is(err, apperr.ErrSourceRead) {
		t.Fatalf("err = %v, want ErrSourceRead", err)
	}
	if !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("error does not name the file: %v", err)
	}
}

func TestRun_IgnoresNonYAML(t *testing.T) {
	svc, dir := testutil.Service(t)
	testutil.WriteFile(t, dir, "subcategories/notes.txt", "not: [yaml")
	testutil.WriteFile(t, dir, "subcategories/extra.yml", "parent: tech\nsubcategories:\n  - id: extra\n    name: Extra\n")

	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Report.Summary.TotalConcepts != 5 {
		t.Errorf("totalConcepts = %d, want 5 (.yml is not a source)", out.Report.Summary.TotalConcepts)
	}
}

func TestRun_SubcategoryFileWithoutParent(t *testing.T) {
	svc, dir := testutil.Service(t)
	testutil.WriteFile(t, dir, "subcategories/zz-orphans.yaml", "subcategories:\n  - id: orphan\n    name: Orphan\n")

	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Report.OK() || out.Report.Summary.TotalConcepts != 6 {
		t.Errorf("report = %+v", out.Report)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out", "taxonomy-export.json"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := export.Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	last := doc.Taxonomy.Concepts[len(doc.Taxonomy.Concepts)-1]
	if last.Sys.ID != "orphan" || last.InScheme == nil || len(last.InScheme) != 0 {
		t.Errorf("orphan concept = %+v, want empty inScheme", last)
	}
	if !strings.Contains(string(raw), `"inScheme": []`) {
		t.Error("export does not encode the empty inScheme list")
	}
	counts := doc.Metadata.ConceptsPerScheme
	if n := len(counts); n != 3 || counts[n-1].SchemeID != "" || counts[n-1].Count != 1 {
		t.Errorf("conceptsPerScheme = %+v, want a trailing parent-less counter of 1", counts)
	}
}

func TestRun_LimitWarningsDoNotAbort(t *testing.T) {
	svc, dir := testutil.Service(t)
	testutil.WriteFile(t, dir, "subcategories/tech.yaml", `parent: tech
subcategories:
  - id: l1
    name: L1
    subcategories:
      - id: l2
        name: L2
        subcategories:
          - id: l3
            name: L3
            subcategories:
              - id: l4
                name: L4
                subcategories:
                  - id: l5
                    name: L5
                    subcategories:
                      - id: l6
                        name: L6
`)
	var reported *status.Report
	svc.Subscribe(func(r *status.Report, _ error) { reported = r })

	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Code != models.LimitHierarchyDepth {
		t.Fatalf("warnings = %+v", out.Warnings)
	}
	if out.Document.Metadata.MaxDepth != 6 {
		t.Errorf("maxDepth = %d", out.Document.Metadata.MaxDepth)
	}
	if reported == nil || !reported.OK() || reported.Summary.Warnings != 1 {
		t.Errorf("reported = %+v", reported)
	}
	last, _ := svc.Runs().LastRun()
	if len(last.Warnings) != 1 {
		t.Errorf("run log warnings = %+v", last.Warnings)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	svc, _ := testutil.Service(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSources(t *testing.T) {
	svc, _ := testutil.Service(t)
	metas, err := svc.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	want := []string{"core-categories.yaml", "subcategories/arts.yaml", "subcategories/tech.yaml"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
}
