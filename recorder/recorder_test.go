package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"enrolldash/inputs"
)

func samplePass(id, surface string, at time.Time) Pass {
	return Pass{
		ID:        id,
		Surface:   surface,
		At:        at,
		Overrides: 1,
		Duration:  15 * time.Millisecond,
		Inputs: inputs.Inputs{Status: map[inputs.Name]inputs.Status{
			inputs.History:  {Origin: inputs.OriginOverride, Source: "upload:h.csv"},
			inputs.Forecast: {Origin: inputs.OriginAbsent, Source: "data/f.csv", Reason: "forecast: missing column"},
		}},
	}
}

func openTest(t *testing.T, path string, limit int) *Recorder {
	t.Helper()
	r, err := Open(path, limit, func(string, ...any) {})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passes.db")
	r := openTest(t, path, 10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Record(samplePass("a", "web", base))
	r.Record(samplePass("b", "web", base.Add(time.Minute)))
	r.Record(samplePass("c", "console", base.Add(2*time.Minute)))

	entries, err := r.Recent("web", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "b" || entries[1].ID != "a" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	got := entries[0]
	if !got.RecordedAt.Equal(base.Add(time.Minute)) || got.Duration != 15*time.Millisecond || got.Overrides != 1 {
		t.Fatalf("unexpected entry fields: %+v", got)
	}
	if st := got.Status[inputs.Forecast]; st.Origin != inputs.OriginAbsent || st.Reason != "forecast: missing column" {
		t.Fatalf("unexpected forecast status: %+v", st)
	}
	if st := got.Status[inputs.History]; st.Source != "upload:h.csv" {
		t.Fatalf("unexpected history status: %+v", st)
	}

	all, err := r.Recent("", 10)
	if err != nil || len(all) != 3 || all[0].Surface != "console" {
		t.Fatalf("expected every surface, got %+v (%v)", all, err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecordKeepsNewestPassesPerSurface(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passes.db")
	r := openTest(t, path, 2)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Record(samplePass("first", "web", base))
	r.Record(samplePass("second", "web", base.Add(time.Minute)))
	r.Record(samplePass("third", "web", base.Add(2*time.Minute)))
	r.Record(samplePass("c1", "console", base))

	entries, err := r.Recent("web", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "third" || entries[1].ID != "second" {
		t.Fatalf("expected the two newest web passes, got %+v", entries)
	}
	var orphans int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM pass_inputs WHERE pass_id = 'first'`).Scan(&orphans); err != nil {
		t.Fatalf("count inputs: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected inputs of the dropped pass to go too, got %d rows", orphans)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r = openTest(t, path, 2)
	defer r.Close()
	counts, err := r.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["web"] != 2 || counts["console"] != 1 {
		t.Fatalf("unexpected counts after reopen: %v", counts)
	}
	r.Record(samplePass("fourth", "web", base.Add(3*time.Minute)))
	entries, err = r.Recent("web", 10)
	if err != nil || len(entries) != 2 || entries[0].ID != "fourth" || entries[1].ID != "third" {
		t.Fatalf("expected the window to keep rolling after reopen, got %+v (%v)", entries, err)
	}
}

func TestRecordConcurrentWithRecent(t *testing.T) {
	r := openTest(t, filepath.Join(t.TempDir(), "passes.db"), 5)
	defer r.Close()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Record(samplePass(fmt.Sprintf("p%d", i), "web", time.Now()))
		}(i)
		go func() {
			defer wg.Done()
			if _, err := r.Recent("web", 10); err != nil {
				t.Errorf("Recent: %v", err)
			}
		}()
	}
	wg.Wait()
	counts, err := r.Counts()
	if err != nil || counts["web"] != 5 {
		t.Fatalf("expected the window to hold five passes, got %v (%v)", counts, err)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Record(samplePass("x", "web", time.Now()))
	if entries, err := r.Recent("", 5); err != nil || entries != nil {
		t.Fatalf("expected no entries, got %v %v", entries, err)
	}
	if counts, err := r.Counts(); err != nil || len(counts) != 0 {
		t.Fatalf("expected empty counts, got %v (%v)", counts, err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsBadArguments(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "p.db"), 0, nil); err == nil {
		t.Fatalf("expected limit error")
	}
	if _, err := Open("  ", 5, nil); err == nil {
		t.Fatalf("expected path error")
	}
}

func TestPreflightHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthy.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec("create table t (id integer)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	res, err := Preflight(path, time.Second, nil)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if !res.Healthy || res.Quarantined {
		t.Fatalf("expected healthy preflight, got %+v", res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected db to remain: %v", err)
	}
}

func TestOpenQuarantinesCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passes.db")
	if err := os.WriteFile(path, []byte("not a sqlite database"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	var logged []string
	r, err := Open(path, 5, func(format string, args ...any) {
		logged = append(logged, format)
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	bad, _ := filepath.Glob(path + ".bad-*")
	if len(bad) == 0 {
		t.Fatalf("expected corrupt database to be moved aside")
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "preflight") {
		t.Fatalf("expected one preflight log, got %v", logged)
	}
	r.Record(samplePass("fresh", "web", time.Now()))
	if entries, err := r.Recent("web", 1); err != nil || len(entries) != 1 {
		t.Fatalf("expected fresh database to accept passes: %v %v", entries, err)
	}
}
