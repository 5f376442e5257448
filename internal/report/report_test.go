package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"enrolldash/inputs"
	"enrolldash/loader"
	"enrolldash/stats"

	"github.com/google/go-cmp/cmp"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func writeDefaults(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"enrollments_history_clean.csv":  "Admit_Semester,Enrollments\nFall 2022,90\nFall 2023,100\n",
		"forecast_semester_numbers.csv":  "Admit_Semester,Predicted_Enrollments\nSpring 2024,120\nFall 2024,1300\n",
		"forecast_backtest_metrics.json": `{"MAE":12.3456,"RMSE":15,"MAPE_%":7.125}`,
		"ai_ds_interest_lebanon.csv":     "Year,Learners\n2022,500\n2023,650.5\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newResolver(dir string, tracker *stats.Tracker) *inputs.Resolver {
	return inputs.NewResolver(dir, inputs.DefaultFilenames(), tracker, func(string, ...any) {})
}

func TestGenerateWritesTextToStdout(t *testing.T) {
	dir := t.TempDir()
	writeDefaults(t, dir)
	tracker := stats.NewTracker()
	var out bytes.Buffer

	res, err := Generate(Options{
		Resolver: newResolver(dir, tracker),
		Stdout:   &out,
		Tracker:  tracker,
		Logger:   nopLogger{},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ReportPath != "" {
		t.Fatalf("expected stdout report, got path %q", res.ReportPath)
	}
	text := out.String()
	for _, want := range []string{
		"AI & DS Enrollment Forecast Dashboard",
		"Next Semester (Spring 2024)",
		"+20.0%",
		"2 semesters",
		"7.1%",
		"1300",
		"Fall 2024",
		"12.35",
		"7.12",
		"No classification metrics file.",
		"650.5",
		"classification",
		"absent",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected report to contain %q:\n%s", want, text)
		}
	}
	if tracker.GetSurfaceCounts()["report"] != 1 {
		t.Fatalf("expected one report pass, got %v", tracker.GetSurfaceCounts())
	}
}

func TestGenerateWritesFiles(t *testing.T) {
	dir := t.TempDir()
	writeDefaults(t, dir)
	outDir := t.TempDir()
	fixed := time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)

	res, err := Generate(Options{
		Resolver:  newResolver(dir, nil),
		ReportOut: filepath.Join(outDir, "report.txt"),
		JSONOut:   filepath.Join(outDir, "nested", "summary.json"),
		ChartDir:  filepath.Join(outDir, "charts"),
		Now:       func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.ChartPaths) != 2 {
		t.Fatalf("expected trend and interest charts, got %v", res.ChartPaths)
	}
	for _, p := range res.ChartPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read chart: %v", err)
		}
		if !bytes.Contains(data, []byte("<svg")) {
			t.Fatalf("expected SVG in %s", p)
		}
	}

	data, err := os.ReadFile(res.JSONPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var got struct {
		GeneratedUTC string `json:"generated_utc"`
		Trend        []struct {
			Semester string `json:"semester"`
			Value    int64  `json:"value"`
			Type     string `json:"type"`
		} `json:"trend"`
		Inputs map[string]struct {
			Origin string `json:"origin"`
		} `json:"inputs"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if got.GeneratedUTC != "2026-05-04T09:00:00Z" {
		t.Fatalf("unexpected timestamp %q", got.GeneratedUTC)
	}
	types := make([]string, 0, len(got.Trend))
	for _, p := range got.Trend {
		types = append(types, p.Type)
	}
	if diff := cmp.Diff([]string{"Actual", "Actual", "Forecast", "Forecast"}, types); diff != "" {
		t.Fatalf("trend types mismatch (-want +got):\n%s", diff)
	}
	if got.Inputs["classification"].Origin != "absent" || got.Inputs["history"].Origin != "default" {
		t.Fatalf("unexpected input origins %+v", got.Inputs)
	}

	text, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(text), "Model Quality") {
		t.Fatalf("expected quality section in report")
	}
}

func TestGenerateHonorsOverrides(t *testing.T) {
	dir := t.TempDir()
	writeDefaults(t, dir)
	var out bytes.Buffer

	_, err := Generate(Options{
		Resolver: newResolver(dir, nil),
		Overrides: inputs.Overrides{
			inputs.History: loader.BytesSource{Label: "inline", Data: []byte("Admit_Semester,Enrollments\nFall 2023,100\n")},
			inputs.Interest: loader.BytesSource{Label: "inline", Data: []byte("Year,Learners\n2022,lots\n")},
		},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "No interest file uploaded yet.") {
		t.Fatalf("expected non-numeric learners to hide the chart:\n%s", text)
	}
	if !strings.Contains(text, "override") {
		t.Fatalf("expected override origin in inputs table")
	}
}

func TestGenerateWithoutData(t *testing.T) {
	var out bytes.Buffer
	_, err := Generate(Options{Resolver: newResolver(t.TempDir(), nil), Stdout: &out})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text := out.String()
	for _, want := range []string{"No enrollment history yet.", "No forecast metrics yet.", "—"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in report:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Upcoming Enrollment") {
		t.Fatalf("expected forecast table to be omitted")
	}
}

func TestGenerateRequiresResolver(t *testing.T) {
	if _, err := Generate(Options{}); err == nil {
		t.Fatalf("expected error without resolver")
	}
}
