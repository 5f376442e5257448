// Package report renders a dashboard Page as plain-text tables and a JSON
// summary, for use outside the browser.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"enrolldash/chart"
	"enrolldash/dashboard"
	"enrolldash/inputs"
	"enrolldash/stats"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
)

const surfaceName = "report"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Logger is the subset of *log.Logger the report uses.
type Logger interface {
	Printf(format string, args ...any)
}

// Options selects the inputs and the outputs of one report.
type Options struct {
	Resolver  *inputs.Resolver
	Overrides inputs.Overrides
	Page      dashboard.Options
	// ReportOut is the text report path; empty writes to Stdout.
	ReportOut string
	// JSONOut and ChartDir are skipped when empty.
	JSONOut   string
	ChartDir  string
	ChartSize chart.Size
	Stdout    io.Writer
	Tracker   *stats.Tracker
	Logger    Logger
	Now       func() time.Time
}

// Result lists the files a report wrote.
type Result struct {
	ReportPath string
	JSONPath   string
	ChartPaths []string
	Inputs     inputs.Inputs
}

// Generate runs one render pass and writes the requested outputs.
func Generate(opts Options) (Result, error) {
	var result Result
	if opts.Resolver == nil {
		return result, fmt.Errorf("report: resolver is required")
	}
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger.Printf(format, args...)
		}
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	in := opts.Resolver.Resolve(opts.Overrides)
	page := dashboard.Render(in, opts.Page)
	result.Inputs = in
	opts.Tracker.IncrementPass(surfaceName)
	logf("Render pass (report): %s", in.Summary())

	if out := strings.TrimSpace(opts.ReportOut); out != "" {
		if err := writeFile(out, func(w io.Writer) error { return WriteText(w, page, in) }); err != nil {
			return result, err
		}
		result.ReportPath = out
	} else {
		stdout := opts.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		if err := WriteText(stdout, page, in); err != nil {
			return result, err
		}
	}

	if out := strings.TrimSpace(opts.JSONOut); out != "" {
		summary := BuildSummary(page, in, now())
		if err := writeFile(out, func(w io.Writer) error { return WriteJSON(w, summary) }); err != nil {
			return result, err
		}
		result.JSONPath = out
	}

	if dir := strings.TrimSpace(opts.ChartDir); dir != "" {
		paths, err := writeCharts(dir, page, opts.ChartSize)
		if err != nil {
			return result, err
		}
		result.ChartPaths = paths
	}
	return result, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeCharts(dir string, page dashboard.Page, size chart.Size) ([]string, error) {
	var paths []string
	if page.Trend.HasChart() {
		svg, err := chart.TrendSVG(page.Trend, size)
		if err != nil {
			return paths, err
		}
		p := filepath.Join(dir, "trend.svg")
		if err := writeFile(p, func(w io.Writer) error { _, err := w.Write(svg); return err }); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	if page.Context.HasChart() {
		svg, err := chart.BarsSVG(page.Context.ChartTitle, page.Context.Bars, size)
		if err != nil {
			return paths, err
		}
		p := filepath.Join(dir, "interest.svg")
		if err := writeFile(p, func(w io.Writer) error { _, err := w.Write(svg); return err }); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteText renders every section of the page in display order, followed by
// where each input came from.
func WriteText(w io.Writer, page dashboard.Page, in inputs.Inputs) error {
	var b strings.Builder
	b.WriteString(page.Title + "\n")
	b.WriteString(page.Caption + "\n\n")

	rows := make([][]string, 0, len(page.KPIs))
	for _, k := range page.KPIs {
		rows = append(rows, []string{k.Label, k.Value, k.Delta})
	}
	writeTable(&b, []string{"Metric", "Value", "Delta"}, rows)

	b.WriteString("\n" + page.Trend.Title + "\n")
	if page.Trend.HasChart() {
		rows = rows[:0]
		for _, p := range page.Trend.Points {
			rows = append(rows, []string{p.Semester, strconv.FormatInt(p.Value, 10), p.Type})
		}
		writeTable(&b, []string{"Admit_Semester", "Enrollments", "Type"}, rows)
	} else {
		b.WriteString(page.Trend.Info + "\n")
	}

	if page.Forecast != nil {
		b.WriteString("\n" + page.Forecast.Title + "\n")
		writeTable(&b, page.Forecast.Columns, page.Forecast.Rows)
	}

	b.WriteString("\n" + page.Quality.Title + "\n")
	writePanel(&b, page.Quality.Backtest)
	writePanel(&b, page.Quality.Classification)

	b.WriteString("\n" + page.Context.Title + "\n")
	b.WriteString(page.Context.Instructions + "\n")
	if page.Context.HasChart() {
		rows = rows[:0]
		for _, item := range page.Context.Bars {
			rows = append(rows, []string{item.Label, strconv.FormatFloat(item.Value, 'f', -1, 64)})
		}
		b.WriteString(page.Context.ChartTitle + "\n")
		writeTable(&b, []string{"Year", "Learners"}, rows)
	} else {
		b.WriteString(page.Context.Info + "\n")
	}

	b.WriteString("\nInputs\n")
	rows = rows[:0]
	for _, name := range inputs.Names {
		st := in.Status[name]
		origin := st.Origin
		if origin == "" {
			origin = inputs.OriginAbsent
		}
		rows = append(rows, []string{string(name), string(origin), st.Source, st.Reason})
	}
	writeTable(&b, []string{"Input", "Origin", "Source", "Reason"}, rows)

	_, err := io.WriteString(w, b.String())
	return err
}

func writePanel(b *strings.Builder, p dashboard.Panel) {
	if p.Table == nil {
		b.WriteString(p.Info + "\n")
		return
	}
	b.WriteString(p.Title + "\n")
	writeTable(b, p.Table.Columns, p.Table.Rows)
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// Summary is the machine-readable form of one pass.
type Summary struct {
	GeneratedUTC string                `json:"generated_utc"`
	Title        string                `json:"title"`
	KPIs         []kpi                 `json:"kpis"`
	Trend        []trendPoint          `json:"trend"`
	Forecast     *tableSummary         `json:"forecast,omitempty"`
	Backtest     *tableSummary         `json:"backtest,omitempty"`
	Classifier   *tableSummary         `json:"classification,omitempty"`
	Interest     []bar                 `json:"interest,omitempty"`
	Inputs       map[string]inputState `json:"inputs"`
}

type kpi struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Delta string `json:"delta,omitempty"`
}

type bar struct {
	Year     string  `json:"year"`
	Learners float64 `json:"learners"`
}

type trendPoint struct {
	Semester string `json:"semester"`
	Value    int64  `json:"value"`
	Type     string `json:"type"`
}

type tableSummary struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type inputState struct {
	Origin string `json:"origin"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// BuildSummary flattens a rendered page into a Summary stamped with now.
func BuildSummary(page dashboard.Page, in inputs.Inputs, now time.Time) Summary {
	s := Summary{
		GeneratedUTC: now.UTC().Format(time.RFC3339),
		Title:        page.Title,
		Inputs:       make(map[string]inputState, len(inputs.Names)),
	}
	for _, k := range page.KPIs {
		s.KPIs = append(s.KPIs, kpi{Label: k.Label, Value: k.Value, Delta: k.Delta})
	}
	for _, b := range page.Context.Bars {
		s.Interest = append(s.Interest, bar{Year: b.Label, Learners: b.Value})
	}
	for _, p := range page.Trend.Points {
		s.Trend = append(s.Trend, trendPoint{Semester: p.Semester, Value: p.Value, Type: p.Type})
	}
	s.Forecast = summarizeTable(page.Forecast)
	s.Backtest = summarizeTable(page.Quality.Backtest.Table)
	s.Classifier = summarizeTable(page.Quality.Classification.Table)
	for _, name := range inputs.Names {
		st := in.Status[name]
		origin := st.Origin
		if origin == "" {
			origin = inputs.OriginAbsent
		}
		s.Inputs[string(name)] = inputState{Origin: string(origin), Source: st.Source, Reason: st.Reason}
	}
	return s
}

func summarizeTable(t *dashboard.TableView) *tableSummary {
	if t == nil {
		return nil
	}
	return &tableSummary{Columns: t.Columns, Rows: t.Rows}
}

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	data, err := jsonAPI.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
