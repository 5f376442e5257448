// Package dashboard turns resolved inputs into a Page: a surface-neutral
// description of everything the dashboard shows, in display order. Render does
// no I/O; the web, console and report surfaces draw the same Page.
package dashboard

import "enrolldash/inputs"

// Placeholder stands in for any KPI whose inputs are absent.
const Placeholder = "—"

const (
	DefaultTitle   = "AI & DS Enrollment Forecast Dashboard"
	DefaultCaption = "Clean KPIs • Clear Forecast • Research context for Lebanon"
)

// Options carries page-level text that does not come from the inputs.
type Options struct {
	Title   string
	Caption string
}

// Page is the full render of one pass.
type Page struct {
	Title   string
	Caption string
	KPIs    []KPI
	Trend   Trend
	// Forecast is nil when the section is omitted.
	Forecast *TableView
	Quality  Quality
	Context  Context
}

// TableView is a labeled grid of display strings.
type TableView struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Render builds the page for one render pass.
func Render(in inputs.Inputs, opts Options) Page {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	caption := opts.Caption
	if caption == "" {
		caption = DefaultCaption
	}
	return Page{
		Title:    title,
		Caption:  caption,
		KPIs:     BuildKPIs(in),
		Trend:    BuildTrend(in),
		Forecast: BuildForecastTable(in),
		Quality:  BuildQuality(in),
		Context:  BuildContext(in),
	}
}
