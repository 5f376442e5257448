package ui

import (
	"fmt"
	"math"
	"strings"

	"enrolldash/dashboard"
	"enrolldash/inputs"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rivo/tview"
)

const maxBarWidth = 40

func headerText(page dashboard.Page) string {
	return accentText(tview.Escape(page.Title)) + "\n" + tview.Escape(page.Caption)
}

func kpiText(kpis []dashboard.KPI) string {
	var b strings.Builder
	for i, k := range kpis {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-26s [::b]%s[::-]", tview.Escape(k.Label), tview.Escape(k.Value))
		if k.Delta != "" {
			color := "green"
			if strings.HasPrefix(k.Delta, "-") {
				color = "red"
			}
			fmt.Fprintf(&b, "  [%s]%s[-]", color, tview.Escape(k.Delta))
		}
	}
	return b.String()
}

func trendText(t dashboard.Trend) string {
	if !t.HasChart() {
		return tview.Escape(t.Info)
	}
	rows := make([][]string, 0, len(t.Points))
	for _, p := range t.Points {
		rows = append(rows, []string{p.Semester, humanize.Comma(p.Value), p.Type})
	}
	return renderTable([]string{"Admit_Semester", "Enrollments", "Type"}, rows)
}

func forecastText(t *dashboard.TableView) string {
	if t == nil {
		return ""
	}
	return renderTable(t.Columns, t.Rows)
}

func qualityText(q dashboard.Quality) string {
	return panelText(q.Backtest) + "\n" + panelText(q.Classification)
}

func panelText(p dashboard.Panel) string {
	if p.Table == nil {
		return tview.Escape(p.Info) + "\n"
	}
	return accentText(tview.Escape(p.Title)) + "\n" + renderTable(p.Table.Columns, p.Table.Rows)
}

// contextText draws the learners series as horizontal bars scaled to the
// largest value.
func contextText(c dashboard.Context) string {
	var b strings.Builder
	b.WriteString(tview.Escape(strings.TrimPrefix(c.Instructions, "- ")))
	b.WriteString("\n\n")
	if !c.HasChart() {
		b.WriteString(tview.Escape(c.Info))
		return b.String()
	}
	b.WriteString(accentText(tview.Escape(c.ChartTitle)) + "\n")
	peak := 0.0
	labelWidth := 0
	for _, bar := range c.Bars {
		peak = math.Max(peak, bar.Value)
		if n := len(bar.Label); n > labelWidth {
			labelWidth = n
		}
	}
	for _, bar := range c.Bars {
		fmt.Fprintf(&b, "%-*s %s %s\n", labelWidth, tview.Escape(bar.Label),
			strings.Repeat("█", barWidth(bar.Value, peak)), humanize.Commaf(bar.Value))
	}
	return b.String()
}

func barWidth(v, peak float64) int {
	if v <= 0 || peak <= 0 {
		return 0
	}
	n := int(math.Round(v / peak * maxBarWidth))
	if n == 0 {
		n = 1
	}
	return n
}

func inputsText(in inputs.Inputs) string {
	var b strings.Builder
	for _, name := range inputs.Names {
		st := in.Status[name]
		origin := st.Origin
		if origin == "" {
			origin = inputs.OriginAbsent
		}
		color := "green"
		switch origin {
		case inputs.OriginOverride:
			color = "yellow"
		case inputs.OriginAbsent:
			color = "red"
		}
		fmt.Fprintf(&b, "%-15s [%s]%s[-]", string(name), color, origin)
		if st.Reason != "" {
			b.WriteString(" " + tview.Escape(st.Reason))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderTable(header []string, rows [][]string) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return tview.Escape(b.String())
}

func statsText(lines []string) string {
	escaped := make([]string, 0, len(lines))
	for _, line := range lines {
		escaped = append(escaped, tview.Escape(line))
	}
	return strings.Join(escaped, "\n")
}
