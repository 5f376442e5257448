package dashboard

import (
	"math"
	"strconv"
	"strings"

	"enrolldash/dataset"
	"enrolldash/inputs"
)

const (
	contextTitle       = "Lebanon AI & DS interest (context)"
	contextChartTitle  = "AI/DS Learners in Lebanon"
	contextInstruction = "- Upload `ai_ds_interest_lebanon.csv` (Year, Learners) to visualize demand."
	noInterestInfo     = "No interest file uploaded yet."
)

// Bar is one category of the interest chart.
type Bar struct {
	Label string
	Value float64
}

// Context is the expandable research-context panel. Instructions is markdown
// and is always shown; Bars is empty when Info is set.
type Context struct {
	Title        string
	Instructions string
	ChartTitle   string
	Bars         []Bar
	Info         string
}

// HasChart reports whether the bar chart should be drawn.
func (c Context) HasChart() bool {
	return len(c.Bars) > 0
}

// BuildContext gates the bar chart on the Year and Learners columns.
func BuildContext(in inputs.Inputs) Context {
	c := Context{
		Title:        contextTitle,
		Instructions: contextInstruction,
		ChartTitle:   contextChartTitle,
		Info:         noInterestInfo,
	}
	interest, ok := in.Interest.Get()
	if !ok {
		return c
	}
	bars, ok := interestBars(interest.Table)
	if !ok {
		return c
	}
	c.Bars = bars
	c.Info = ""
	return c
}

func interestBars(t dataset.Table) ([]Bar, bool) {
	if !t.Has(dataset.ColYear, dataset.ColLearners) || t.Len() == 0 {
		return nil, false
	}
	yearIdx := t.Index(dataset.ColYear)
	learnIdx := t.Index(dataset.ColLearners)
	bars := make([]Bar, 0, t.Len())
	for _, row := range t.Rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[learnIdx]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		bars = append(bars, Bar{Label: strings.TrimSpace(row[yearIdx]), Value: v})
	}
	return bars, true
}
