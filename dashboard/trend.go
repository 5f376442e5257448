package dashboard

import (
	"enrolldash/dataset"
	"enrolldash/inputs"
)

// Series types of the trend chart.
const (
	TypeActual   = "Actual"
	TypeForecast = "Forecast"
)

const (
	trendTitle     = "Enrollment Trend (Historical & Forecast)"
	noHistoryTitle = "No enrollment history yet. Upload 'enrollments_history_clean.csv' or add a semester mapping in Colab."
)

// TrendPoint is one row of the combined series.
type TrendPoint struct {
	Semester string
	Value    int64
	Type     string
}

// Trend is the combined Actual+Forecast series. When Points is empty, Info
// holds the message to show instead of a chart.
type Trend struct {
	Title  string
	Points []TrendPoint
	Info   string
}

// Series is the subset of points sharing one Type, in original order.
type Series struct {
	Name   string
	Points []TrendPoint
}

// BuildTrend concatenates history rows (Actual) and forecast rows (Forecast),
// Actual first. History is required; forecast is optional.
func BuildTrend(in inputs.Inputs) Trend {
	h, ok := in.History.Get()
	if !ok {
		return Trend{Title: trendTitle, Info: noHistoryTitle}
	}
	var forecast []dataset.SemesterValue
	if f, ok := in.Forecast.Get(); ok {
		forecast = f.Rows
	}
	points := make([]TrendPoint, 0, len(h.Rows)+len(forecast))
	for _, row := range h.Rows {
		points = append(points, TrendPoint{Semester: row.Semester, Value: row.Value, Type: TypeActual})
	}
	for _, row := range forecast {
		points = append(points, TrendPoint{Semester: row.Semester, Value: row.Value, Type: TypeForecast})
	}
	return Trend{Title: trendTitle, Points: points}
}

// HasChart reports whether there is anything to plot.
func (t Trend) HasChart() bool {
	return len(t.Points) > 0
}

// ByType splits the points into one series per Type, in first-seen order.
func (t Trend) ByType() []Series {
	var out []Series
	index := make(map[string]int)
	for _, p := range t.Points {
		i, ok := index[p.Type]
		if !ok {
			i = len(out)
			index[p.Type] = i
			out = append(out, Series{Name: p.Type})
		}
		out[i].Points = append(out[i].Points, p)
	}
	return out
}
