package dashboard

import (
	"fmt"

	"enrolldash/inputs"

	"github.com/dustin/go-humanize"
)

// KPI is one labeled metric card. Delta is empty when there is none.
type KPI struct {
	Label string
	Value string
	Delta string
}

const (
	labelLastActual   = "Last Actual (students)"
	labelNextFallback = "Next Semester (forecast)"
	labelHorizon      = "Forecast Horizon"
	labelMAPE         = "Backtest MAPE"
)

// BuildKPIs returns the four cards in display order: last actual, next
// semester, forecast horizon, backtest MAPE.
func BuildKPIs(in inputs.Inputs) []KPI {
	return []KPI{
		lastActualKPI(in),
		nextSemesterKPI(in),
		horizonKPI(in),
		mapeKPI(in),
	}
}

func lastActualKPI(in inputs.Inputs) KPI {
	h, ok := in.History.Get()
	if !ok {
		return KPI{Label: labelLastActual, Value: Placeholder}
	}
	return KPI{Label: labelLastActual, Value: humanize.Comma(h.Last().Value)}
}

func nextSemesterKPI(in inputs.Inputs) KPI {
	h, hok := in.History.Get()
	f, fok := in.Forecast.Get()
	if !hok || !fok {
		return KPI{Label: labelNextFallback, Value: Placeholder}
	}
	next := f.Next()
	return KPI{
		Label: fmt.Sprintf("Next Semester (%s)", next.Semester),
		Value: humanize.Comma(next.Value),
		Delta: FormatGrowth(Growth(h.Last().Value, next.Value)),
	}
}

func horizonKPI(in inputs.Inputs) KPI {
	f, ok := in.Forecast.Get()
	if !ok {
		return KPI{Label: labelHorizon, Value: Placeholder}
	}
	return KPI{Label: labelHorizon, Value: fmt.Sprintf("%d semesters", len(f.Rows))}
}

func mapeKPI(in inputs.Inputs) KPI {
	m, ok := in.Backtest.Get()
	if !ok {
		return KPI{Label: labelMAPE, Value: Placeholder}
	}
	return KPI{Label: labelMAPE, Value: fmt.Sprintf("%.1f%%", m.MAPEPercent)}
}

// Growth is the percentage change from last to next. A zero last actual
// yields 0 rather than an undefined ratio; the divisor is floored at 1.
func Growth(last, next int64) float64 {
	if last == 0 {
		return 0
	}
	return float64(next-last) / float64(max(1, last)) * 100
}

// FormatGrowth renders a signed one-decimal percentage.
func FormatGrowth(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}
