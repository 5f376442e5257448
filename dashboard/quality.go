package dashboard

import (
	"strconv"

	"enrolldash/inputs"
)

const (
	qualityTitle        = "Model Quality"
	backtestTitle       = "Forecast Backtest (hold-out)"
	classificationTitle = "Classification (Final Status)"
	noBacktestInfo      = "No forecast metrics yet."
	noClassInfo         = "No classification metrics file."
)

// Quality holds the two metric sub-panels.
type Quality struct {
	Title          string
	Backtest       Panel
	Classification Panel
}

// Panel is a titled one-row table, or Info when its data is absent.
type Panel struct {
	Title string
	Table *TableView
	Info  string
}

// BuildQuality renders each metric record independently.
func BuildQuality(in inputs.Inputs) Quality {
	q := Quality{
		Title:          qualityTitle,
		Backtest:       Panel{Title: backtestTitle, Info: noBacktestInfo},
		Classification: Panel{Title: classificationTitle, Info: noClassInfo},
	}
	if m, ok := in.Backtest.Get(); ok {
		q.Backtest = Panel{
			Title: backtestTitle,
			Table: &TableView{
				Columns: []string{"MAE", "RMSE", "MAPE (%)"},
				Rows:    [][]string{{Round(m.MAE, 2), Round(m.RMSE, 2), Round(m.MAPEPercent, 2)}},
			},
		}
	}
	if m, ok := in.Classification.Get(); ok {
		q.Classification = Panel{
			Title: classificationTitle,
			Table: &TableView{
				Columns: []string{"Accuracy", "Precision (macro)", "Recall (macro)", "F1 (macro)"},
				Rows: [][]string{{
					Round(m.Accuracy, 3), Round(m.PrecisionMacro, 3), Round(m.RecallMacro, 3), Round(m.F1Macro, 3),
				}},
			},
		}
	}
	return q
}

// Round formats v with exactly places decimals, correctly rounded from the
// exact binary value (the same digits Python's round produces).
func Round(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
