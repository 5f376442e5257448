// Package dataset defines the read-only shapes the dashboard renders: enrollment
// history, forecast rows, backtest and classification metrics, and the auxiliary
// interest table.
package dataset

// Column names as they appear in the input files.
const (
	ColSemester    = "Admit_Semester"
	ColEnrollments = "Enrollments"
	ColPredicted   = "Predicted_Enrollments"
	ColYear        = "Year"
	ColLearners    = "Learners"
)

// JSON field names of the metric records.
const (
	FieldMAE            = "MAE"
	FieldRMSE           = "RMSE"
	FieldMAPE           = "MAPE_%"
	FieldAccuracy       = "Accuracy"
	FieldPrecisionMacro = "Precision_macro"
	FieldRecallMacro    = "Recall_macro"
	FieldF1Macro        = "F1_macro"
)

// Table is a parsed CSV: a header row plus data rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of a column, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether every named column exists.
func (t Table) Has(names ...string) bool {
	for _, n := range names {
		if t.Index(n) < 0 {
			return false
		}
	}
	return true
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Renamed returns a copy of the table with header labels replaced per mapping.
// Rows are shared with the receiver; neither is mutated afterwards.
func (t Table) Renamed(mapping map[string]string) Table {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if label, ok := mapping[c]; ok {
			cols[i] = label
			continue
		}
		cols[i] = c
	}
	return Table{Columns: cols, Rows: t.Rows}
}

// SemesterValue is one point of an enrollment series.
type SemesterValue struct {
	Semester string
	Value    int64
}

// History is the ordered list of actual enrollments; the last row is the most
// recent actual.
type History struct {
	Rows []SemesterValue
}

// Last returns the most recent actual.
func (h History) Last() SemesterValue {
	return h.Rows[len(h.Rows)-1]
}

// Forecast is the ordered list of predicted enrollments; the first row is the
// nearest future semester. Raw keeps every column of the source file.
type Forecast struct {
	Rows []SemesterValue
	Raw  Table
}

// Next returns the nearest future semester.
func (f Forecast) Next() SemesterValue {
	return f.Rows[0]
}

// BacktestMetrics are hold-out errors of the enrollment forecast.
type BacktestMetrics struct {
	MAE         float64
	RMSE        float64
	MAPEPercent float64
}

// ClassificationMetrics summarize the final-status classifier.
type ClassificationMetrics struct {
	Accuracy       float64
	PrecisionMacro float64
	RecallMacro    float64
	F1Macro        float64
}

// Interest is the raw auxiliary table. Its columns are only checked when a
// panel renders it.
type Interest struct {
	Table Table
}
