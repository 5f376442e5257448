// Package loader parses the dashboard's CSV and JSON inputs. Every loader
// returns an Outcome: either a schema-checked, non-empty value or an absent
// value with a human-readable reason. Loaders never return errors.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"enrolldash/dataset"

	"github.com/agnivade/levenshtein"
	jsoniter "github.com/json-iterator/go"
)

const utf8BOM = "\ufeff"

// maxSuggestDistance bounds how far a header may be from a required column
// before it stops being offered as a suggestion.
const maxSuggestDistance = 3

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome pairs a possibly-absent value with the reason it is absent.
type Outcome[T any] struct {
	Value  dataset.Optional[T]
	Reason string
}

func present[T any](v T) Outcome[T] {
	return Outcome[T]{Value: dataset.Some(v)}
}

func absent[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{Value: dataset.None[T](), Reason: fmt.Sprintf(format, args...)}
}

// ReadCSV parses a header row followed by data rows of the same width.
// Header cells are trimmed and a leading UTF-8 BOM is dropped.
func ReadCSV(r io.Reader) (dataset.Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return dataset.Table{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return dataset.Table{}, errors.New("parse csv: no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.TrimSpace(h)
	}
	return dataset.Table{Columns: header, Rows: records[1:]}, nil
}

// ReadJSON parses a single JSON object, keeping each field's raw text.
func ReadJSON(r io.Reader) (map[string]json.RawMessage, error) {
	var record map[string]json.RawMessage
	if err := jsonAPI.NewDecoder(r).Decode(&record); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if record == nil {
		return nil, errors.New("parse json: not an object")
	}
	return record, nil
}

// LoadHistory parses enrollment history (Admit_Semester, Enrollments).
func LoadHistory(r io.Reader) Outcome[dataset.History] {
	rows, reason := semesterSeries(r, dataset.ColEnrollments)
	if reason != "" {
		return absent[dataset.History]("history: %s", reason)
	}
	return present(dataset.History{Rows: rows.values})
}

// LoadForecast parses forecast numbers (Admit_Semester, Predicted_Enrollments).
func LoadForecast(r io.Reader) Outcome[dataset.Forecast] {
	rows, reason := semesterSeries(r, dataset.ColPredicted)
	if reason != "" {
		return absent[dataset.Forecast]("forecast: %s", reason)
	}
	return present(dataset.Forecast{Rows: rows.values, Raw: rows.table})
}

// LoadBacktest parses the forecast backtest record {MAE, RMSE, MAPE_%}.
func LoadBacktest(r io.Reader) Outcome[dataset.BacktestMetrics] {
	fields, reason := metricRecord(r, dataset.FieldMAE, dataset.FieldRMSE, dataset.FieldMAPE)
	if reason != "" {
		return absent[dataset.BacktestMetrics]("backtest metrics: %s", reason)
	}
	return present(dataset.BacktestMetrics{
		MAE:         fields[dataset.FieldMAE],
		RMSE:        fields[dataset.FieldRMSE],
		MAPEPercent: fields[dataset.FieldMAPE],
	})
}

// LoadClassification parses {Accuracy, Precision_macro, Recall_macro, F1_macro}.
func LoadClassification(r io.Reader) Outcome[dataset.ClassificationMetrics] {
	fields, reason := metricRecord(r,
		dataset.FieldAccuracy, dataset.FieldPrecisionMacro, dataset.FieldRecallMacro, dataset.FieldF1Macro)
	if reason != "" {
		return absent[dataset.ClassificationMetrics]("classification metrics: %s", reason)
	}
	return present(dataset.ClassificationMetrics{
		Accuracy:       fields[dataset.FieldAccuracy],
		PrecisionMacro: fields[dataset.FieldPrecisionMacro],
		RecallMacro:    fields[dataset.FieldRecallMacro],
		F1Macro:        fields[dataset.FieldF1Macro],
	})
}

// LoadInterest parses the auxiliary interest table. Column checks are left to
// the context panel; only parse failures and empty tables are absent here.
func LoadInterest(r io.Reader) Outcome[dataset.Interest] {
	table, err := ReadCSV(r)
	if err != nil {
		return absent[dataset.Interest]("interest: %v", err)
	}
	if table.Len() == 0 {
		return absent[dataset.Interest]("interest: no rows")
	}
	return present(dataset.Interest{Table: table})
}

// ParseCount parses an integer cell. Float text is accepted and truncated
// toward zero.
func ParseCount(cell string) (int64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, errors.New("empty value")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= 1<<63 || f < math.MinInt64 {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return int64(math.Trunc(f)), nil
}

type series struct {
	values []dataset.SemesterValue
	table  dataset.Table
}

func semesterSeries(r io.Reader, valueCol string) (series, string) {
	table, err := ReadCSV(r)
	if err != nil {
		return series{}, err.Error()
	}
	if reason := requireColumns(table, dataset.ColSemester, valueCol); reason != "" {
		return series{}, reason
	}
	if table.Len() == 0 {
		return series{}, "no rows"
	}
	semIdx := table.Index(dataset.ColSemester)
	valIdx := table.Index(valueCol)
	values := make([]dataset.SemesterValue, 0, table.Len())
	for i, row := range table.Rows {
		v, err := ParseCount(row[valIdx])
		if err != nil {
			// header is line 1
			return series{}, fmt.Sprintf("line %d column %s: %v", i+2, valueCol, err)
		}
		values = append(values, dataset.SemesterValue{Semester: strings.TrimSpace(row[semIdx]), Value: v})
	}
	return series{values: values, table: table}, ""
}

func requireColumns(table dataset.Table, names ...string) string {
	var missing []string
	for _, name := range names {
		if table.Index(name) >= 0 {
			continue
		}
		missing = append(missing, describeMissing(name, table.Columns))
	}
	if len(missing) == 0 {
		return ""
	}
	return "missing column " + strings.Join(missing, ", ")
}

func metricRecord(r io.Reader, names ...string) (map[string]float64, string) {
	record, err := ReadJSON(r)
	if err != nil {
		return nil, err.Error()
	}
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	out := make(map[string]float64, len(names))
	var problems []string
	for _, name := range names {
		raw, ok := record[name]
		if !ok {
			problems = append(problems, "missing field "+describeMissing(name, keys))
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("field %q is not a number: %s", name, raw))
			continue
		}
		out[name] = v
	}
	if len(problems) > 0 {
		return nil, strings.Join(problems, "; ")
	}
	return out, ""
}

// describeMissing quotes a missing name and, when one is close enough, the
// existing name it was probably meant to be.
func describeMissing(name string, have []string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, h := range have {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(h))
		if d < bestDist {
			best, bestDist = h, d
		}
	}
	if best == "" {
		return strconv.Quote(name)
	}
	return fmt.Sprintf("%q (closest: %q)", name, best)
}
