package dashboard

import (
	"enrolldash/dataset"
	"enrolldash/inputs"
)

const forecastTableTitle = "Upcoming Enrollment (clean numbers)"

var forecastLabels = map[string]string{
	dataset.ColSemester:  "Admit Semester",
	dataset.ColPredicted: "Predicted Enrollments",
}

// BuildForecastTable returns the raw forecast rows with readable headers, or
// nil when there is no forecast.
func BuildForecastTable(in inputs.Inputs) *TableView {
	f, ok := in.Forecast.Get()
	if !ok {
		return nil
	}
	renamed := f.Raw.Renamed(forecastLabels)
	return &TableView{
		Title:   forecastTableTitle,
		Columns: renamed.Columns,
		Rows:    renamed.Rows,
	}
}
