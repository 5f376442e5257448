package ui

import (
	"strings"
	"testing"

	"enrolldash/dashboard"
	"enrolldash/dataset"
	"enrolldash/inputs"
)

func samplePage() (dashboard.Page, inputs.Inputs) {
	in := inputs.Inputs{
		History: dataset.Some(dataset.History{Rows: []dataset.SemesterValue{
			{Semester: "Fall 2023", Value: 1000},
		}}),
		Forecast: dataset.Some(dataset.Forecast{
			Rows: []dataset.SemesterValue{{Semester: "Spring 2024", Value: 900}},
			Raw: dataset.Table{
				Columns: []string{dataset.ColSemester, dataset.ColPredicted},
				Rows:    [][]string{{"Spring 2024", "900"}},
			},
		}),
		Interest: dataset.Some(dataset.Interest{Table: dataset.Table{
			Columns: []string{dataset.ColYear, dataset.ColLearners},
			Rows:    [][]string{{"2022", "50"}, {"2023", "100"}},
		}}),
		Status: map[inputs.Name]inputs.Status{
			inputs.History:  {Origin: inputs.OriginOverride, Source: "upload"},
			inputs.Forecast: {Origin: inputs.OriginDefault},
			inputs.Backtest: {Origin: inputs.OriginAbsent, Reason: "missing field \"MAE\""},
		},
	}
	return dashboard.Render(in, dashboard.Options{}), in
}

func TestKPITextColorsDelta(t *testing.T) {
	page, _ := samplePage()
	text := kpiText(page.KPIs)
	if !strings.Contains(text, "[red]-10.0%[-]") {
		t.Fatalf("expected negative delta in red, got %q", text)
	}
	if !strings.Contains(text, "1,000") {
		t.Fatalf("expected comma formatted last actual, got %q", text)
	}
}

func TestTrendTextListsBothSeries(t *testing.T) {
	page, _ := samplePage()
	text := trendText(page.Trend)
	for _, want := range []string{"Fall 2023", "Actual", "Spring 2024", "Forecast"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in trend text:\n%s", want, text)
		}
	}
	if got := trendText(dashboard.Trend{Info: "nothing [yet]"}); !strings.Contains(got, "nothing") {
		t.Fatalf("expected info text, got %q", got)
	}
}

func TestContextTextScalesBars(t *testing.T) {
	page, _ := samplePage()
	text := contextText(page.Context)
	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := lines[len(lines)-1]
	prev := lines[len(lines)-2]
	if strings.Count(last, "█") != maxBarWidth {
		t.Fatalf("expected peak bar at full width, got %q", last)
	}
	if strings.Count(prev, "█") != maxBarWidth/2 {
		t.Fatalf("expected half-width bar, got %q", prev)
	}
}

func TestContextTextWithoutInterest(t *testing.T) {
	text := contextText(dashboard.BuildContext(inputs.Inputs{}))
	if !strings.Contains(text, "No interest file uploaded yet.") {
		t.Fatalf("expected placeholder, got %q", text)
	}
}

func TestBarWidth(t *testing.T) {
	cases := []struct {
		v, peak float64
		want    int
	}{
		{0, 10, 0},
		{-5, 10, 0},
		{10, 10, maxBarWidth},
		{0.01, 1000, 1},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := barWidth(tc.v, tc.peak); got != tc.want {
			t.Fatalf("barWidth(%v, %v) = %d, want %d", tc.v, tc.peak, got, tc.want)
		}
	}
}

func TestInputsTextShowsOriginsAndReasons(t *testing.T) {
	_, in := samplePage()
	text := inputsText(in)
	if !strings.Contains(text, "[yellow]override[-]") {
		t.Fatalf("expected override origin, got %q", text)
	}
	if !strings.Contains(text, "missing field") {
		t.Fatalf("expected absence reason, got %q", text)
	}
	if !strings.Contains(text, "interest        [red]absent[-]") {
		t.Fatalf("expected unlisted input to read as absent, got %q", text)
	}
}

func TestQualityTextPlaceholders(t *testing.T) {
	text := qualityText(dashboard.BuildQuality(inputs.Inputs{}))
	if !strings.Contains(text, "No forecast metrics yet.") || !strings.Contains(text, "No classification metrics file.") {
		t.Fatalf("unexpected quality text %q", text)
	}
}
