// Package chart draws the dashboard's trend line chart and interest bar chart
// as SVG.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"enrolldash/dashboard"

	"github.com/dustin/go-humanize"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Size is the pixel size of a rendered chart.
type Size struct {
	Width  int
	Height int
}

// DefaultSize fits a single full-width dashboard row.
var DefaultSize = Size{Width: 960, Height: 420}

var seriesColors = map[string]drawing.Color{
	dashboard.TypeActual:   drawing.ColorFromHex("636efa"),
	dashboard.TypeForecast: drawing.ColorFromHex("ef553b"),
}

var fallbackColor = drawing.ColorFromHex("00cc96")

var barColor = drawing.ColorFromHex("636efa")

// lineStyle draws a line with point markers.
func lineStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotWidth:    4,
		DotColor:    col,
	}
}

// TrendSVG renders one line per series type over a categorical semester axis.
// Semesters are placed at positions 1..n in combined order.
func TrendSVG(t dashboard.Trend, size Size) ([]byte, error) {
	if !t.HasChart() {
		return nil, errors.New("trend has no points")
	}
	size = normalize(size)

	ticks := make([]gochart.Tick, 0, len(t.Points))
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	var series []gochart.ContinuousSeries
	index := make(map[string]int)
	for i, p := range t.Points {
		x := float64(i + 1)
		v := float64(p.Value)
		ticks = append(ticks, gochart.Tick{Value: x, Label: p.Semester})
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)

		si, ok := index[p.Type]
		if !ok {
			col, known := seriesColors[p.Type]
			if !known {
				col = fallbackColor
			}
			si = len(series)
			index[p.Type] = si
			series = append(series, gochart.ContinuousSeries{Name: p.Type, Style: lineStyle(col)})
		}
		series[si].XValues = append(series[si].XValues, x)
		series[si].YValues = append(series[si].YValues, v)
	}
	all := make([]gochart.Series, 0, len(series))
	for _, s := range series {
		all = append(all, s)
	}

	lo, hi := paddedRange(minY, maxY)
	n := float64(len(t.Points))
	ch := gochart.Chart{
		Title:      t.Title,
		Width:      size.Width,
		Height:     size.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 24, Bottom: 24}},
		XAxis: gochart.XAxis{
			Name:  "Admit_Semester",
			Ticks: ticks,
			// explicit range so a single semester still has non-zero width
			Range: &gochart.ContinuousRange{Min: 0.5, Max: n + 0.5},
			Style: gochart.Style{TextRotationDegrees: 45},
		},
		YAxis: gochart.YAxis{
			Name:           "Enrollments",
			Range:          &gochart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: commaFormatter,
		},
		Series: all,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render trend chart: %w", err)
	}
	return buf.Bytes(), nil
}

// BarsSVG renders a simple category bar chart.
func BarsSVG(title string, bars []dashboard.Bar, size Size) ([]byte, error) {
	if len(bars) == 0 {
		return nil, errors.New("no bars")
	}
	size = normalize(size)

	values := make([]gochart.Value, 0, len(bars))
	minY, maxY := 0.0, 0.0
	for _, b := range bars {
		values = append(values, gochart.Value{
			Label: b.Label,
			Value: b.Value,
			Style: gochart.Style{FillColor: barColor, StrokeColor: barColor},
		})
		minY = math.Min(minY, b.Value)
		maxY = math.Max(maxY, b.Value)
	}
	if maxY <= minY {
		maxY = minY + 1
	}
	span := maxY - minY

	barWidth := (size.Width - 120) / (2 * len(bars))
	if barWidth < 8 {
		barWidth = 8
	}
	if barWidth > 80 {
		barWidth = 80
	}

	bc := gochart.BarChart{
		Title:      title,
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   barWidth,
		BarSpacing: barWidth / 2,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis: gochart.YAxis{
			Range:          &gochart.ContinuousRange{Min: minY, Max: maxY + span*0.1},
			ValueFormatter: commaFormatter,
		},
		Bars: values,
	}

	var buf bytes.Buffer
	if err := bc.Render(gochart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

// paddedRange widens [lo, hi] by 10% each side, keeps a flat series visible,
// and does not dip below zero for non-negative data.
func paddedRange(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span <= 0 {
		span = math.Max(1, math.Abs(hi)*0.1)
	}
	outLo := lo - span*0.1
	outHi := hi + span*0.1
	if lo >= 0 && outLo < 0 {
		outLo = 0
	}
	return outLo, outHi
}

func normalize(size Size) Size {
	if size.Width <= 0 {
		size.Width = DefaultSize.Width
	}
	if size.Height <= 0 {
		size.Height = DefaultSize.Height
	}
	return size
}

func commaFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return humanize.Comma(int64(math.Round(f)))
}
