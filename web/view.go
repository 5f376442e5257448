package web

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"enrolldash/chart"
	"enrolldash/dashboard"
	"enrolldash/inputs"

	"github.com/yuin/goldmark"
)

type uploadField struct {
	Name   string
	Label  string
	Accept string
	Origin string
	Source string
}

var uploadLabels = map[inputs.Name]string{
	inputs.History:        "Enrollment history (semester totals)",
	inputs.Forecast:       "Forecast numbers (Admit_Semester, Predicted_Enrollments)",
	inputs.Backtest:       "Forecast backtest metrics (JSON)",
	inputs.Classification: "Classification metrics (JSON)",
	inputs.Interest:       "Lebanon AI/DS interest (Year,Learners)",
}

// pageView is what the template sees: the page plus pre-rendered charts.
type pageView struct {
	dashboard.Page
	Uploads       []uploadField
	TrendChart    template.URL
	TrendInfo     string
	InterestChart template.URL
	InterestInfo  string
	Instructions  template.HTML
}

func uploadFields(in inputs.Inputs) []uploadField {
	fields := make([]uploadField, 0, len(inputs.Names))
	for _, name := range inputs.Names {
		accept := ".csv"
		if name == inputs.Backtest || name == inputs.Classification {
			accept = ".json"
		}
		st := in.Status[name]
		origin := string(st.Origin)
		if origin == "" {
			origin = string(inputs.OriginAbsent)
		}
		fields = append(fields, uploadField{
			Name:   string(name),
			Label:  uploadLabels[name],
			Accept: accept,
			Origin: origin,
			Source: st.Source,
		})
	}
	return fields
}

// svgDataURL wraps a rendered chart for an <img> tag, so chart text is never
// parsed as markup.
func svgDataURL(svg []byte) template.URL {
	return template.URL("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svg))
}

func renderMarkdown(md goldmark.Markdown, src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func isNegative(delta string) bool {
	return strings.HasPrefix(delta, "-")
}

// buildView draws the charts for one page. A chart that fails to render falls
// back to an info message instead of failing the pass.
func (s *Server) buildView(page dashboard.Page, in inputs.Inputs, passID string) pageView {
	v := pageView{
		Page:         page,
		Uploads:      uploadFields(in),
		TrendInfo:    page.Trend.Info,
		InterestInfo: page.Context.Info,
	}
	if page.Trend.HasChart() {
		svg, err := chart.TrendSVG(page.Trend, s.chartSize)
		if err != nil {
			s.logf("Pass %s: trend chart: %v", passID, err)
			v.TrendInfo = chartUnavailable
		} else {
			v.TrendChart = svgDataURL(svg)
		}
	}
	if page.Context.HasChart() {
		svg, err := chart.BarsSVG(page.Context.ChartTitle, page.Context.Bars, s.chartSize)
		if err != nil {
			s.logf("Pass %s: interest chart: %v", passID, err)
			v.InterestInfo = chartUnavailable
		} else {
			v.InterestChart = svgDataURL(svg)
		}
	}
	html, err := renderMarkdown(s.md, page.Context.Instructions)
	if err != nil {
		s.logf("Pass %s: %v", passID, err)
		html = template.HTML(template.HTMLEscapeString(page.Context.Instructions))
	}
	v.Instructions = html
	return v
}

const chartUnavailable = "Chart unavailable."
