// Package inputs resolves the dashboard's five inputs for one render pass:
// a user override wins over the bundled default file, and anything that fails
// to load is absent.
package inputs

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"enrolldash/dataset"
	"enrolldash/internal/ratelimit"
	"enrolldash/loader"
	"enrolldash/stats"
)

// Name identifies one logical input.
type Name string

const (
	History        Name = "history"
	Forecast       Name = "forecast"
	Backtest       Name = "backtest"
	Classification Name = "classification"
	Interest       Name = "interest"
)

// Names lists the inputs in page order.
var Names = []Name{History, Forecast, Backtest, Classification, Interest}

// Origin records where a resolved input came from.
type Origin string

const (
	OriginOverride Origin = "override"
	OriginDefault  Origin = "default"
	OriginAbsent   Origin = "absent"
)

const absentLogInterval = 10 * time.Minute

// Filenames are the bundled default files, relative to the data directory.
type Filenames struct {
	History        string `yaml:"history"`
	Forecast       string `yaml:"forecast"`
	Backtest       string `yaml:"backtest"`
	Classification string `yaml:"classification"`
	Interest       string `yaml:"interest"`
}

// DefaultFilenames returns the conventional file names written by the
// upstream notebook.
func DefaultFilenames() Filenames {
	return Filenames{
		History:        "enrollments_history_clean.csv",
		Forecast:       "forecast_semester_numbers.csv",
		Backtest:       "forecast_backtest_metrics.json",
		Classification: "classification_metrics.json",
		Interest:       "ai_ds_interest_lebanon.csv",
	}
}

// For returns the entry for name, or "" for an unknown name.
func (f Filenames) For(name Name) string {
	switch name {
	case History:
		return f.History
	case Forecast:
		return f.Forecast
	case Backtest:
		return f.Backtest
	case Classification:
		return f.Classification
	case Interest:
		return f.Interest
	default:
		return ""
	}
}

// Overrides maps inputs to user-supplied sources. Missing keys fall back to
// the default file.
type Overrides map[Name]loader.Source

// Status describes how one input was resolved.
type Status struct {
	Origin Origin
	// Source names the file or upload that was read (or attempted).
	Source string
	// Reason is set when the input is absent.
	Reason string
}

// Inputs is the read-only result of one resolution.
type Inputs struct {
	History        dataset.Optional[dataset.History]
	Forecast       dataset.Optional[dataset.Forecast]
	Backtest       dataset.Optional[dataset.BacktestMetrics]
	Classification dataset.Optional[dataset.ClassificationMetrics]
	Interest       dataset.Optional[dataset.Interest]
	Status         map[Name]Status
}

// Summary renders the origin of every input on one line, in page order.
func (in Inputs) Summary() string {
	parts := make([]string, 0, len(Names))
	for _, name := range Names {
		origin := OriginAbsent
		if st, ok := in.Status[name]; ok {
			origin = st.Origin
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, origin))
	}
	return strings.Join(parts, " ")
}

// Resolver loads inputs from overrides or from Dir.
type Resolver struct {
	dir     string
	files   Filenames
	tracker *stats.Tracker
	logf    func(string, ...any)
	limiter *ratelimit.Keyed
	now     func() time.Time
}

// NewResolver builds a resolver. tracker may be nil; logf defaults to log.Printf.
func NewResolver(dir string, files Filenames, tracker *stats.Tracker, logf func(string, ...any)) *Resolver {
	if logf == nil {
		logf = log.Printf
	}
	return &Resolver{
		dir:     dir,
		files:   files,
		tracker: tracker,
		logf:    logf,
		limiter: ratelimit.NewKeyed(absentLogInterval),
		now:     time.Now,
	}
}

// DefaultPath returns the bundled file for an input, or "" when none is configured.
func (r *Resolver) DefaultPath(name Name) string {
	file := strings.TrimSpace(r.files.For(name))
	if file == "" {
		return ""
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(r.dir, file)
}

// Resolve runs once per render pass. Precedence is override > default > absent;
// an override that fails to load is absent and does not fall back.
func (r *Resolver) Resolve(overrides Overrides) Inputs {
	in := Inputs{Status: make(map[Name]Status, len(Names))}
	in.History = resolveOne(r, History, overrides, loader.LoadHistory, in.Status)
	in.Forecast = resolveOne(r, Forecast, overrides, loader.LoadForecast, in.Status)
	in.Backtest = resolveOne(r, Backtest, overrides, loader.LoadBacktest, in.Status)
	in.Classification = resolveOne(r, Classification, overrides, loader.LoadClassification, in.Status)
	in.Interest = resolveOne(r, Interest, overrides, loader.LoadInterest, in.Status)
	return in
}

func resolveOne[T any](r *Resolver, name Name, overrides Overrides, parse func(io.Reader) loader.Outcome[T], status map[Name]Status) dataset.Optional[T] {
	var src loader.Source
	origin := OriginDefault
	if override, ok := overrides[name]; ok && override != nil {
		src = override
		origin = OriginOverride
	} else if path := r.DefaultPath(name); path != "" {
		src = loader.FileSource(path)
	}

	var out loader.Outcome[T]
	if src == nil {
		out = loader.Outcome[T]{Reason: "no default file configured"}
	} else {
		out = loader.Read(src, parse)
	}

	st := Status{Origin: origin, Reason: out.Reason}
	if src != nil {
		st.Source = src.Name()
	}
	if !out.Value.Present() {
		st.Origin = OriginAbsent
		r.reportAbsent(name, st)
	}
	status[name] = st
	r.tracker.IncrementOrigin(string(name), string(st.Origin))
	return out.Value
}

// Check loads src as the named input and returns why it would be absent, or
// nil when it loads.
func Check(name Name, src loader.Source) error {
	var reason string
	switch name {
	case History:
		reason = loader.Read(src, loader.LoadHistory).Reason
	case Forecast:
		reason = loader.Read(src, loader.LoadForecast).Reason
	case Backtest:
		reason = loader.Read(src, loader.LoadBacktest).Reason
	case Classification:
		reason = loader.Read(src, loader.LoadClassification).Reason
	case Interest:
		reason = loader.Read(src, loader.LoadInterest).Reason
	default:
		return fmt.Errorf("unknown input %q", name)
	}
	if reason != "" {
		return errors.New(reason)
	}
	return nil
}

func (r *Resolver) reportAbsent(name Name, st Status) {
	suppressed, ok := r.limiter.Allow(string(name)+"|"+st.Reason, r.now())
	if !ok {
		return
	}
	suffix := ""
	if suppressed > 0 {
		suffix = fmt.Sprintf(" (%d repeats suppressed)", suppressed)
	}
	r.logf("Input %s absent: %s%s", name, st.Reason, suffix)
}
