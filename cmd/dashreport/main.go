// Command dashreport renders the enrollment dashboard once as text tables,
// with optional JSON summary and SVG charts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"enrolldash/chart"
	"enrolldash/config"
	"enrolldash/dashboard"
	"enrolldash/download"
	"enrolldash/inputs"
	"enrolldash/internal/report"
	"enrolldash/loader"
	"enrolldash/stats"
)

func main() {
	configFlag := flag.String("config", filepath.Join("data", "config"), "Config file or directory (optional)")
	dataFlag := flag.String("data", "", "Directory holding the default input files (overrides config)")
	historyFlag := flag.String("history", "", "Enrollment history CSV to use instead of the default")
	forecastFlag := flag.String("forecast", "", "Forecast CSV to use instead of the default")
	backtestFlag := flag.String("backtest", "", "Backtest metrics JSON to use instead of the default")
	classificationFlag := flag.String("classification", "", "Classification metrics JSON to use instead of the default")
	interestFlag := flag.String("interest", "", "Interest CSV to use instead of the default")
	outFlag := flag.String("out", "", "Text report path (defaults to stdout)")
	jsonOutFlag := flag.String("json-out", "", "JSON summary path (optional)")
	chartDirFlag := flag.String("chart-dir", "", "Directory for trend.svg and interest.svg (optional)")
	syncFlag := flag.Bool("sync", false, "Refresh default files from data.remote.urls before rendering")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.LUTC)
	log.SetOutput(os.Stderr)

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		log.Fatal(err)
	}
	dataDir := cfg.Data.Dir
	if strings.TrimSpace(*dataFlag) != "" {
		dataDir = *dataFlag
	}

	tracker := stats.NewTracker()
	resolver := inputs.NewResolver(dataDir, cfg.Data.Files, tracker, log.Printf)
	if *syncFlag {
		syncer := &download.Syncer{
			URLs:     cfg.Data.Remote.URLs,
			Resolver: resolver,
			Timeout:  config.Timeout(cfg.Data.Remote.TimeoutSeconds),
			MaxBytes: cfg.Data.Remote.MaxBytes,
			Logf:     log.Printf,
		}
		syncer.SyncOnce(context.Background())
	}
	result, err := report.Generate(report.Options{
		Resolver: resolver,
		Overrides: buildOverrides(map[inputs.Name]string{
			inputs.History:        *historyFlag,
			inputs.Forecast:       *forecastFlag,
			inputs.Backtest:       *backtestFlag,
			inputs.Classification: *classificationFlag,
			inputs.Interest:       *interestFlag,
		}),
		Page:      dashboard.Options{Title: cfg.Server.Title, Caption: cfg.Server.Caption},
		ReportOut: *outFlag,
		JSONOut:   *jsonOutFlag,
		ChartDir:  *chartDirFlag,
		ChartSize: chart.Size{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
		Tracker:   tracker,
		Logger:    log.Default(),
	})
	if err != nil {
		log.Fatal(err)
	}

	if result.ReportPath != "" {
		fmt.Printf("Wrote report: %s\n", result.ReportPath)
	}
	if result.JSONPath != "" {
		fmt.Printf("Wrote JSON summary: %s\n", result.JSONPath)
	}
	for _, p := range result.ChartPaths {
		fmt.Printf("Wrote chart: %s\n", p)
	}
}

// loadConfig falls back to defaults when the path does not exist, so the
// command runs from a bare checkout.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func buildOverrides(paths map[inputs.Name]string) inputs.Overrides {
	overrides := make(inputs.Overrides)
	for name, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			overrides[name] = loader.FileSource(p)
		}
	}
	return overrides
}
