// Command enrolldash serves the AI & DS enrollment forecast dashboard over
// HTTP and, when attached to a terminal, as a tview console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"enrolldash/chart"
	"enrolldash/config"
	"enrolldash/dashboard"
	"enrolldash/download"
	"enrolldash/inputs"
	"enrolldash/internal/applog"
	"enrolldash/recorder"
	"enrolldash/stats"
	"enrolldash/ui"
	"enrolldash/web"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// Version is the dashboard build version.
const Version = "1.0.0"

const (
	envConfigPath  = "ENROLLDASH_CONFIG_PATH"
	statsLogEvery  = 5 * time.Minute
	consoleSurface = "console"
	consoleFPS     = 10
)

var defaultConfigPath = filepath.Join("data", "config")

func main() {
	configFlag := flag.String("config", "", "Config file or directory (defaults to $"+envConfigPath+", then "+defaultConfigPath+")")
	consoleFlag := flag.Bool("console", false, "Show the terminal dashboard (requires an interactive console)")
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides http.addr)")
	flag.Parse()

	cfg, configSource, err := loadDashboardConfig(*configFlag)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if *consoleFlag {
		cfg.UI.Console = true
	}
	if addr := strings.TrimSpace(*addrFlag); addr != "" {
		cfg.HTTP.Addr = addr
	}

	fanout, logErr := applog.Setup(cfg.Logging, os.Stdout)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Warning: file logging disabled: %v", logErr)
	}

	tracker := stats.NewTracker()
	resolver := inputs.NewResolver(cfg.Data.Dir, cfg.Data.Files, tracker, log.Printf)
	pageOpts := dashboard.Options{Title: cfg.Server.Title, Caption: cfg.Server.Caption}

	var passes *recorder.Recorder
	if cfg.Recorder.Enabled {
		passes, err = recorder.Open(cfg.Recorder.Path, cfg.Recorder.PerSurfaceLimit, log.Printf)
		if err != nil {
			log.Printf("Warning: pass history disabled: %v", err)
			passes = nil
		} else {
			defer passes.Close()
		}
	}

	var console ui.Surface
	refreshConsole := func() {
		page, in := renderPass(resolver, pageOpts, tracker, passes, consoleSurface)
		console.SetPage(page, in)
		console.SetStats(tracker.SnapshotLines())
	}
	if cfg.UI.Console {
		if isStdoutTTY() {
			console = ui.NewConsole(ui.ConsoleOptions{OnReload: refreshConsole, TargetFPS: consoleFPS})
		} else {
			log.Printf("Console disabled (requires an interactive console)")
		}
	}
	if console == nil && !cfg.HTTP.Enabled {
		log.Fatalf("Nothing to serve: http is disabled and the console is unavailable")
	}
	if console == nil {
		cfg.Print()
	}

	log.Printf("Enrollment dashboard v%s starting (config: %s)", Version, configSource)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if file := fanout.File(); file != nil {
		file.OnRotate(func(r applog.Rotation) {
			log.Printf("Log rotated from %s to %s", filepath.Base(r.PreviousPath), filepath.Base(r.CurrentPath))
			writeStatsToFile(fanout, tracker)
		})
	}
	go runStatsLog(ctx, fanout, tracker, statsLogEvery)
	if cfg.Data.Remote.Enabled {
		startRemoteSync(ctx, cfg.Data.Remote, resolver, func() {
			if console != nil {
				refreshConsole()
			}
		})
	}

	var consoleDone <-chan struct{}
	if console != nil {
		console.WaitReady()
		defer console.Stop()
		fanout.SetConsole(console.SystemWriter(), true)
		consoleDone = console.Done()
		refreshConsole()
	}

	// webErr stays nil (never ready) when the web surface is off.
	var webErr chan error
	if cfg.HTTP.Enabled {
		srv, err := web.New(web.Options{
			Resolver:       resolver,
			Page:           pageOpts,
			ChartSize:      chart.Size{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
			MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
			Tracker:        tracker,
			Recorder:       passes,
			Logf:           log.Printf,
		})
		if err != nil {
			log.Fatalf("Web surface: %v", err)
		}
		timeouts := web.Timeouts{
			Read:     config.Timeout(cfg.HTTP.ReadTimeoutSeconds),
			Write:    config.Timeout(cfg.HTTP.WriteTimeoutSeconds),
			Shutdown: config.Timeout(cfg.HTTP.ShutdownTimeoutSeconds),
		}
		webErr = make(chan error, 1)
		go func() {
			webErr <- srv.ListenAndServe(ctx, cfg.HTTP.Addr, timeouts, nil)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Printf("Received %s, shutting down", sig)
	case <-consoleDone:
		log.Printf("Console closed, shutting down")
	case err := <-webErr:
		webErr = nil
		if err != nil {
			log.Printf("Web surface stopped: %v", err)
		}
		if console != nil {
			// The console keeps running without the web surface.
			select {
			case <-sigChan:
			case <-consoleDone:
			}
		}
	}

	cancel()
	if console != nil {
		console.Stop()
		fanout.SetConsole(os.Stdout, true)
	}
	if webErr != nil {
		select {
		case err := <-webErr:
			if err != nil {
				log.Printf("Web shutdown: %v", err)
			}
		case <-time.After(config.Timeout(cfg.HTTP.ShutdownTimeoutSeconds) + time.Second):
			log.Printf("Web shutdown timed out")
		}
	}
	for _, line := range tracker.SnapshotLines() {
		log.Print(line)
	}
	log.Printf("Enrollment dashboard stopped")
}

// Purpose: Report whether stdout is an interactive terminal.
// Key aspects: The console needs a real TTY to draw.
// Upstream: main surface selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from the flag, env, or default location.
// Key aspects: An explicit flag or env path must exist; a missing default
// path falls back to built-in defaults.
// Upstream: main startup.
// Downstream: config.Load and config.Default.
func loadDashboardConfig(flagPath string) (*config.Config, string, error) {
	if path := strings.TrimSpace(flagPath); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	if path := strings.TrimSpace(os.Getenv(envConfigPath)); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, os.ErrNotExist) {
		return config.Default(), "built-in defaults", nil
	}
	cfg, err := config.Load(defaultConfigPath)
	if err != nil {
		return nil, defaultConfigPath, fmt.Errorf("%s: %w", defaultConfigPath, err)
	}
	return cfg, defaultConfigPath, nil
}

// Purpose: Run one render pass for a non-HTTP surface.
// Key aspects: Resolves defaults only (no overrides), counts the pass and
// records it when pass history is on.
// Upstream: console refresh and reload.
// Downstream: inputs.Resolver.Resolve, dashboard.Render, recorder.Record.
func renderPass(resolver *inputs.Resolver, opts dashboard.Options, tracker *stats.Tracker, passes *recorder.Recorder, surface string) (dashboard.Page, inputs.Inputs) {
	start := time.Now()
	in := resolver.Resolve(nil)
	page := dashboard.Render(in, opts)
	elapsed := time.Since(start)
	tracker.IncrementPass(surface)
	passes.Record(recorder.Pass{
		ID:       uuid.NewString(),
		Surface:  surface,
		At:       start,
		Duration: elapsed,
		Inputs:   in,
	})
	log.Printf("Render pass (%s): %s in %s", surface, in.Summary(), elapsed.Round(time.Millisecond))
	return page, in
}

// Purpose: Periodically record counters in the log file only.
// Key aspects: Keeps the console quiet; stops with ctx.
// Upstream: main.
// Downstream: writeStatsToFile.
func runStatsLog(ctx context.Context, fanout *applog.Fanout, tracker *stats.Tracker, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeStatsToFile(fanout, tracker)
		}
	}
}

// Purpose: Refresh the default input files from their configured URLs.
// Key aspects: The first sync runs before any render pass so surfaces start
// with current data; later syncs run in the background until ctx ends and
// redraw the console when a file changes.
// Upstream: main when data.remote.enabled is set.
// Downstream: download.Syncer.
func startRemoteSync(ctx context.Context, remote config.RemoteConfig, resolver *inputs.Resolver, onUpdate func()) {
	syncer := &download.Syncer{
		URLs:     remote.URLs,
		Resolver: resolver,
		Timeout:  config.Timeout(remote.TimeoutSeconds),
		MaxBytes: remote.MaxBytes,
		Logf:     log.Printf,
	}
	results := syncer.SyncOnce(ctx)
	log.Printf("Remote sync: %d inputs checked", len(results))
	syncer.OnUpdate = onUpdate
	go syncer.Run(ctx, time.Duration(remote.RefreshMinutes)*time.Minute)
}

func writeStatsToFile(fanout *applog.Fanout, tracker *stats.Tracker) {
	for _, line := range tracker.SnapshotLines() {
		fanout.WriteFileOnly(line)
	}
}
