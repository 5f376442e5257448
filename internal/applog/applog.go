// Package applog routes the standard logger to the console (or the terminal
// UI's log pane) and to a daily log file with bounded retention.
package applog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"enrolldash/config"
)

const (
	timestampLayout = "2006/01/02 15:04:05"
	fileDateLayout  = "02-Jan-2006"
	maxPendingBytes = 16 * 1024
	errorReportGap  = time.Minute
)

// Sink receives complete lines.
type Sink interface {
	WriteLine(line string, now time.Time)
	Close() error
}

// WriterSink writes lines to an io.Writer, optionally prefixed with a UTC
// timestamp.
type WriterSink struct {
	W         io.Writer
	Timestamp bool
}

func (s *WriterSink) WriteLine(line string, now time.Time) {
	if s == nil || s.W == nil {
		return
	}
	if s.Timestamp {
		line = FormatTimestamp(now) + " " + line
	}
	_, _ = io.WriteString(s.W, line+"\n")
}

func (s *WriterSink) Close() error { return nil }

// Rotation describes a day change of the file sink.
type Rotation struct {
	Previous     time.Time
	PreviousPath string
	CurrentPath  string
}

// RotateFunc runs after the file lock is released, so it may log.
type RotateFunc func(Rotation)

// DailyFile appends timestamped lines to DD-Mon-YYYY.log in Dir and removes
// files older than the retention window whenever it opens a new day.
type DailyFile struct {
	mu          sync.Mutex
	dir         string
	keepDays    int
	day         string
	path        string
	file        *os.File
	lastErrorAt time.Time
	onRotate    RotateFunc
	errOut      io.Writer
}

// NewDailyFile creates dir and prunes expired files. Non-positive keepDays
// means seven days.
func NewDailyFile(dir string, keepDays int) (*DailyFile, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("log directory is empty")
	}
	if keepDays <= 0 {
		keepDays = 7
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}
	d := &DailyFile{dir: dir, keepDays: keepDays, errOut: os.Stderr}
	if err := Prune(dir, time.Now().UTC(), keepDays); err != nil {
		fmt.Fprintf(d.errOut, "Logging: prune %s: %v\n", dir, err)
	}
	return d, nil
}

// OnRotate installs fn, replacing any earlier one.
func (d *DailyFile) OnRotate(fn RotateFunc) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.onRotate = fn
	d.mu.Unlock()
}

// Path returns the file currently open, or "" before the first line.
func (d *DailyFile) Path() string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

func (d *DailyFile) WriteLine(line string, now time.Time) {
	if d == nil {
		return
	}
	now = now.UTC()
	day := now.Format(fileDateLayout)

	d.mu.Lock()
	var rot *Rotation
	var hook RotateFunc
	if d.file == nil || d.day != day {
		rot = d.openLocked(day, now)
		hook = d.onRotate
	}
	if d.file == nil {
		d.mu.Unlock()
		return
	}
	if _, err := d.file.WriteString(FormatTimestamp(now) + " " + line + "\n"); err != nil {
		d.reportLocked(now, fmt.Errorf("write %s: %w", d.path, err))
	}
	d.mu.Unlock()

	if rot != nil && hook != nil {
		hook(*rot)
	}
}

// openLocked switches to the file for day. It returns a Rotation only when a
// previous day's file was open.
func (d *DailyFile) openLocked(day string, now time.Time) *Rotation {
	var rot *Rotation
	if d.day != "" && d.day != day {
		prev, err := time.ParseInLocation(fileDateLayout, d.day, time.UTC)
		if err == nil {
			rot = &Rotation{Previous: prev, PreviousPath: d.path}
		}
	}
	if d.file != nil {
		_ = d.file.Close()
		d.file = nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.reportLocked(now, fmt.Errorf("create log directory %q: %w", d.dir, err))
		return nil
	}
	path := filepath.Join(d.dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		d.reportLocked(now, fmt.Errorf("open %s: %w", path, err))
		return nil
	}
	d.file = f
	d.day = day
	d.path = path
	if err := Prune(d.dir, now, d.keepDays); err != nil {
		d.reportLocked(now, fmt.Errorf("prune: %w", err))
	}
	if rot != nil {
		rot.CurrentPath = path
	}
	return rot
}

func (d *DailyFile) reportLocked(now time.Time, err error) {
	if !d.lastErrorAt.IsZero() && now.Sub(d.lastErrorAt) < errorReportGap {
		return
	}
	d.lastErrorAt = now
	fmt.Fprintf(d.errOut, "Logging: %v\n", err)
}

func (d *DailyFile) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.day = ""
	d.path = ""
	return err
}

// Fanout is an io.Writer for log.SetOutput. It splits writes into lines and
// hands each line to the console sink and the file sink.
type Fanout struct {
	mu      sync.Mutex
	pending []byte
	console Sink
	file    *DailyFile
	now     func() time.Time
}

// Setup builds the fanout for cfg. File logging errors are returned alongside
// a usable console-only fanout.
func Setup(cfg config.LoggingConfig, console io.Writer) (*Fanout, error) {
	f := &Fanout{now: time.Now}
	if console != nil {
		f.console = &WriterSink{W: console, Timestamp: true}
	}
	if !cfg.Enabled {
		return f, nil
	}
	file, err := NewDailyFile(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return f, err
	}
	f.file = file
	return f, nil
}

// SetConsole swaps the console sink, for example to the terminal UI's log
// pane. A nil writer silences the console.
func (f *Fanout) SetConsole(w io.Writer, timestamp bool) {
	if f == nil {
		return
	}
	var sink Sink
	if w != nil {
		sink = &WriterSink{W: w, Timestamp: timestamp}
	}
	f.mu.Lock()
	f.console = sink
	f.mu.Unlock()
}

// File returns the daily file sink, or nil when file logging is off.
func (f *Fanout) File() *DailyFile {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file
}

func (f *Fanout) Write(p []byte) (int, error) {
	if f == nil {
		return len(p), nil
	}
	f.mu.Lock()
	f.pending = append(f.pending, p...)
	var lines []string
	rest := f.pending
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(rest[:i], "\r")))
		rest = rest[i+1:]
	}
	if len(rest) > maxPendingBytes {
		if s := string(bytes.TrimRight(rest, "\r")); s != "" {
			lines = append(lines, s)
		}
		rest = rest[:0]
	}
	f.pending = append(f.pending[:0], rest...)
	console, file := f.console, f.file
	f.mu.Unlock()

	if len(lines) == 0 {
		return len(p), nil
	}
	now := f.clock().UTC()
	for _, line := range lines {
		if console != nil {
			console.WriteLine(line, now)
		}
		if file != nil {
			file.WriteLine(line, now)
		}
	}
	return len(p), nil
}

// WriteFileOnly records line in the log file without echoing it to the
// console. It is a no-op when file logging is off.
func (f *Fanout) WriteFileOnly(line string) {
	if file := f.File(); file != nil {
		file.WriteLine(line, f.clock())
	}
}

func (f *Fanout) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	console, file := f.console, f.file
	f.mu.Unlock()
	if console != nil {
		_ = console.Close()
	}
	if file != nil {
		return file.Close()
	}
	return nil
}

// FormatTimestamp renders now in UTC the way log lines are prefixed.
func FormatTimestamp(now time.Time) string {
	return now.UTC().Format(timestampLayout)
}

// FileName is the log file name for the UTC day of now.
func FileName(now time.Time) string {
	return now.UTC().Format(fileDateLayout) + ".log"
}

func parseFileDate(name string) (time.Time, bool) {
	if filepath.Ext(name) != ".log" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(fileDateLayout, strings.TrimSuffix(name, ".log"), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Prune removes log files dated before the last keepDays days (today
// included). Files that do not look like daily logs are left alone.
func Prune(dir string, now time.Time, keepDays int) error {
	if keepDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(keepDays - 1))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		day, ok := parseFileDate(e.Name())
		if ok && day.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
