package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"enrolldash/inputs"
)

const historyCSV = "Admit_Semester,Enrollments\nFall 2023,100\n"

func TestFetchUpdated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("hello"))
	}))
	t.Cleanup(server.Close)

	dest := filepath.Join(t.TempDir(), "nested", "history.csv")
	res, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Status != StatusUpdated || res.Bytes != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	meta := ReadMetadata(MetadataPath(dest))
	if meta == nil || meta.ETag != `"v1"` || meta.Hash == "" || meta.URL != server.URL {
		t.Fatalf("metadata missing expected fields: %+v", meta)
	}
}

func TestFetchNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("same"))
	}))
	t.Cleanup(server.Close)

	dest := filepath.Join(t.TempDir(), "forecast.csv")
	first, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest})
	if err != nil || first.Status != StatusUpdated {
		t.Fatalf("first fetch: %+v %v", first, err)
	}
	before := ReadMetadata(MetadataPath(dest))

	second, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Status != StatusNotModified {
		t.Fatalf("expected not modified, got %s", second.Status)
	}
	after := ReadMetadata(MetadataPath(dest))
	if after == nil || !after.DownloadedAt.Equal(before.DownloadedAt) {
		t.Fatalf("expected DownloadedAt to remain unchanged")
	}
}

func TestFetchSameContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("repeat"))
	}))
	t.Cleanup(server.Close)

	dest := filepath.Join(t.TempDir(), "interest.csv")
	if _, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Status != StatusSameContent {
		t.Fatalf("expected same content, got %s", second.Status)
	}
}

func TestFetchRejectedKeepsCurrentFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"broken"`)
		_, _ = w.Write([]byte("not,the,right,shape\n"))
	}))
	t.Cleanup(server.Close)

	dest := filepath.Join(t.TempDir(), "history.csv")
	if err := os.WriteFile(dest, []byte(historyCSV), 0o644); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	res, err := Fetch(testContext(t), Request{
		URL:         server.URL,
		Destination: dest,
		Validate:    func(string) error { return errors.New("missing column") },
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Status != StatusRejected || res.Err == nil {
		t.Fatalf("expected rejection, got %+v", res)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != historyCSV {
		t.Fatalf("expected current file to survive, got %q", data)
	}
	meta := ReadMetadata(MetadataPath(dest))
	if meta == nil || meta.ETag != "" || meta.Rejected != "missing column" {
		t.Fatalf("expected rejection recorded without validators: %+v", meta)
	}
}

func TestFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	dest := filepath.Join(t.TempDir(), "x.csv")

	if _, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest}); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := Fetch(testContext(t), Request{Destination: dest}); err == nil {
		t.Fatalf("expected error for empty URL")
	}
	if _, err := Fetch(testContext(t), Request{URL: server.URL}); err == nil {
		t.Fatalf("expected error for empty destination")
	}
}

func TestFetchMaxBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	t.Cleanup(server.Close)
	dest := filepath.Join(t.TempDir(), "big.csv")
	if _, err := Fetch(testContext(t), Request{URL: server.URL, Destination: dest, MaxBytes: 10}); err == nil {
		t.Fatalf("expected size error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected no destination after oversized body")
	}
}

func TestSyncOnceValidatesAgainstInputSchema(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/history.csv":
			_, _ = w.Write([]byte(historyCSV))
		case "/backtest.json":
			_, _ = w.Write([]byte(`{"MAE": 1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	var logged []string
	updates := 0
	s := &Syncer{
		OnUpdate: func() { updates++ },
		URLs: inputs.Filenames{
			History:  server.URL + "/history.csv",
			Backtest: server.URL + "/backtest.json",
		},
		Resolver: inputs.NewResolver(dir, inputs.DefaultFilenames(), nil, func(string, ...any) {}),
		Logf: func(format string, args ...any) {
			logged = append(logged, format)
		},
	}
	results := s.SyncOnce(testContext(t))

	if results[inputs.History].Status != StatusUpdated {
		t.Fatalf("expected history update, got %+v", results[inputs.History])
	}
	if results[inputs.Backtest].Status != StatusRejected {
		t.Fatalf("expected incomplete backtest to be rejected, got %+v", results[inputs.Backtest])
	}
	if _, ok := results[inputs.Forecast]; ok {
		t.Fatalf("expected inputs without a URL to be skipped")
	}
	if hits.Load() != 2 {
		t.Fatalf("expected two requests, got %d", hits.Load())
	}
	if _, err := os.Stat(filepath.Join(dir, "forecast_backtest_metrics.json")); !os.IsNotExist(err) {
		t.Fatalf("expected rejected backtest not to be installed")
	}
	if updates != 1 {
		t.Fatalf("expected one update callback, got %d", updates)
	}
	if len(logged) != 2 {
		t.Fatalf("expected update and rejection logs, got %v", logged)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s := &Syncer{Resolver: inputs.NewResolver(t.TempDir(), inputs.DefaultFilenames(), nil, nil)}
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
