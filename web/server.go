// Package web serves the dashboard page over HTTP. Every request is one render
// pass: inputs are resolved, the page is rebuilt and written in full.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"enrolldash/chart"
	"enrolldash/dashboard"
	"enrolldash/inputs"
	"enrolldash/loader"
	"enrolldash/recorder"
	"enrolldash/stats"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/zeebo/xxh3"
)

//go:embed templates/page.html.tmpl
var templateFS embed.FS

const (
	surfaceName  = "web"
	recentPasses = 50
)

// DefaultMaxUploadBytes bounds a multipart POST when Options leaves it unset.
const DefaultMaxUploadBytes int64 = 32 << 20

// Options configures a Server. Resolver is required; Tracker and Recorder
// may be nil.
type Options struct {
	Resolver       *inputs.Resolver
	Page           dashboard.Options
	ChartSize      chart.Size
	MaxUploadBytes int64
	Tracker        *stats.Tracker
	Recorder       *recorder.Recorder
	Logf           func(string, ...any)
}

// Server renders the dashboard for HTTP clients.
type Server struct {
	resolver  *inputs.Resolver
	page      dashboard.Options
	chartSize chart.Size
	maxUpload int64
	tracker   *stats.Tracker
	recorder  *recorder.Recorder
	logf      func(string, ...any)
	tmpl      *template.Template
	md        goldmark.Markdown
	newID     func() string
	now       func() time.Time
}

// New parses the embedded page template and returns a ready Server.
func New(opts Options) (*Server, error) {
	if opts.Resolver == nil {
		return nil, errors.New("web: resolver is required")
	}
	tmpl, err := template.New("page.html.tmpl").
		Funcs(template.FuncMap{"isNegative": isNegative}).
		ParseFS(templateFS, "templates/page.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	s := &Server{
		resolver:  opts.Resolver,
		page:      opts.Page,
		chartSize: opts.ChartSize,
		maxUpload: opts.MaxUploadBytes,
		tracker:   opts.Tracker,
		recorder:  opts.Recorder,
		logf:      opts.Logf,
		tmpl:      tmpl,
		md:        goldmark.New(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	if s.chartSize.Width == 0 || s.chartSize.Height == 0 {
		s.chartSize = chart.DefaultSize
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.logf == nil {
		s.logf = log.Printf
	}
	return s, nil
}

// Handler returns the routes: the page at "/" and a plain-text health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/passes", s.handlePasses)
	return mux
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		body, ok := s.renderPass(w, nil)
		if !ok {
			return
		}
		etag := fmt.Sprintf("\"%016x\"", xxh3.Hash(body))
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeHTML(w, r, body)
	case http.MethodPost:
		overrides, err := s.readUploads(w, r)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			s.logf("Rejected upload from %s: %v", r.RemoteAddr, err)
			http.Error(w, err.Error(), status)
			return
		}
		body, ok := s.renderPass(w, overrides)
		if !ok {
			return
		}
		writeHTML(w, r, body)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// renderPass resolves inputs and executes the template. On failure it writes
// a 500 and reports false.
func (s *Server) renderPass(w http.ResponseWriter, overrides inputs.Overrides) ([]byte, bool) {
	start := s.now()
	passID := s.newID()
	in := s.resolver.Resolve(overrides)
	page := dashboard.Render(in, s.page)
	view := s.buildView(page, in, passID)

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, view); err != nil {
		s.logf("Pass %s: render page: %v", passID, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return nil, false
	}
	elapsed := s.now().Sub(start)
	s.tracker.IncrementPass(surfaceName)
	s.recorder.Record(recorder.Pass{
		ID:        passID,
		Surface:   surfaceName,
		At:        start,
		Overrides: len(overrides),
		Duration:  elapsed,
		Inputs:    in,
	})
	s.logf("Render pass %s (web, %d overrides): %s in %s, %s",
		passID, len(overrides), in.Summary(), elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(buf.Len())))
	return buf.Bytes(), true
}

// readUploads parses a multipart form and turns each non-empty file field
// into an override. Fields without a file fall back to the default.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) (inputs.Overrides, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, fmt.Errorf("parse upload form: %w", err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	overrides := make(inputs.Overrides)
	for _, name := range inputs.Names {
		file, header, err := r.FormFile(string(name))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s upload: %w", name, err)
		}
		data, err := readPart(file)
		if err != nil {
			return nil, fmt.Errorf("read %s upload: %w", name, err)
		}
		overrides[name] = loader.BytesSource{Label: "upload:" + header.Filename, Data: data}
	}
	return overrides, nil
}

func readPart(f multipart.File) ([]byte, error) {
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	var b strings.Builder
	b.WriteString("ok\n")
	for _, line := range s.tracker.SnapshotLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(w, b.String())
}

// handlePasses lists the most recent recorded passes, newest first.
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		http.Error(w, "pass history disabled", http.StatusNotFound)
		return
	}
	entries, err := s.recorder.Recent(r.URL.Query().Get("surface"), recentPasses)
	if err != nil {
		s.logf("Pass history: %v", err)
		http.Error(w, "pass history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s overrides=%d %s: %s\n",
			e.RecordedAt.Format(time.RFC3339), e.Surface, e.ID, e.Overrides,
			e.Duration, e.Summary)
	}
	_, _ = io.WriteString(w, b.String())
}

func writeHTML(w http.ResponseWriter, r *http.Request, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

// Timeouts bounds the HTTP server's reads, writes and graceful shutdown.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Shutdown time.Duration
}

// ListenAndServe serves Handler on addr until ctx is canceled, then shuts
// down gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, t Timeouts, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  t.Read,
		WriteTimeout: t.Write,
	}
	if ready != nil {
		ready(ln.Addr())
	}
	s.logf("Dashboard listening on http://%s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdown := t.Shutdown
	if shutdown <= 0 {
		shutdown = 5 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
