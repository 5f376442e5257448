package download

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"enrolldash/inputs"
	"enrolldash/loader"

	"github.com/dustin/go-humanize"
)

const defaultFetchTimeout = 30 * time.Second

// Syncer keeps the resolver's default files in step with remote copies.
type Syncer struct {
	URLs     inputs.Filenames
	Resolver *inputs.Resolver
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
	Logf     func(string, ...any)
	// OnUpdate runs after a sync that installed at least one file.
	OnUpdate func()
}

// SyncOnce fetches every input that has a URL and returns the results by
// input. Fetch errors are logged and leave the current file in place.
func (s *Syncer) SyncOnce(ctx context.Context) map[inputs.Name]Result {
	logf := s.Logf
	if logf == nil {
		logf = log.Printf
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	results := make(map[inputs.Name]Result)
	updated := false
	for _, name := range inputs.Names {
		url := strings.TrimSpace(s.URLs.For(name))
		dest := s.Resolver.DefaultPath(name)
		if url == "" || dest == "" {
			continue
		}
		name := name
		res, err := Fetch(ctx, Request{
			URL:         url,
			Destination: dest,
			Timeout:     timeout,
			MaxBytes:    s.MaxBytes,
			Client:      s.Client,
			UserAgent:   "enrolldash",
			Validate: func(path string) error {
				return inputs.Check(name, loader.FileSource(path))
			},
		})
		if err != nil {
			logf("Sync %s: %v", name, err)
			continue
		}
		results[name] = res
		switch res.Status {
		case StatusUpdated:
			updated = true
			logf("Sync %s: updated %s (%s)", name, dest, humanize.Bytes(uint64(res.Bytes)))
		case StatusRejected:
			logf("Sync %s: kept %s, remote copy rejected: %v", name, dest, res.Err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if updated && s.OnUpdate != nil {
		s.OnUpdate()
	}
	return results
}

// Run syncs every interval until ctx is done. A non-positive interval
// returns immediately.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}
