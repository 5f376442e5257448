// Package download refreshes default input files from remote URLs. Requests
// are conditional on the last ETag/Last-Modified, and a fetched body only
// replaces the local file after it passes validation.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
)

// MetadataSuffix names the sidecar written next to each fetched file.
const MetadataSuffix = ".fetch.json"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Status says what a fetch did to the local file.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusNotModified Status = "not_modified"
	StatusSameContent Status = "same_content"
	StatusRejected    Status = "rejected"
)

// Metadata is the sidecar state for one destination.
type Metadata struct {
	URL          string    `json:"url,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
	CheckedAt    time.Time `json:"checked_at,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	Hash         string    `json:"xxh3,omitempty"`
	// Rejected holds the validation error of the last body that was not
	// installed.
	Rejected string `json:"rejected,omitempty"`
}

// Request describes one fetch.
type Request struct {
	URL         string
	Destination string
	Timeout     time.Duration
	// MaxBytes bounds the body; zero means unbounded.
	MaxBytes int64
	// Validate runs on the downloaded temp file. A non-nil error keeps the
	// current destination and yields StatusRejected.
	Validate  func(path string) error
	UserAgent string
	Client    *http.Client
}

type Result struct {
	Status Status
	Meta   Metadata
	Bytes  int64
	// Err is the validation error for StatusRejected.
	Err error
}

// MetadataPath returns the sidecar path for dest.
func MetadataPath(dest string) string {
	if strings.TrimSpace(dest) == "" {
		return ""
	}
	return dest + MetadataSuffix
}

// Fetch downloads req.URL into req.Destination.
func Fetch(ctx context.Context, req Request) (Result, error) {
	var result Result
	url := strings.TrimSpace(req.URL)
	dest := strings.TrimSpace(req.Destination)
	if url == "" {
		return result, errors.New("download: URL is empty")
	}
	if dest == "" {
		return result, errors.New("download: destination is empty")
	}
	metaPath := MetadataPath(dest)

	_, err := os.Stat(dest)
	destExists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("download: stat destination: %w", err)
	}
	prev := ReadMetadata(metaPath)
	if prev != nil && prev.URL != url {
		// A new URL invalidates the validators of the old one.
		prev = &Metadata{Hash: prev.Hash}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result, fmt.Errorf("download: build request: %w", err)
	}
	if destExists && prev != nil {
		if prev.ETag != "" {
			httpReq.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			httpReq.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}

	client := req.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("download: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	now := time.Now().UTC()
	meta := mergeMetadata(prev, url, resp)
	meta.CheckedAt = now

	if resp.StatusCode == http.StatusNotModified {
		result.Status = StatusNotModified
		result.Meta = meta
		return result, WriteMetadata(metaPath, meta)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("download: fetch %s: status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return result, fmt.Errorf("download: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*.tmp")
	if err != nil {
		return result, fmt.Errorf("download: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	body := io.Reader(resp.Body)
	if req.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, req.MaxBytes+1)
	}
	hasher := xxh3.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return result, fmt.Errorf("download: copy body: %w", err)
	}
	if req.MaxBytes > 0 && written > req.MaxBytes {
		return result, fmt.Errorf("download: body exceeds %d bytes", req.MaxBytes)
	}
	if written == 0 {
		return result, errors.New("download: empty response body")
	}
	result.Bytes = written
	hash := strconv.FormatUint(hasher.Sum64(), 16)

	if destExists && prev != nil && prev.Hash == hash {
		meta.Hash = hash
		meta.Rejected = ""
		result.Status = StatusSameContent
		result.Meta = meta
		return result, WriteMetadata(metaPath, meta)
	}

	if req.Validate != nil {
		if verr := req.Validate(tmpName); verr != nil {
			// Keep the old validators so the next check refetches.
			if prev != nil {
				meta.ETag, meta.LastModified = prev.ETag, prev.LastModified
			} else {
				meta.ETag, meta.LastModified = "", ""
			}
			meta.Rejected = verr.Error()
			result.Status = StatusRejected
			result.Err = verr
			result.Meta = meta
			return result, WriteMetadata(metaPath, meta)
		}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return result, fmt.Errorf("download: replace %s: %w", dest, err)
	}
	meta.Hash = hash
	meta.SizeBytes = written
	meta.DownloadedAt = now
	meta.Rejected = ""
	result.Status = StatusUpdated
	result.Meta = meta
	return result, WriteMetadata(metaPath, meta)
}

// ReadMetadata returns the sidecar at path, or nil when it is missing or
// unreadable.
func ReadMetadata(path string) *Metadata {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta Metadata
	if err := jsonAPI.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}

// WriteMetadata stores meta as indented JSON.
func WriteMetadata(path string, meta Metadata) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("download: metadata path is empty")
	}
	data, err := jsonAPI.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("download: encode metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("download: write metadata: %w", err)
	}
	return nil
}

func mergeMetadata(prev *Metadata, url string, resp *http.Response) Metadata {
	meta := Metadata{}
	if prev != nil {
		meta = *prev
	}
	meta.URL = url
	if etag := strings.TrimSpace(resp.Header.Get("ETag")); etag != "" {
		meta.ETag = etag
	}
	if last := strings.TrimSpace(resp.Header.Get("Last-Modified")); last != "" {
		meta.LastModified = last
	}
	return meta
}
