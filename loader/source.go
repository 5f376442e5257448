package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is anything a loader can read: a bundled default file or an upload.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource reads a file from disk.
type FileSource string

func (f FileSource) Name() string { return string(f) }

func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// BytesSource serves an in-memory upload.
type BytesSource struct {
	Label string
	Data  []byte
}

func (b BytesSource) Name() string { return b.Label }

func (b BytesSource) Open() (io.ReadCloser, error) {
	if b.Data == nil {
		return nil, fmt.Errorf("upload %q has no content", b.Label)
	}
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// Read opens src and hands it to parse. Open failures become an absent outcome
// carrying the reason; nothing escapes as an error.
func Read[T any](src Source, parse func(io.Reader) Outcome[T]) Outcome[T] {
	if src == nil {
		return absent[T]("no source")
	}
	rc, err := src.Open()
	if err != nil {
		return absent[T]("open %s: %v", src.Name(), err)
	}
	defer rc.Close()
	return parse(rc)
}
