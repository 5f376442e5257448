package ui

import (
	"bytes"
	"log"
	"sync"
	"time"
)

const paneWriterMaxBytes = 64 * 1024

// paneWriter turns log output into lines for the system pane. A partial line
// is kept until its newline arrives, bounded by paneWriterMaxBytes.
type paneWriter struct {
	emit         func(line string)
	mu           sync.Mutex
	buf          []byte
	droppedBytes uint64
	lastDropLog  time.Time
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w == nil || w.emit == nil {
		return len(p), nil
	}
	now := time.Now().UTC()
	var lines []string
	var dropped, total uint64
	logDrop := false

	w.mu.Lock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(w.buf[:i], "\r")))
		w.buf = w.buf[i+1:]
	}
	if excess := len(w.buf) - paneWriterMaxBytes; excess > 0 {
		w.buf = w.buf[excess:]
		w.droppedBytes += uint64(excess)
		dropped, total = uint64(excess), w.droppedBytes
		if w.lastDropLog.IsZero() || now.Sub(w.lastDropLog) >= 30*time.Second {
			w.lastDropLog = now
			logDrop = true
		}
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.emit(line)
	}
	if logDrop {
		// Logged after the lock: the logger may write back into this pane.
		log.Printf("UI: system pane dropped %d bytes (total %d) waiting for a newline", dropped, total)
	}
	return len(p), nil
}
