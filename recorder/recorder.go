// Package recorder keeps a bounded history of render passes in SQLite so an
// operator can see which inputs each pass resolved and where they came from.
package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"enrolldash/inputs"

	_ "modernc.org/sqlite"
)

const preflightTimeout = 2 * time.Second

// Pass is one completed render pass.
type Pass struct {
	ID        string
	Surface   string
	At        time.Time
	Overrides int
	Duration  time.Duration
	Inputs    inputs.Inputs
}

// Entry is a stored pass read back from the database.
type Entry struct {
	ID         string
	Surface    string
	RecordedAt time.Time
	Overrides  int
	Duration   time.Duration
	Summary    string
	Status     map[inputs.Name]inputs.Status
}

// Recorder keeps the newest perSurfaceLimit passes of each surface.
type Recorder struct {
	db              *sql.DB
	perSurfaceLimit int
	logf            func(string, ...any)
}

// Open creates or reuses the database at path. A database that fails the
// preflight check is set aside and replaced with an empty one.
func Open(path string, perSurfaceLimit int, logf func(string, ...any)) (*Recorder, error) {
	if perSurfaceLimit <= 0 {
		return nil, errors.New("recorder: per-surface limit must be > 0")
	}
	if logf == nil {
		logf = log.Printf
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("recorder: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("recorder: ensure dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := Preflight(path, preflightTimeout, logf); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: schema: %w", err)
	}
	return &Recorder{
		db:              db,
		perSurfaceLimit: perSurfaceLimit,
		logf:            logf,
	}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS passes (
    id TEXT PRIMARY KEY,
    surface TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,
    overrides INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    summary TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pass_inputs (
    pass_id TEXT NOT NULL REFERENCES passes(id),
    input TEXT NOT NULL,
    origin TEXT NOT NULL,
    source TEXT,
    reason TEXT
);
CREATE INDEX IF NOT EXISTS passes_surface_time ON passes(surface, recorded_at);`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Record stores p and drops the oldest passes of its surface beyond the
// limit. Failures are logged, never returned. A nil Recorder ignores every
// pass.
func (r *Recorder) Record(p Pass) {
	if r == nil || r.db == nil {
		return
	}
	surface := strings.TrimSpace(p.Surface)
	if surface == "" {
		surface = "unknown"
	}
	p.Surface = surface
	if err := r.insert(p); err != nil {
		r.logf("Recorder: failed to store pass %s: %v", p.ID, err)
	}
}

func (r *Recorder) insert(p Pass) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT INTO passes (id, surface, recorded_at, overrides, duration_ms, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Surface, p.At.UTC().UnixMilli(), p.Overrides, p.Duration.Milliseconds(), p.Inputs.Summary()); err != nil {
		return err
	}
	for _, name := range inputs.Names {
		st, ok := p.Inputs.Status[name]
		if !ok {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO pass_inputs (pass_id, input, origin, source, reason) VALUES (?, ?, ?, ?, ?)`,
			p.ID, string(name), string(st.Origin), st.Source, st.Reason); err != nil {
			return err
		}
	}
	if err := prune(tx, p.Surface, r.perSurfaceLimit); err != nil {
		return err
	}
	return tx.Commit()
}

// staleIDs selects every pass of a surface past the newest limit, in the
// same order Recent reads them.
const staleIDs = `SELECT id FROM passes WHERE surface = ? ORDER BY recorded_at DESC, rowid DESC LIMIT -1 OFFSET ?`

func prune(tx *sql.Tx, surface string, limit int) error {
	if _, err := tx.Exec(`DELETE FROM pass_inputs WHERE pass_id IN (`+staleIDs+`)`, surface, limit); err != nil {
		return fmt.Errorf("prune inputs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM passes WHERE id IN (`+staleIDs+`)`, surface, limit); err != nil {
		return fmt.Errorf("prune passes: %w", err)
	}
	return nil
}

// Counts returns the number of stored passes per surface.
func (r *Recorder) Counts() (map[string]int, error) {
	counts := make(map[string]int)
	if r == nil || r.db == nil {
		return counts, nil
	}
	rows, err := r.db.Query(`SELECT surface, COUNT(*) FROM passes GROUP BY surface`)
	if err != nil {
		return nil, fmt.Errorf("recorder: count passes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var surface string
		var n int
		if err := rows.Scan(&surface, &n); err != nil {
			return nil, fmt.Errorf("recorder: scan count: %w", err)
		}
		counts[surface] = n
	}
	return counts, rows.Err()
}

// Recent returns up to limit passes for surface, newest first. An empty
// surface matches every surface.
func (r *Recorder) Recent(surface string, limit int) ([]Entry, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, surface, recorded_at, overrides, duration_ms, summary FROM passes`
	args := []any{}
	if surface = strings.TrimSpace(surface); surface != "" {
		query += ` WHERE surface = ?`
		args = append(args, surface)
	}
	query += ` ORDER BY recorded_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recorder: query passes: %w", err)
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		var at, durMS int64
		if err := rows.Scan(&e.ID, &e.Surface, &at, &e.Overrides, &durMS, &e.Summary); err != nil {
			rows.Close()
			return nil, fmt.Errorf("recorder: scan pass: %w", err)
		}
		e.RecordedAt = time.UnixMilli(at).UTC()
		e.Duration = time.Duration(durMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range entries {
		status, err := r.passInputs(entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Status = status
	}
	return entries, nil
}

func (r *Recorder) passInputs(id string) (map[inputs.Name]inputs.Status, error) {
	rows, err := r.db.Query(`SELECT input, origin, source, reason FROM pass_inputs WHERE pass_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("recorder: query inputs: %w", err)
	}
	defer rows.Close()
	status := make(map[inputs.Name]inputs.Status)
	for rows.Next() {
		var name, origin string
		var source, reason sql.NullString
		if err := rows.Scan(&name, &origin, &source, &reason); err != nil {
			return nil, fmt.Errorf("recorder: scan input: %w", err)
		}
		status[inputs.Name(name)] = inputs.Status{
			Origin: inputs.Origin(origin),
			Source: source.String,
			Reason: reason.String,
		}
	}
	return status, rows.Err()
}
