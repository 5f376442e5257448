package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// PreflightResult reports what Preflight found.
type PreflightResult struct {
	Healthy        bool
	Quarantined    bool
	QuarantinePath string
	Elapsed        time.Duration
	Err            error // checkpoint or quick_check failure
}

var sidecarSuffixes = []string{"", "-wal", "-shm", "-journal"}

// Preflight checkpoints the WAL and runs quick_check with a deadline. When
// either fails the database and its sidecars are renamed aside so Open can
// start over with an empty file.
func Preflight(path string, timeout time.Duration, logf func(string, ...any)) (PreflightResult, error) {
	var res PreflightResult
	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	if timeout <= 0 {
		timeout = preflightTimeout
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return res, fmt.Errorf("preflight: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		db.Close()
		return res, fmt.Errorf("preflight: busy_timeout: %w", err)
	}
	checkErr := checkpoint(ctx, db)
	if checkErr == nil {
		checkErr = quickCheck(ctx, db)
	}
	db.Close()
	res.Elapsed = time.Since(start)
	res.Err = checkErr
	if checkErr == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("preflight: timed out after %s", timeout)
	}

	dest, err := quarantine(path, time.Now().UTC())
	if err != nil {
		return res, fmt.Errorf("preflight: quarantine failed: %w (check: %v)", err, checkErr)
	}
	res.Quarantined = true
	res.QuarantinePath = dest
	if logf != nil {
		logf("Pass history preflight failed (%v); moved to %s after %s", checkErr, dest, res.Elapsed.Round(time.Millisecond))
	}
	return res, nil
}

func checkpoint(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)")
	return err
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

// quarantine renames the main file and any sidecars with a timestamp suffix
// and returns the new main path.
func quarantine(path string, now time.Time) (string, error) {
	suffix := ".bad-" + now.Format("20060102T150405Z")
	for _, s := range sidecarSuffixes {
		src := path + s
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := os.Rename(src, src+suffix); err != nil {
			return "", err
		}
	}
	return path + suffix, nil
}
