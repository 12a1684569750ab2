// Package ledger keeps a history of runs and their reporting events in a
// SQLite file. It records what happened; it is never consulted to decide
// what to fetch.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sinsfetch/sinsfetch/internal/report"
	"github.com/sinsfetch/sinsfetch/pkg/logger"

	_ "modernc.org/sqlite"
)

// Disabled is the ledger path that turns recording off.
const Disabled = "-"

var ErrNoRuns = errors.New("ledger has no runs")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    options     TEXT NOT NULL DEFAULT '',
    skipped     INTEGER NOT NULL DEFAULT 0,
    completed   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS events (
    run_id  TEXT NOT NULL REFERENCES runs(id),
    seq     INTEGER NOT NULL,
    at      INTEGER NOT NULL,
    kind    TEXT NOT NULL,
    path    TEXT NOT NULL,
    url     TEXT NOT NULL DEFAULT '',
    grp     TEXT NOT NULL DEFAULT '',
    code    INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS events_path ON events(path);
`

// Run is one scheduler invocation.
type Run struct {
	ID        string    `yaml:"id"`
	Started   time.Time `yaml:"started"`
	Finished  time.Time `yaml:"finished,omitempty"`
	Options   string    `yaml:"options,omitempty"`
	Skipped   int       `yaml:"skipped"`
	Completed int       `yaml:"completed"`
	Failed    int       `yaml:"failed"`
}

// Entry is one recorded event.
type Entry struct {
	Seq     int       `yaml:"seq"`
	At      time.Time `yaml:"at"`
	Kind    string    `yaml:"kind"`
	Path    string    `yaml:"path"`
	URL     string    `yaml:"url,omitempty"`
	Group   string    `yaml:"group,omitempty"`
	Code    int       `yaml:"code,omitempty"`
	Message string    `yaml:"message,omitempty"`
}

// Ledger records runs. Emit may be called from any goroutine.
type Ledger struct {
	db  *sql.DB
	log logger.Logger

	mu     sync.Mutex
	run    *Run
	seq    int
	broken bool
}

// DefaultPath is the ledger location under a dataset root.
func DefaultPath(root string) string {
	return filepath.Join(root, ".sinsfetch", "ledger.db")
}

// Open opens or creates the ledger at path.
func Open(path string, l logger.Logger) (*Ledger, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error: cannot create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot initialise ledger schema: %w", err)
	}
	return &Ledger{db: db, log: l}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Begin starts recording a new run and returns its id.
func (l *Ledger) Begin(options string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := &Run{ID: uuid.NewString(), Started: time.Now(), Options: options}
	if _, err := l.db.Exec(`INSERT INTO runs (id, started_at, options) VALUES (?, ?, ?)`,
		r.ID, r.Started.UnixNano(), r.Options); err != nil {
		return "", fmt.Errorf("error: failed to record run: %w", err)
	}
	l.run, l.seq, l.broken = r, 0, false
	return r.ID, nil
}

// Emit records e under the current run. Write errors are logged once and
// further events of the run are dropped.
func (l *Ledger) Emit(e report.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil || l.broken {
		return
	}
	switch e.Kind {
	case report.Skip:
		l.run.Skipped++
	case report.Done:
		l.run.Completed++
	case report.Fail:
		l.run.Failed++
	}
	l.seq++
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	var msg string
	if e.Err != nil {
		msg = e.Err.Error()
	}
	_, err := l.db.Exec(`INSERT INTO events (run_id, seq, at, kind, path, url, grp, code, message)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.run.ID, l.seq, at.UnixNano(), string(e.Kind), e.Target.Path, e.Target.URL, e.Target.Group, e.Code, msg)
	if err != nil {
		l.broken = true
		l.log.Warning("ledger: recording disabled for run %s: %v", l.run.ID, err)
	}
}

// Finish stores the counts of the current run and stamps its end time.
func (l *Ledger) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil {
		return nil
	}
	r := l.run
	l.run = nil
	r.Finished = time.Now()
	_, err := l.db.Exec(`UPDATE runs SET finished_at = ?, skipped = ?, completed = ?, failed = ? WHERE id = ?`,
		r.Finished.UnixNano(), r.Skipped, r.Completed, r.Failed, r.ID)
	if err != nil {
		return fmt.Errorf("error: failed to finish run: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, options, skipped, completed, failed`

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate runs: %w", err)
	}
	return runs, nil
}

// LastRun returns the most recent run or ErrNoRuns.
func (l *Ledger) LastRun() (Run, error) {
	runs, err := l.Runs(1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoRuns
	}
	return runs[0], nil
}

// Events returns the events of runID in order.
func (l *Ledger) Events(runID string) ([]Entry, error) {
	rows, err := l.db.Query(`SELECT seq, at, kind, path, url, grp, code, message
        FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.Seq, &at, &e.Kind, &e.Path, &e.URL, &e.Group, &e.Code, &e.Message); err != nil {
			return nil, fmt.Errorf("error: failed to scan event row: %w", err)
		}
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate events: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	if err := s.Scan(&r.ID, &started, &finished, &r.Options, &r.Skipped, &r.Completed, &r.Failed); err != nil {
		return Run{}, fmt.Errorf("error: failed to scan run row: %w", err)
	}
	r.Started = time.Unix(0, started)
	if finished.Valid {
		r.Finished = time.Unix(0, finished.Int64)
	}
	return r, nil
}
