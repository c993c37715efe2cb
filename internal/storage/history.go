/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "serifu/internal/log"
	"serifu/internal/synth"
	"serifu/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// HistoryDirName holds the run ledger inside an output directory.
	HistoryDirName  = ".serifu"
	HistoryFileName = "history.sqlite"

	// schemaVersion tracks the ledger schema. Bump it together with a migration step.
	schemaVersion = 1

	// fixed width so that stored timestamps sort lexically
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrNoRuns is returned by LatestRun on an empty ledger.
var ErrNoRuns = errors.New("no runs recorded")

// HistoryPath returns the ledger location for an output directory.
func HistoryPath(dir string) string {
	return filepath.Join(dir, HistoryDirName, HistoryFileName)
}

// History is the per-output-directory ledger of generation runs.
type History struct {
	db   *sql.DB
	path string
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	Script    string
	Notation  string
	Model     string
	OutputDir string
	Total     int
}

// Run is a recorded run with its outcome counts.
type Run struct {
	ID string
	RunInfo
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run has not recorded results
	Success    int
	Skipped    int
	Errors     int
}

// OpenHistory opens (creating if needed) <dir>/.serifu/history.sqlite in WAL
// mode with the meta/version tables and the run schema in place.
func OpenHistory(dir string) (*History, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "history_open").With(
		slog.String("dir", dir),
	)
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, HistoryDirName), 0o755); err != nil {
		l.Error("create history dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", HistoryDirName, err)
	}

	path := HistoryPath(dir)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureRunSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure run schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("history ready", slog.String("path", path))
	return &History{db: db, path: path}, nil
}

// Path is the database file.
func (h *History) Path() string { return h.path }

func (h *History) Close() error { return h.db.Close() }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	case cur > schemaVersion:
		return fmt.Errorf("history schema %d is newer than supported %d", cur, schemaVersion)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureRunSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			script      TEXT,
			notation    TEXT,
			model       TEXT,
			output_dir  TEXT,
			total       INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id    TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx       INTEGER NOT NULL,
			character TEXT    NOT NULL,
			status    TEXT    NOT NULL,
			reason    TEXT,
			path      TEXT,
			bytes     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create run schema: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a run and returns its id.
func (h *History) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, script, notation, model, output_dir, total) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(tsLayout), info.Script, info.Notation, info.Model, info.OutputDir, info.Total)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordResults stores the per-line outcome of a run and marks it finished.
// Recording again replaces earlier rows for the same line.
func (h *History) RecordResults(ctx context.Context, runID string, results []synth.Result) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE runs SET finished_at=? WHERE id=?`, time.Now().UTC().Format(tsLayout), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO results (run_id, idx, character, status, reason, path, bytes) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, runID, r.Index, r.Character, string(r.Status), r.Reason, r.Path, r.Bytes); err != nil {
			return fmt.Errorf("insert result %d: %w", r.Index, err)
		}
	}
	return tx.Commit()
}

const runColumns = `r.id, r.started_at, COALESCE(r.finished_at, ''), COALESCE(r.script, ''), COALESCE(r.notation, ''),
	COALESCE(r.model, ''), COALESCE(r.output_dir, ''), r.total,
	(SELECT COUNT(*) FROM results x WHERE x.run_id = r.id AND x.status = 'success'),
	(SELECT COUNT(*) FROM results x WHERE x.run_id = r.id AND x.status = 'skipped'),
	(SELECT COUNT(*) FROM results x WHERE x.run_id = r.id AND x.status = 'error')`

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(s rowScanner) (Run, error) {
	var run Run
	var started, finished string
	if err := s.Scan(&run.ID, &started, &finished, &run.Script, &run.Notation, &run.Model, &run.OutputDir,
		&run.Total, &run.Success, &run.Skipped, &run.Errors); err != nil {
		return Run{}, err
	}
	run.StartedAt, _ = time.Parse(tsLayout, started)
	if finished != "" {
		run.FinishedAt, _ = time.Parse(tsLayout, finished)
	}
	return run, nil
}

// Runs lists the most recent runs first; limit <= 0 lists all.
func (h *History) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LatestRun returns the most recent run and its results ordered by index.
func (h *History) LatestRun(ctx context.Context) (Run, []synth.Result, error) {
	run, err := scanRun(h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, ErrNoRuns
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("latest run: %w", err)
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT idx, character, status, COALESCE(reason, ''), COALESCE(path, ''), bytes FROM results WHERE run_id=? ORDER BY idx`, run.ID)
	if err != nil {
		return run, nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	var results []synth.Result
	for rows.Next() {
		var (
			r      synth.Result
			status string
		)
		if err := rows.Scan(&r.Index, &r.Character, &status, &r.Reason, &r.Path, &r.Bytes); err != nil {
			return run, nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = synth.Status(status)
		results = append(results, r)
	}
	return run, results, rows.Err()
}
