package output

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite"

	"github.com/lattice-sim/lattice-sim/sim"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  n_rows     INTEGER NOT NULL,
  n_cols     INTEGER NOT NULL,
  dx         REAL NOT NULL,
  dt         REAL NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
  run_id   TEXT NOT NULL REFERENCES runs(id),
  step     INTEGER NOT NULL,
  time     REAL NOT NULL,
  mass_ns  REAL,
  mass_cd  REAL,
  PRIMARY KEY (run_id, step)
);
CREATE TABLE IF NOT EXISTS nodes (
  run_id        TEXT NOT NULL,
  step          INTEGER NOT NULL,
  x             INTEGER NOT NULL,
  y             INTEGER NOT NULL,
  density       REAL,
  concentration REAL,
  ux            REAL NOT NULL,
  uy            REAL NOT NULL,
  PRIMARY KEY (run_id, step, x, y),
  FOREIGN KEY (run_id, step) REFERENCES samples(run_id, step)
);`

// RunInfo describes the run a SQLiteWriter records.
type RunInfo struct {
	Name       string
	Rows, Cols int
	Dx, Dt     float64
}

// SQLiteWriter stores every sample of one run in a SQLite database. Several
// runs can share a database; each gets a fresh UUID.
type SQLiteWriter struct {
	db    *sql.DB
	runID string
	info  RunInfo
}

// OpenSQLite opens (or creates) the database at path and registers a run.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, info RunInfo) (*SQLiteWriter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A :memory: database lives on one connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{db: db, runID: uuid.NewString(), info: info}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (id, name, n_rows, n_cols, dx, dt, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.runID, info.Name, info.Rows, info.Cols, info.Dx, info.Dt, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return w, nil
}

// RunID is the UUID of the recorded run.
func (w *SQLiteWriter) RunID() string { return w.runID }

// DB exposes the handle for queries.
func (w *SQLiteWriter) DB() *sql.DB { return w.db }

// Write implements sim.ResultWriter. A sample is stored in one transaction.
func (w *SQLiteWriter) Write(s sim.Sample) error {
	if s.Rows != w.info.Rows || s.Cols != w.info.Cols {
		return fmt.Errorf("sample is %dx%d, run is %dx%d", s.Cols, s.Rows, w.info.Cols, w.info.Rows)
	}
	ctx := context.Background()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sample tx: %w", err)
	}
	if err := w.insertSample(ctx, tx, s); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sample %d: %w", s.Step, err)
	}
	return nil
}

func (w *SQLiteWriter) insertSample(ctx context.Context, tx *sql.Tx, s sim.Sample) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO samples (run_id, step, time, mass_ns, mass_cd) VALUES (?, ?, ?, ?, ?)`,
		w.runID, s.Step, s.Time, fieldSum(s.Density), fieldSum(s.Concentration),
	); err != nil {
		return fmt.Errorf("insert sample %d: %w", s.Step, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (run_id, step, x, y, density, concentration, ux, uy) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer stmt.Close()

	for n, u := range s.Velocity {
		x, y := n%s.Cols, n/s.Cols
		if _, err := stmt.ExecContext(ctx, w.runID, s.Step, x, y,
			fieldValue(s.Density, n), fieldValue(s.Concentration, n), u[0], u[1]); err != nil {
			return fmt.Errorf("insert node (%d, %d) of sample %d: %w", x, y, s.Step, err)
		}
	}
	return nil
}

// Close implements sim.ResultWriter.
func (w *SQLiteWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func fieldValue(field []float64, n int) sql.NullFloat64 {
	if field == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: field[n], Valid: true}
}

func fieldSum(field []float64) sql.NullFloat64 {
	if field == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: floats.Sum(field), Valid: true}
}
