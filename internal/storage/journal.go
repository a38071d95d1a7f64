package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"execsim/internal/emit"
	"execsim/pkg/quant"
)

// commitEvery bounds how many records share one transaction.
const commitEvery = 1024

// Journal keeps a SQLite copy of every record a run emits. It is write-only
// from the simulator's point of view: no run reads another run's journal.
type Journal struct {
	db    *sql.DB
	runID string

	tx      *sql.Tx
	insert  *sql.Stmt
	pending int
	seq     int64
}

// NewJournal opens (or creates) the journal database at dbPath for one run.
func NewJournal(dbPath, runID string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Configure SQLite for append-heavy logging
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			config TEXT NOT NULL,
			summary TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			run_id TEXT NOT NULL REFERENCES runs(id),
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			kind TEXT NOT NULL,
			instrument TEXT NOT NULL,
			fields BLOB NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &Journal{db: db, runID: runID}, nil
}

// BeginRun registers the run with its configuration. It must precede Record.
func (j *Journal) BeginRun(ctx context.Context, config any) error {
	cfg, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, config) VALUES (?, ?, ?)",
		j.runID, time.Now().UnixNano(), string(cfg),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Record appends r to the current run. It satisfies emit.Journal.
func (j *Journal) Record(r emit.Record) error {
	if j.tx == nil {
		if err := j.begin(); err != nil {
			return err
		}
	}
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	j.seq++
	if _, err := j.insert.Exec(j.runID, j.seq, int64(r.T), string(r.Kind), r.Instrument, fields, r.Line); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	if j.pending++; j.pending >= commitEvery {
		return j.commit()
	}
	return nil
}

func (j *Journal) begin() error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO records (run_id, seq, ts, kind, instrument, fields, line) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	j.tx, j.insert = tx, stmt
	return nil
}

func (j *Journal) commit() error {
	if j.tx == nil {
		return nil
	}
	j.insert.Close()
	err := j.tx.Commit()
	j.tx, j.insert, j.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// FinishRun flushes outstanding records and stores the run summary.
func (j *Journal) FinishRun(ctx context.Context, summary any) error {
	if err := j.commit(); err != nil {
		return err
	}
	s, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?",
		time.Now().UnixNano(), string(s), j.runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// LatestRun returns the id of the most recently started run, or "" for an
// empty journal.
func (j *Journal) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := j.db.QueryRowContext(ctx,
		"SELECT id FROM runs ORDER BY started_at DESC LIMIT 1",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query runs: %w", err)
	}
	return id, nil
}

// LoadRecords returns the records journaled for runID in emission order.
func (j *Journal) LoadRecords(ctx context.Context, runID string) ([]emit.Record, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT ts, kind, instrument, fields, line FROM records WHERE run_id = ? ORDER BY seq ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []emit.Record
	for rows.Next() {
		var (
			ts     int64
			kind   string
			r      emit.Record
			fields []byte
		)
		if err := rows.Scan(&ts, &kind, &r.Instrument, &fields, &r.Line); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
		}
		r.T, r.Kind = quant.Time(ts), emit.Kind(kind)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Close commits outstanding records and closes the database connection.
func (j *Journal) Close() error {
	err := j.commit()
	if cerr := j.db.Close(); err == nil {
		err = cerr
	}
	return err
}
