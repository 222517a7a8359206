package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"salescast/internal/logging"
	"salescast/internal/model"
	"salescast/internal/reconcile"
)

// DB is an in-process journal of reconciliation transitions. It lives in an
// in-memory SQLite database and is gone when the process exits.
type DB struct{ sql *sql.DB }

// Entry is one recorded transition.
type Entry struct {
	ID         int64
	RunID      string
	Generation uint64
	At         time.Time
	Phase      reconcile.Phase
	Attempt    int
	Message    string
	Observed   *model.HyperparameterSet
	Error      string
}

// Open creates an empty journal.
func Open() (*DB, error) {
	d, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// every pooled connection would get its own in-memory database
	d.SetMaxOpenConns(1)
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS transitions (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  run_id TEXT NOT NULL,
	  generation INTEGER NOT NULL,
	  ts INTEGER NOT NULL,
	  phase TEXT NOT NULL,
	  attempt INTEGER NOT NULL,
	  message TEXT NOT NULL,
	  observed TEXT,
	  error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_run ON transitions(run_id, id);
	`)
	return err
}

// Record stores one transition.
func (d *DB) Record(ctx context.Context, s reconcile.Status) error {
	var obs *string
	if s.Observed != nil {
		b, err := json.Marshal(s.Observed)
		if err != nil {
			return err
		}
		v := string(b)
		obs = &v
	}
	var errText *string
	if s.Err != nil {
		v := s.Err.Error()
		errText = &v
	}
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO transitions(run_id, generation, ts, phase, attempt, message, observed, error) VALUES(?,?,?,?,?,?,?,?)`,
		s.RunID, int64(s.Generation), at.UnixNano(), string(s.Phase), s.Attempt, s.Message, obs, errText)
	return err
}

// Publish makes the journal a reconcile.Sink. Write failures are logged.
func (d *DB) Publish(s reconcile.Status) {
	if err := d.Record(context.Background(), s); err != nil {
		logging.Error("journal_record_error", map[string]any{"run_id": s.RunID, "error": err.Error()})
	}
}

// History returns the transitions of runID in the order they happened.
func (d *DB) History(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, run_id, generation, ts, phase, attempt, message, observed, error FROM transitions WHERE run_id=? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var gen, ts int64
		var phase string
		var obs, errText sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &gen, &ts, &phase, &e.Attempt, &e.Message, &obs, &errText); err != nil {
			return nil, err
		}
		e.Generation = uint64(gen)
		e.At = time.Unix(0, ts).UTC()
		e.Phase = reconcile.Phase(phase)
		if obs.Valid {
			var h model.HyperparameterSet
			if err := json.Unmarshal([]byte(obs.String), &h); err != nil {
				return nil, err
			}
			e.Observed = &h
		}
		if errText.Valid {
			e.Error = errText.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
