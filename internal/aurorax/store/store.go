// Package store persists a ledger of completed engine runs to sqlite, for
// after-the-fact auditing of delivery outcomes (spec §6's Merkle
// proof-of-delivery output shape lands here as a serialized column).
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aurora-x/aurora-x/internal/aurorax"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	token_id      TEXT PRIMARY KEY,
	flow_class    TEXT NOT NULL,
	priority      TEXT NOT NULL,
	delivered     INTEGER NOT NULL,
	coverage      REAL NOT NULL,
	steps         INTEGER NOT NULL,
	sig_bad       INTEGER NOT NULL,
	proof_json    TEXT NOT NULL,
	finished_at   DATETIME NOT NULL
);
`

// RunRecord is one completed token's outcome.
type RunRecord struct {
	TokenID    string    `db:"token_id"`
	FlowClass  string    `db:"flow_class"`
	Priority   string    `db:"priority"`
	Delivered  bool      `db:"delivered"`
	Coverage   float64   `db:"coverage"`
	Steps      int       `db:"steps"`
	SigBad     bool      `db:"sig_bad"`
	ProofJSON  string    `db:"proof_json"`
	FinishedAt time.Time `db:"finished_at"`
}

// Store wraps a sqlite-backed run ledger.
type Store struct {
	db *sqlx.DB
}

// Open creates/migrates the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, aurorax.Wrap(err, "open run ledger")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, aurorax.Wrap(err, "migrate run ledger schema")
	}
	return &Store{db: db}, nil
}

// RecordRun upserts a completed run's outcome.
func (s *Store) RecordRun(ctx context.Context, r RunRecord) error {
	const q = `
	INSERT INTO runs (token_id, flow_class, priority, delivered, coverage, steps, sig_bad, proof_json, finished_at)
	VALUES (:token_id, :flow_class, :priority, :delivered, :coverage, :steps, :sig_bad, :proof_json, :finished_at)
	ON CONFLICT(token_id) DO UPDATE SET
		delivered = excluded.delivered,
		coverage = excluded.coverage,
		steps = excluded.steps,
		sig_bad = excluded.sig_bad,
		proof_json = excluded.proof_json,
		finished_at = excluded.finished_at
	`
	_, err := s.db.NamedExecContext(ctx, q, r)
	if err != nil {
		return aurorax.Wrap(err, "record run")
	}
	return nil
}

// RunByToken fetches a previously recorded run, if any.
func (s *Store) RunByToken(ctx context.Context, tokenID string) (RunRecord, bool, error) {
	var r RunRecord
	err := s.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE token_id = ?`, tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, aurorax.Wrap(err, "fetch run")
	}
	return r, true, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
