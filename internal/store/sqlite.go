package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/run-harness/internal/artifact"
)

// SQLiteStore implements Store using modernc.org/sqlite. The full record
// set is stored as one JSON document; Save replaces it wholesale.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a SQLite database at path and
// configures WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (data TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, records []artifact.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal records")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return eris.Wrap(err, "sqlite: clear records")
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO records (data) VALUES (?)`, string(raw)); err != nil {
		return eris.Wrap(err, "sqlite: insert records")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) Load(ctx context.Context) ([]artifact.Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records LIMIT 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return []artifact.Record{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select records")
	}

	var records []artifact.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal records")
	}
	if records == nil {
		records = []artifact.Record{}
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
