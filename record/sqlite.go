package record

import (
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver under database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteAccessRecorder buffers access events and batches them into a SQLite
// database, the same shape of write-behind the CSV recorder uses, just with
// a transactional sink instead of a flat file.
type SQLiteAccessRecorder struct {
	db        *sql.DB
	statement *sql.Stmt

	path      string
	events    []AccessEvent
	batchSize int
}

// NewSQLiteAccessRecorder creates a recorder backed by the database at path.
func NewSQLiteAccessRecorder(path string) *SQLiteAccessRecorder {
	return &SQLiteAccessRecorder{path: path, batchSize: 10000}
}

// Init opens the database, creates the access_events table if missing, and
// prepares the insert statement.
func (r *SQLiteAccessRecorder) Init() error {
	db, err := sql.Open("sqlite3", r.path)
	if err != nil {
		return err
	}
	r.db = db

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS access_events (
		step INTEGER, pid TEXT, page INTEGER, virtual_address INTEGER,
		write INTEGER, tlb_hit INTEGER, faulted INTEGER, frame INTEGER
	)`)
	if err != nil {
		return err
	}

	stmt, err := db.Prepare(`INSERT INTO access_events
		(step, pid, page, virtual_address, write, tlb_hit, faulted, frame)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	r.statement = stmt

	atexit.Register(func() { _ = r.Close() })
	return nil
}

// Record buffers an event, flushing the batch once it is full.
func (r *SQLiteAccessRecorder) Record(e AccessEvent) {
	r.events = append(r.events, e)
	if len(r.events) >= r.batchSize {
		_ = r.Flush()
	}
}

// Flush writes every buffered event inside one transaction.
func (r *SQLiteAccessRecorder) Flush() error {
	if len(r.events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(r.statement)

	for _, e := range r.events {
		_, err := stmt.Exec(e.Step, string(e.PID), e.Page, e.VirtualAddress,
			e.Write, e.TLBHit, e.Faulted, e.Frame)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	r.events = nil
	return tx.Commit()
}

// Close flushes any remaining events and closes the database.
func (r *SQLiteAccessRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// ResultStore persists a completed simulation's result document, identified
// by a fresh xid-generated run ID, as a JSON blob alongside a timestamp.
type ResultStore struct {
	db *sql.DB
}

// OpenResultStore opens (creating if needed) a results database at path.
func OpenResultStore(path string) (*ResultStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS results (
		run_id TEXT PRIMARY KEY, created_at TEXT, document TEXT
	)`)
	if err != nil {
		return nil, err
	}

	return &ResultStore{db: db}, nil
}

// Save inserts one result document and returns the run ID it was stored
// under.
func (s *ResultStore) Save(createdAt string, document []byte) (string, error) {
	runID := xid.New().String()

	_, err := s.db.Exec(`INSERT INTO results (run_id, created_at, document) VALUES (?, ?, ?)`,
		runID, createdAt, string(document))
	if err != nil {
		return "", fmt.Errorf("record: saving result: %w", err)
	}
	return runID, nil
}

// Close closes the underlying database.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
