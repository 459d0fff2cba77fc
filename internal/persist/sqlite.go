package persist

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// documentName is the row holding the live task document.
const documentName = "tasks"

// SQLite stores the document as a single row and journals every flush.
type SQLite struct {
	db *sql.DB
}

// Flush is one journaled write.
type Flush struct {
	ID        string    `json:"id"`
	Tasks     int       `json:"tasks"`
	Bytes     int       `json:"bytes"`
	SHA256    string    `json:"sha256"`
	WrittenAt time.Time `json:"written_at"`
}

// NewSQLite opens (creating if needed) the database at dbPath and runs
// migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate runs idempotent schema migrations.
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flushes (
		id TEXT PRIMARY KEY,
		tasks INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL,
		sha256 TEXT NOT NULL,
		written_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_flushes_written_at ON flushes(written_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Journals created before the task count was recorded.
	var hasTasks int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('flushes') WHERE name = 'tasks'`).Scan(&hasTasks)
	if err != nil {
		return fmt.Errorf("inspect flushes: %w", err)
	}
	if hasTasks == 0 {
		if _, err := s.db.Exec(`ALTER TABLE flushes ADD COLUMN tasks INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add flushes.tasks: %w", err)
		}
	}
	return nil
}

// Name returns the backend identifier.
func (s *SQLite) Name() string { return DriverSQLite }

// Read returns the live document or nil if none was written.
func (s *SQLite) Read(ctx context.Context) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, documentName).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return body, nil
}

// Write replaces the document and journals the flush in one transaction.
func (s *SQLite) Write(ctx context.Context, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		documentName, data, now,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	sum := sha256.Sum256(data)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO flushes (id, tasks, bytes, sha256, written_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), countTasks(data), len(data), hex.EncodeToString(sum[:]), now,
	)
	if err != nil {
		return fmt.Errorf("insert flush: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Quarantine moves the live document aside under a timestamped name.
func (s *SQLite) Quarantine(ctx context.Context) (string, error) {
	name := fmt.Sprintf("%s.corrupt-%d", documentName, time.Now().Unix())
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET name = ? WHERE name = ?`, name, documentName)
	if err != nil {
		return "", fmt.Errorf("quarantine document: %w", err)
	}
	return name, nil
}

// Flushes returns the most recent journaled writes, newest first.
func (s *SQLite) Flushes(ctx context.Context, limit int) ([]Flush, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tasks, bytes, sha256, written_at FROM flushes ORDER BY written_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query flushes: %w", err)
	}
	defer rows.Close()

	flushes := []Flush{}
	for rows.Next() {
		var f Flush
		if err := rows.Scan(&f.ID, &f.Tasks, &f.Bytes, &f.SHA256, &f.WrittenAt); err != nil {
			return nil, fmt.Errorf("scan flush: %w", err)
		}
		flushes = append(flushes, f)
	}
	return flushes, rows.Err()
}

// countTasks returns the number of elements in an encoded document, or 0
// when it is not a JSON array.
func countTasks(data []byte) int {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return 0
	}
	return len(items)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
