// Package snapshot persists the last-known folder tree and session identity
// so the manager survives reloads and remote outages.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amiezra1/mrg/internal/domain"
)

// Store is a durable key-value snapshot of the folder tree plus the
// persisted session. Save failures are non-fatal to callers by contract;
// they are returned so the caller can log them.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the snapshot database under dataDir
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "mrg.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		folder_id TEXT PRIMARY KEY,
		entries TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTree replaces the persisted tree with the given one atomically
func (s *Store) SaveTree(tree domain.FolderTree) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM folders"); err != nil {
		return fmt.Errorf("failed to clear folders: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO folders (folder_id, entries) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for folderID, entries := range tree {
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to encode entries for %s: %w", folderID, err)
		}
		if _, err := stmt.Exec(folderID, string(data)); err != nil {
			return fmt.Errorf("failed to insert folder %s: %w", folderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tree: %w", err)
	}

	return nil
}

// LoadTree returns the persisted tree, or nil when no snapshot exists
func (s *Store) LoadTree() (domain.FolderTree, error) {
	rows, err := s.db.Query("SELECT folder_id, entries FROM folders")
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	defer rows.Close()

	tree := make(domain.FolderTree)
	for rows.Next() {
		var folderID, data string
		if err := rows.Scan(&folderID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}

		var entries []domain.Entry
		if err := json.Unmarshal([]byte(data), &entries); err != nil {
			return nil, fmt.Errorf("failed to decode entries for %s: %w", folderID, err)
		}
		if entries == nil {
			entries = []domain.Entry{}
		}
		tree[folderID] = entries
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folder rows: %w", err)
	}

	if len(tree) == 0 {
		return nil, nil // no snapshot yet
	}

	return tree, nil
}

// SaveSession persists the identity state across reloads
func (s *Store) SaveSession(session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO session (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, string(data))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// LoadSession returns the persisted session, or nil when none exists
func (s *Store) LoadSession() (*domain.Session, error) {
	var data string
	err := s.db.QueryRow("SELECT payload FROM session WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &session, nil
}

// ClearSession removes the persisted session
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec("DELETE FROM session WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
