// Package activity records user actions in a durable journal.
package activity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Log persists user activity records
type Log struct {
	db *sql.DB
}

// Record represents a single user action
type Record struct {
	ID        int64
	Action    string
	User      string
	ItemPath  string
	Details   map[string]string
	Timestamp time.Time
}

// NewLog opens (or creates) the activity database under dataDir
func NewLog(dataDir string) (*Log, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "activities.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	log := &Log{db: db}

	if err := log.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return log, nil
}

// initSchema creates the database schema
func (l *Log) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		user TEXT NOT NULL,
		item_path TEXT NOT NULL,
		details TEXT,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_time ON activities(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_activities_action ON activities(action);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Record appends an activity record. Details may be nil.
func (l *Log) Record(action, user, itemPath string, details map[string]string) error {
	if action == "" {
		return fmt.Errorf("action cannot be empty")
	}

	var detailsJSON string
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
		detailsJSON = string(data)
	}

	_, err := l.db.Exec(`
		INSERT INTO activities (action, user, item_path, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, action, user, itemPath, detailsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save activity record: %w", err)
	}

	return nil
}

// History retrieves the most recent activity records, newest first
func (l *Log) History(limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := l.db.Query(`
		SELECT id, action, user, item_path, details, timestamp
		FROM activities
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var detailsJSON sql.NullString
		err := rows.Scan(
			&record.ID,
			&record.Action,
			&record.User,
			&record.ItemPath,
			&detailsJSON,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &record.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details: %w", err)
			}
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
