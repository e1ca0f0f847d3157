// Package storage provides SQLite persistence for minerscan.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
	mu sync.RWMutex
}

// Initialize opens minerscan.db in dataDir and creates the schema.
func Initialize(dataDir string) (*DB, error) {
	return Open(filepath.Join(dataDir, "minerscan.db"))
}

// Open opens the database at path and creates the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	instance := &DB{DB: db}
	if err := instance.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return instance, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS scan_passes (
			id TEXT PRIMARY KEY,
			ranges TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			total_addresses INTEGER DEFAULT 0,
			scanned_addresses INTEGER DEFAULT 0,
			found INTEGER DEFAULT 0,
			failed_ranges INTEGER DEFAULT 0,
			duration_ms INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_passes_finished_at ON scan_passes(finished_at)`,

		`CREATE TABLE IF NOT EXISTS miners (
			address TEXT PRIMARY KEY,
			pass_id TEXT,
			hostname TEXT,
			model TEXT,
			firmware TEXT,
			hardware_id TEXT,
			hashrate REAL,
			power REAL,
			temperature REAL,
			mining INTEGER DEFAULT 0,
			reading TEXT NOT NULL,
			last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_miners_model ON miners(model)`,

		`CREATE TABLE IF NOT EXISTS hashrate_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			hashrate REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hashrate_history_address ON hashrate_history(address, timestamp)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// WithLock executes a function with write lock.
func (db *DB) WithLock(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

// WithRLock executes a function with read lock.
func (db *DB) WithRLock(fn func() error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn()
}
