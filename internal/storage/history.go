package storage

import (
	"fmt"

	"github.com/user/minerscan/internal/history"
)

// HistoryStorage persists coarse hashrate history.
type HistoryStorage struct {
	db    *DB
	limit int
}

// NewHistoryStorage creates a history handler keeping at most limit points
// per address.
func NewHistoryStorage(db *DB, limit int) *HistoryStorage {
	return &HistoryStorage{db: db, limit: limit}
}

// Append stores one point per address and prunes old rows.
func (s *HistoryStorage) Append(points map[string]history.HashratePoint) error {
	return s.db.WithLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for addr, p := range points {
			if _, err := tx.Exec(
				"INSERT INTO hashrate_history (address, timestamp, hashrate) VALUES (?, ?, ?)",
				addr, p.Timestamp, p.Hashrate); err != nil {
				return fmt.Errorf("failed to insert history for %s: %w", addr, err)
			}
			if _, err := tx.Exec(`DELETE FROM hashrate_history WHERE address = ? AND id NOT IN (
				SELECT id FROM hashrate_history WHERE address = ? ORDER BY timestamp DESC, id DESC LIMIT ?)`,
				addr, addr, s.limit); err != nil {
				return fmt.Errorf("failed to prune history for %s: %w", addr, err)
			}
		}

		return tx.Commit()
	})
}

// Get returns the points of address, oldest first.
func (s *HistoryStorage) Get(address string) ([]history.HashratePoint, error) {
	rows, err := s.db.Query(`SELECT timestamp, hashrate FROM hashrate_history
		WHERE address = ? ORDER BY timestamp, id`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []history.HashratePoint
	for rows.Next() {
		var p history.HashratePoint
		if err := rows.Scan(&p.Timestamp, &p.Hashrate); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Restore loads every stored series into store.
func (s *HistoryStorage) Restore(store *history.Store) (int, error) {
	rows, err := s.db.Query(`SELECT address, timestamp, hashrate FROM hashrate_history
		ORDER BY address, timestamp, id`)
	if err != nil {
		return 0, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var addr string
		var p history.HashratePoint
		if err := rows.Scan(&addr, &p.Timestamp, &p.Hashrate); err != nil {
			return n, fmt.Errorf("failed to scan history: %w", err)
		}
		store.AppendCoarse(addr, p)
		n++
	}
	return n, rows.Err()
}
