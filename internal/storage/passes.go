package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/minerscan/internal/model"
)

// PassStorage handles scan pass summaries.
type PassStorage struct {
	db *DB
}

// NewPassStorage creates a new pass storage handler.
func NewPassStorage(db *DB) *PassStorage {
	return &PassStorage{db: db}
}

// Save stores a pass summary.
func (s *PassStorage) Save(p model.PassSummary) error {
	query := `INSERT INTO scan_passes (id, ranges, started_at, finished_at,
			  total_addresses, scanned_addresses, found, failed_ranges, duration_ms)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  finished_at = excluded.finished_at,
			  scanned_addresses = excluded.scanned_addresses,
			  found = excluded.found,
			  failed_ranges = excluded.failed_ranges,
			  duration_ms = excluded.duration_ms`

	return s.db.WithLock(func() error {
		_, err := s.db.Exec(query,
			p.ID, strings.Join(p.Ranges, ","), p.StartedAt, p.FinishedAt,
			p.TotalAddresses, p.ScannedAddresses, p.Found, p.FailedRanges,
			p.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to save scan pass: %w", err)
		}
		return nil
	})
}

// GetLatest returns the most recent pass, or nil when none exist.
func (s *PassStorage) GetLatest() (*model.PassSummary, error) {
	passes, err := s.GetRecent(1)
	if err != nil || len(passes) == 0 {
		return nil, err
	}
	return &passes[0], nil
}

// GetRecent returns up to limit passes, newest first.
func (s *PassStorage) GetRecent(limit int) ([]model.PassSummary, error) {
	query := `SELECT id, ranges, started_at, finished_at, total_addresses,
			  scanned_addresses, found, failed_ranges, duration_ms
			  FROM scan_passes ORDER BY finished_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan passes: %w", err)
	}
	defer rows.Close()

	var passes []model.PassSummary
	for rows.Next() {
		var p model.PassSummary
		var ranges string
		var durationMs int64
		if err := rows.Scan(&p.ID, &ranges, &p.StartedAt, &p.FinishedAt,
			&p.TotalAddresses, &p.ScannedAddresses, &p.Found, &p.FailedRanges,
			&durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		if ranges != "" {
			p.Ranges = strings.Split(ranges, ",")
		}
		p.Duration = time.Duration(durationMs) * time.Millisecond
		passes = append(passes, p)
	}

	return passes, rows.Err()
}

// Count returns the number of stored passes.
func (s *PassStorage) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM scan_passes").Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}
