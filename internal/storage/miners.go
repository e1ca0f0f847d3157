package storage

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/user/minerscan/internal/model"
)

// MinerStorage persists the last published registry snapshot.
type MinerStorage struct {
	db *DB
}

// NewMinerStorage creates a new miner storage handler.
func NewMinerStorage(db *DB) *MinerStorage {
	return &MinerStorage{db: db}
}

// ReplaceAll swaps the stored snapshot for readings in one transaction.
func (s *MinerStorage) ReplaceAll(passID string, readings map[string]model.DeviceReading) error {
	return s.db.WithLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec("DELETE FROM miners"); err != nil {
			return fmt.Errorf("failed to clear miners: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO miners (address, pass_id, hostname, model,
			firmware, hardware_id, hashrate, power, temperature, mining, reading, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for addr, r := range readings {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", addr, err)
			}
			lastSeen := r.ReadAt
			if lastSeen.IsZero() {
				lastSeen = time.Now()
			}
			if _, err := stmt.Exec(addr, passID, r.Hostname, r.Model, r.Firmware,
				r.HardwareID, r.Hashrate, r.Power, r.AvgTemperature, r.Mining,
				string(data), lastSeen); err != nil {
				return fmt.Errorf("failed to save miner %s: %w", addr, err)
			}
		}

		return tx.Commit()
	})
}

// GetAll returns the stored snapshot ordered by address.
func (s *MinerStorage) GetAll() ([]model.DeviceReading, error) {
	rows, err := s.db.Query("SELECT address, reading FROM miners")
	if err != nil {
		return nil, fmt.Errorf("failed to query miners: %w", err)
	}
	defer rows.Close()

	var out []model.DeviceReading
	for rows.Next() {
		var addr, data string
		if err := rows.Scan(&addr, &data); err != nil {
			return nil, fmt.Errorf("failed to scan miner: %w", err)
		}
		var r model.DeviceReading
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode miner %s: %w", addr, err)
		}
		r.Address = addr
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, errA := netip.ParseAddr(out[i].Address)
		b, errB := netip.ParseAddr(out[j].Address)
		if errA != nil || errB != nil {
			return out[i].Address < out[j].Address
		}
		return a.Less(b)
	})
	return out, nil
}

// Count returns the number of stored miners.
func (s *MinerStorage) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM miners").Scan(&count)
	return count, err
}

// ModelCount is the number of miners per model.
type ModelCount struct {
	Model string
	Count int
}

// CountByModel groups stored miners by model.
func (s *MinerStorage) CountByModel() ([]ModelCount, error) {
	rows, err := s.db.Query(`SELECT COALESCE(NULLIF(model, ''), 'unknown'), COUNT(*)
		FROM miners GROUP BY 1 ORDER BY 2 DESC, 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to count models: %w", err)
	}
	defer rows.Close()

	var out []ModelCount
	for rows.Next() {
		var mc ModelCount
		if err := rows.Scan(&mc.Model, &mc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan model count: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}
