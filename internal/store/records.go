package store

import (
	"fmt"
	"time"
)

// ConsolidationRecord is one append-only diagnostics line per completed
// consolidation cycle.
type ConsolidationRecord struct {
	ID              int64     `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	EntriesScanned  int       `json:"entries_scanned"`
	EntriesPromoted int       `json:"entries_promoted"`
	EntriesEvicted  int       `json:"entries_evicted"`
}

// AppendConsolidationRecord writes one record. Write-once: records are
// never updated or deleted.
func (db *DB) AppendConsolidationRecord(rec ConsolidationRecord) error {
	_, err := db.Exec(`
		INSERT INTO consolidation_log (started_at, entries_scanned, entries_promoted, entries_evicted)
		VALUES (?, ?, ?, ?)
	`, rec.StartedAt.UnixMilli(), rec.EntriesScanned, rec.EntriesPromoted, rec.EntriesEvicted)
	if err != nil {
		return fmt.Errorf("append consolidation record: %w", err)
	}
	return nil
}

// RecentConsolidationRecords returns up to limit records, newest first.
func (db *DB) RecentConsolidationRecords(limit int) ([]ConsolidationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, started_at, entries_scanned, entries_promoted, entries_evicted
		FROM consolidation_log ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("consolidation records: %w", err)
	}
	defer rows.Close()

	var records []ConsolidationRecord
	for rows.Next() {
		var rec ConsolidationRecord
		var started int64
		if err := rows.Scan(&rec.ID, &started, &rec.EntriesScanned, &rec.EntriesPromoted, &rec.EntriesEvicted); err != nil {
			return nil, fmt.Errorf("scan consolidation record: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IncrementCounter bumps a named runtime counter and returns the new value.
func (db *DB) IncrementCounter(name string) (int64, error) {
	_, err := db.Exec(`
		INSERT INTO runtime_counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`, name)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return db.GetCounter(name)
}

// GetCounter reads a named runtime counter, 0 if never set.
func (db *DB) GetCounter(name string) (int64, error) {
	var v int64
	err := db.QueryRow(`SELECT COALESCE(MAX(value), 0) FROM runtime_counters WHERE name = ?`, name).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	return v, nil
}

// ResetCounter sets a named runtime counter back to zero.
func (db *DB) ResetCounter(name string) error {
	if _, err := db.Exec(`
		INSERT INTO runtime_counters (name, value) VALUES (?, 0)
		ON CONFLICT(name) DO UPDATE SET value = 0
	`, name); err != nil {
		return fmt.Errorf("reset counter %s: %w", name, err)
	}
	return nil
}
