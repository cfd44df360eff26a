package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EmotionRow is the persisted affect snapshot, overwritten on each apply.
type EmotionRow struct {
	Happiness   float64
	Trust       float64
	Energy      float64
	Curiosity   float64
	Frustration float64
	Motivation  float64
	UpdatedAt   time.Time
}

// SaveEmotionState overwrites the single emotion snapshot row.
func (db *DB) SaveEmotionState(row EmotionRow) error {
	_, err := db.Exec(`
		INSERT INTO emotion_state (id, happiness, trust, energy, curiosity, frustration, motivation, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			happiness = ?, trust = ?, energy = ?, curiosity = ?, frustration = ?, motivation = ?, updated_at = ?
	`, row.Happiness, row.Trust, row.Energy, row.Curiosity, row.Frustration, row.Motivation, row.UpdatedAt.UnixMilli(),
		row.Happiness, row.Trust, row.Energy, row.Curiosity, row.Frustration, row.Motivation, row.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save emotion state: %w", err)
	}
	return nil
}

// LoadEmotionState returns the persisted snapshot, or nil if none was
// ever written.
func (db *DB) LoadEmotionState() (*EmotionRow, error) {
	var row EmotionRow
	var updated int64
	err := db.QueryRow(`
		SELECT happiness, trust, energy, curiosity, frustration, motivation, updated_at
		FROM emotion_state WHERE id = 1
	`).Scan(&row.Happiness, &row.Trust, &row.Energy, &row.Curiosity, &row.Frustration, &row.Motivation, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load emotion state: %w", err)
	}
	row.UpdatedAt = time.UnixMilli(updated)
	return &row, nil
}
