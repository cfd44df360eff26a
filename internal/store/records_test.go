package store

import (
	"testing"
	"time"
)

func TestConsolidationLog(t *testing.T) {
	db := testDB(t)

	recs, err := db.RecentConsolidationRecords(5)
	if err != nil {
		t.Fatalf("RecentConsolidationRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("fresh db has %d records", len(recs))
	}

	base := time.Now().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		err := db.AppendConsolidationRecord(ConsolidationRecord{
			StartedAt:       base.Add(time.Duration(i) * time.Minute),
			EntriesScanned:  10 + i,
			EntriesPromoted: i,
			EntriesEvicted:  1,
		})
		if err != nil {
			t.Fatalf("AppendConsolidationRecord: %v", err)
		}
	}

	recs, err = db.RecentConsolidationRecords(2)
	if err != nil {
		t.Fatalf("RecentConsolidationRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if !recs[0].StartedAt.After(recs[1].StartedAt) {
		t.Errorf("records not ordered newest first: %v, %v", recs[0].StartedAt, recs[1].StartedAt)
	}
	if recs[0].EntriesScanned != 12 {
		t.Errorf("newest record scanned = %d, want 12", recs[0].EntriesScanned)
	}
}

func TestCounters(t *testing.T) {
	db := testDB(t)

	if v, err := db.GetCounter("interactions"); err != nil || v != 0 {
		t.Fatalf("GetCounter fresh = %d, %v", v, err)
	}

	for i := 1; i <= 3; i++ {
		v, err := db.IncrementCounter("interactions")
		if err != nil {
			t.Fatalf("IncrementCounter: %v", err)
		}
		if v != int64(i) {
			t.Errorf("counter after %d increments = %d", i, v)
		}
	}

	if err := db.ResetCounter("interactions"); err != nil {
		t.Fatalf("ResetCounter: %v", err)
	}
	if v, _ := db.GetCounter("interactions"); v != 0 {
		t.Errorf("counter after reset = %d", v)
	}
}

func TestEmotionStateRoundTrip(t *testing.T) {
	db := testDB(t)

	row, err := db.LoadEmotionState()
	if err != nil {
		t.Fatalf("LoadEmotionState: %v", err)
	}
	if row != nil {
		t.Fatal("fresh db returned an emotion snapshot")
	}

	want := EmotionRow{
		Happiness: 0.6, Trust: 0.55, Energy: 0.9,
		Curiosity: 0.5, Frustration: 0.1, Motivation: 0.8,
		UpdatedAt: time.Now().Truncate(time.Millisecond),
	}
	if err := db.SaveEmotionState(want); err != nil {
		t.Fatalf("SaveEmotionState: %v", err)
	}

	// Overwrite: snapshot is a single row
	want.Happiness = 0.7
	want.UpdatedAt = want.UpdatedAt.Add(time.Second)
	if err := db.SaveEmotionState(want); err != nil {
		t.Fatalf("SaveEmotionState overwrite: %v", err)
	}

	got, err := db.LoadEmotionState()
	if err != nil {
		t.Fatalf("LoadEmotionState: %v", err)
	}
	if got == nil {
		t.Fatal("no snapshot loaded")
	}
	if got.Happiness != 0.7 || got.Motivation != 0.8 {
		t.Errorf("loaded snapshot %+v, want %+v", got, want)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("updated_at %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
}
