package longterm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkern/psyche/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var seedDocs = []string{
	"User likes jazz and plays the saxophone on weekends",
	"User works as a backend developer writing Go services",
	"Agent prefers giving concise technical answers",
	"User mentioned an upcoming trip to Lisbon in October",
	"Conversation about favorite programming languages",
}

func seedStore(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	for i, content := range seedDocs {
		e := Entry{
			ID:         string(rune('a'+i)) + "-entry",
			Content:    content,
			Category:   store.CategoryUser,
			Importance: store.ImportanceNormal,
			CreatedAt:  now.Add(-24 * time.Hour),
			PromotedAt: now,
		}
		if err := s.Put(ctx, e); err != nil {
			t.Fatalf("Put %s: %v", e.ID, err)
		}
	}
}

func TestPutAndQuery(t *testing.T) {
	db := testDB(t)
	s := NewSQLiteStore(db, NewTFIDFEmbedder(seedDocs, 256))
	seedStore(t, s)

	results, err := s.Query(context.Background(), "jazz saxophone on weekends", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].Entry.Content != seedDocs[0] {
		t.Errorf("top result = %q, want the jazz entry", results[0].Entry.Content)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	db := testDB(t)
	s := NewSQLiteStore(db, NewTFIDFEmbedder(seedDocs, 256))
	seedStore(t, s)

	results, err := s.Query(context.Background(), "user", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) > 2 {
		t.Errorf("got %d results, want at most 2", len(results))
	}
}

func TestPutUpsert(t *testing.T) {
	db := testDB(t)
	s := NewSQLiteStore(db, NewTFIDFEmbedder(seedDocs, 256))

	ctx := context.Background()
	e := Entry{
		ID: "dup", Content: "original content",
		Category: store.CategoryUser, Importance: store.ImportanceHigh,
		CreatedAt: time.Now(), PromotedAt: time.Now(),
	}
	if err := s.Put(ctx, e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e.Content = "reinforced content"
	e.ReinforcementCount = 4
	if err := s.Put(ctx, e); err != nil {
		t.Fatalf("Put upsert: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count after upsert = %d, want 1", n)
	}
	got, err := s.Get("dup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Content != "reinforced content" || got.ReinforcementCount != 4 {
		t.Errorf("upserted entry = %+v", got)
	}
}

// failingEmbedder simulates an unreachable embedding service.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) Model() string   { return "down" }
func (failingEmbedder) Dimensions() int { return 0 }

func TestPutSurfacesWriteFailed(t *testing.T) {
	db := testDB(t)
	s := NewSQLiteStore(db, failingEmbedder{})

	err := s.Put(context.Background(), Entry{
		ID: "x", Content: "anything",
		Category: store.CategoryUser, Importance: store.ImportanceNormal,
		CreatedAt: time.Now(), PromotedAt: time.Now(),
	})
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Put with dead embedder = %v, want ErrWriteFailed", err)
	}

	// Nothing half-written
	n, _ := s.Count()
	if n != 0 {
		t.Errorf("entry persisted despite failed put: count = %d", n)
	}
}

func TestTFIDFEmbedderBasics(t *testing.T) {
	emb := NewTFIDFEmbedder(seedDocs, 128)
	ctx := context.Background()

	a, err := emb.Embed(ctx, "jazz saxophone music")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := emb.Embed(ctx, "jazz saxophone music")
	if CosineSimilarity(a, b) < 0.999 {
		t.Error("identical texts should embed identically")
	}

	c, _ := emb.Embed(ctx, "backend developer go services")
	if sim := CosineSimilarity(a, c); sim > 0.5 {
		t.Errorf("unrelated texts too similar: %f", sim)
	}

	empty, _ := emb.Embed(ctx, "")
	if len(empty) != emb.Dimensions() {
		t.Errorf("empty text embedding has %d dims, want %d", len(empty), emb.Dimensions())
	}
}

func TestContents(t *testing.T) {
	db := testDB(t)
	s := NewSQLiteStore(db, NewTFIDFEmbedder(nil, 64))

	if err := s.Put(context.Background(), Entry{
		ID: "c1", Content: "remembered thing",
		Category: store.CategoryUser, Importance: store.ImportanceNormal,
		CreatedAt: time.Now(), PromotedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	docs, err := Contents(db)
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	if len(docs) != 1 || docs[0] != "remembered thing" {
		t.Errorf("Contents = %v", docs)
	}
}
