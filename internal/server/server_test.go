package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkern/psyche/internal/consolidate"
	"github.com/mkern/psyche/internal/decay"
	"github.com/mkern/psyche/internal/emotion"
	"github.com/mkern/psyche/internal/llm"
	"github.com/mkern/psyche/internal/longterm"
	"github.com/mkern/psyche/internal/pipeline"
	"github.com/mkern/psyche/internal/store"
)

// omniJSON satisfies every stage's wire shape at once, so a single mock
// client can drive the whole pipeline in handler tests.
const omniJSON = `{
	"category": "conversation", "language": "en", "urgency": "low",
	"query": "", "facts": [],
	"strategy": "conversational", "tone": "calm", "reply": "hello from the mock",
	"satisfaction": 0.5, "notes": [], "commands": [], "deltas": {},
	"confidence": 0.9}`

func testServer(t *testing.T) (*Server, *store.ShortTerm) {
	t.Helper()

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	short := store.NewShortTerm(db, decay.Default())
	emotions, err := emotion.NewState(db)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	long := longterm.NewSQLiteStore(db, longterm.NewTFIDFEmbedder(nil, 64))

	orch := pipeline.New(pipeline.Config{
		LLM:      llm.NewMock(omniJSON),
		Short:    short,
		Long:     long,
		Emotions: emotions,
	})
	t.Cleanup(orch.Close)

	worker := consolidate.New(consolidate.Config{
		DB: db, Short: short, Long: long,
		Policy: store.DefaultSweepPolicy(),
	})

	return New(db, short, emotions, orch, worker, "test"), short
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["db"] != true {
		t.Errorf("db = %v, want true", resp["db"])
	}
}

func TestChat(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"message":"hello there"}`
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp pipeline.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Reply != "hello from the mock" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.RequestID == "" {
		t.Error("empty request id")
	}
	if resp.Mood == "" {
		t.Error("empty mood")
	}
}

func TestChatMissingMessage(t *testing.T) {
	srv, _ := testServer(t)

	for _, body := range []string{`{}`, `{"message":"   "}`, `not json`} {
		req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestConsolidateEndpoint(t *testing.T) {
	srv, short := testServer(t)
	if _, err := short.Add("something recent", store.CategoryChat, store.ImportanceLow); err != nil {
		t.Fatalf("Add: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/consolidate", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "done" {
		t.Errorf("status = %v, want done", resp["status"])
	}
	if resp["scanned"] != float64(1) {
		t.Errorf("scanned = %v, want 1", resp["scanned"])
	}
}

func TestEmotions(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/emotions", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		State emotion.Snapshot `json:"state"`
		Mood  string           `json:"mood"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.State.Energy != 1.0 {
		t.Errorf("energy = %f, want default 1.0", resp.State.Energy)
	}
	if resp.Mood == "" {
		t.Error("empty mood description")
	}
}

func TestShortTermListing(t *testing.T) {
	srv, short := testServer(t)
	if _, err := short.Add("User likes jazz", store.CategoryUser, store.ImportanceHigh); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := short.Add("session context", store.CategoryContext, store.ImportanceLow); err != nil {
		t.Fatalf("Add: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/memory/short-term?category=user", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count   int           `json:"count"`
		Entries []store.Entry `json:"entries"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Entries[0].Content != "User likes jazz" {
		t.Errorf("entry = %+v", resp.Entries[0])
	}
}

func TestShortTermUnknownCategory(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/memory/short-term?category=nonsense", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
