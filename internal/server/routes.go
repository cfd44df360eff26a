package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkern/psyche/internal/store"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, `{"error":"message required"}`, http.StatusBadRequest)
		return
	}

	resp, err := s.orch.Handle(r.Context(), req.Message)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	rec, err := s.worker.Consolidate(r.Context())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if rec == nil {
		// A cycle was already running; the trigger was a no-op.
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "busy"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "done",
		"scanned":  rec.EntriesScanned,
		"promoted": rec.EntriesPromoted,
		"evicted":  rec.EntriesEvicted,
	})
}

func (s *Server) handleEmotions(w http.ResponseWriter, r *http.Request) {
	snap := s.emotions.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state": snap,
		"mood":  snap.Mood(),
	})
}

func (s *Server) handleShortTerm(w http.ResponseWriter, r *http.Request) {
	category := store.Category(r.URL.Query().Get("category"))
	if category != "" && !store.ValidCategories[category] {
		http.Error(w, `{"error":"unknown category"}`, http.StatusBadRequest)
		return
	}

	entries, err := s.short.ListActive(category, 0)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
