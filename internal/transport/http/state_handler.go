package http

import (
	"encoding/json"
	"net/http"

	"probloom-client/internal/app"
)

// StateHandler serves the current state tree as JSON.
type StateHandler struct {
	store *app.Store
}

func NewStateHandler(store *app.Store) *StateHandler {
	return &StateHandler{store: store}
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.store.State())
}
