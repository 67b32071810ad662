package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

// listStates handles GET /v1/crawl-states?site=&status=.
func (s *Server) listStates(w http.ResponseWriter, r *http.Request) {
	if s.deps.States == nil {
		writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	site := strings.TrimSpace(r.URL.Query().Get("site"))
	status := store.CrawlStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	states, err := s.deps.States.List(r.Context(), site)
	if err != nil {
		s.logger.Error("list crawl states failed", zap.String("site", site), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list crawl states")
		return
	}
	out := make([]store.CrawlState, 0, len(states))
	for _, state := range states {
		if status == "" || state.Status == status {
			out = append(out, state)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": out})
}

// getState handles GET /v1/crawl-states/{id}.
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	if s.deps.States == nil {
		writeError(w, http.StatusServiceUnavailable, "state store unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	state, err := s.deps.States.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "crawl state not found")
		return
	}
	if err != nil {
		s.logger.Error("get crawl state failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load crawl state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
