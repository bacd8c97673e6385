package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brandy/internal/store"
)

func (s *Server) handleScrapes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scrapes, err := s.store.ListScrapes(r.Context(), limit)
	if err != nil {
		zap.L().Error("list scrapes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scrapes": scrapes})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scrape, err := s.store.GetScrape(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such scrape")
		return
	}
	if err != nil {
		zap.L().Error("get scrape", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, scrape)
}
