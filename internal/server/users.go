package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brandy/internal/store"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !currentUser(r).IsAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		zap.L().Error("list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	caller := currentUser(r)
	if !caller.IsAdmin && caller.Username != username {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	user, err := s.store.GetUser(r.Context(), username)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such user")
		return
	}
	if err != nil {
		zap.L().Error("get user", zap.String("username", username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
