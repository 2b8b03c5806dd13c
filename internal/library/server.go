// Package library implements the library service: per-user song ratings.
package library

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"anisong/internal/config"
	"anisong/internal/web"
)

type Server struct {
	DB  *pgxpool.Pool
	Cfg config.Library
	Log *log.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/library", web.AuthMiddleware(s.Cfg.JWT, http.HandlerFunc(s.handleLibrary)))
	mux.Handle("/library/", web.AuthMiddleware(s.Cfg.JWT, http.HandlerFunc(s.handleLibrarySub)))

	return web.WithCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "library"})
}
