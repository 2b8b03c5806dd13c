// Package account implements the account service: registration, login and
// user management.
package account

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
	Cfg config.Account
	Log *log.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/login", s.handleLogin)

	// Self-service
	mux.Handle("/user/me", web.AuthMiddleware(s.Cfg.JWT, http.HandlerFunc(s.handleMe)))

	// Admin
	mux.Handle("/user", web.AuthMiddleware(s.Cfg.JWT, web.RequireAdmin(http.HandlerFunc(s.handleListUsers))))
	mux.Handle("/user/", web.AuthMiddleware(s.Cfg.JWT, web.RequireAdmin(http.HandlerFunc(s.handleUserByID))))

	return web.WithCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "account"})
}
