// Package catalog implements the catalog service: anime, songs, people and
// the AniSongDB / AniList importers.
package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"anisong/internal/anilist"
	"anisong/internal/anisongdb"
	"anisong/internal/config"
	"anisong/internal/storage"
	"anisong/internal/web"
)

type Server struct {
	DB        *pgxpool.Pool
	Cfg       config.Catalog
	Log       *log.Logger
	AniSongDB *anisongdb.Client
	AniList   *anilist.Client
	Storage   *storage.Client // nil when S3 env vars are missing
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.Handle("/api/anime", s.adminWrites(http.HandlerFunc(s.handleAnime)))
	mux.Handle("/api/anime/", s.adminWrites(http.HandlerFunc(s.handleAnimeSub)))
	mux.Handle("/api/songs/", s.adminWrites(http.HandlerFunc(s.handleSongsSub)))
	mux.Handle("/api/people", s.adminWrites(http.HandlerFunc(s.handlePeople)))
	mux.Handle("/api/people/", s.adminWrites(http.HandlerFunc(s.handlePeopleSub)))

	return web.WithCORS(mux)
}

// adminWrites leaves reads public and gates every mutating method behind an
// admin bearer token.
func (s *Server) adminWrites(h http.Handler) http.Handler {
	protected := web.AuthMiddleware(s.Cfg.JWT, web.RequireAdmin(h))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			h.ServeHTTP(w, r)
		default:
			protected.ServeHTTP(w, r)
		}
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "catalog"})
}
