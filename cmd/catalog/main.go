package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"anisong/internal/anilist"
	"anisong/internal/anisongdb"
	"anisong/internal/catalog"
	"anisong/internal/config"
	"anisong/internal/database"
	"anisong/internal/storage"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "catalog"})

	config.LoadDotenv()
	cfg, err := config.CatalogFromEnv()
	if err != nil {
		logger.Fatal("config", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", "err", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := database.Migrate(ctx, pool, catalog.Migrations()); err != nil {
		logger.Fatal("migrations failed", "err", err)
	}

	store, err := storage.NewFromEnv(ctx)
	if err != nil {
		logger.Warn("audio storage disabled", "err", err)
	}

	if cfg.AniSongDBBase == "" {
		logger.Warn("ANISONGDB_BASE_URL not set; imports will fail with anisongdb_not_configured")
	}

	srv := &catalog.Server{
		DB:        pool,
		Cfg:       cfg,
		Log:       logger,
		AniSongDB: anisongdb.New(cfg.AniSongDBBase),
		AniList:   anilist.New(""),
		Storage:   store,
	}

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
