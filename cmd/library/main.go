package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"anisong/internal/config"
	"anisong/internal/database"
	"anisong/internal/library"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "library"})

	config.LoadDotenv()
	cfg, err := config.LibraryFromEnv()
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

	if err := database.Migrate(ctx, pool, library.Migrations()); err != nil {
		logger.Fatal("migrations failed", "err", err)
	}

	srv := &library.Server{DB: pool, Cfg: cfg, Log: logger}

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
