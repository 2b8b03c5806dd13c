// Package config loads per-service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL missing")

// LoadDotenv reads a .env file when present. Missing files are fine; real
// deployments set everything in the environment.
func LoadDotenv() bool {
	return godotenv.Load() == nil
}

// JWT holds the token settings shared by every service that signs or
// verifies access tokens.
type JWT struct {
	Secret   string
	Issuer   string
	Audience string
	TTLMin   int
}

func jwtFromEnv() JWT {
	ttl := 20
	if s := strings.TrimSpace(os.Getenv("JWT_TTL_MINUTES")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			ttl = n
		}
	}
	return JWT{
		Secret:   envOr("JWT_SECRET", "dev-secret"),
		Issuer:   envOr("JWT_ISSUER", "https://auth.anisong.local"),
		Audience: envOr("JWT_AUDIENCE", "anisong.api"),
		TTLMin:   ttl,
	}
}

// Account is the account service configuration.
type Account struct {
	DatabaseURL string
	Port        string
	Env         string
	JWT         JWT

	SeedAdmin        bool
	AdminEmail       string
	AdminPassword    string
	AdminDisplayName string
}

func AccountFromEnv() (Account, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return Account{}, ErrMissingDatabaseURL
	}
	cfg := Account{
		DatabaseURL:      dbURL,
		Port:             envOr("PORT", "8003"),
		Env:              strings.ToLower(envOr("ENV", "development")),
		JWT:              jwtFromEnv(),
		SeedAdmin:        boolEnv("ENABLE_ADMIN_SEED"),
		AdminEmail:       strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		AdminDisplayName: envOr("ADMIN_DISPLAY_NAME", "Admin"),
	}
	if cfg.IsProduction() && cfg.SeedAdmin {
		return Account{}, fmt.Errorf("refusing to seed admin in production; remove ENABLE_ADMIN_SEED")
	}
	return cfg, nil
}

func (a Account) IsProduction() bool {
	return a.Env == "prod" || a.Env == "production"
}

// Catalog is the catalog service configuration.
type Catalog struct {
	DatabaseURL    string
	Port           string
	JWT            JWT
	AniSongDBBase  string
	AudioKeyPrefix string
}

func CatalogFromEnv() (Catalog, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return Catalog{}, ErrMissingDatabaseURL
	}
	return Catalog{
		DatabaseURL:    dbURL,
		Port:           envOr("PORT", "8001"),
		JWT:            jwtFromEnv(),
		AniSongDBBase:  strings.TrimRight(strings.TrimSpace(os.Getenv("ANISONGDB_BASE_URL")), "/"),
		AudioKeyPrefix: envOr("AUDIO_KEY_PREFIX", "audio"),
	}, nil
}

// Library is the library service configuration.
type Library struct {
	DatabaseURL string
	Port        string
	JWT         JWT
}

func LibraryFromEnv() (Library, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return Library{}, ErrMissingDatabaseURL
	}
	return Library{
		DatabaseURL: dbURL,
		Port:        envOr("PORT", "8002"),
		JWT:         jwtFromEnv(),
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
