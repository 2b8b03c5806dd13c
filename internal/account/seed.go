package account

import (
	"context"
	"fmt"
	"strings"

	"anisong/internal/auth"
)

// EnsureAdminUser creates (or promotes) the bootstrap admin account. Only
// called on startup in non-production environments when seeding is enabled.
func (s *Server) EnsureAdminUser(ctx context.Context) error {
	email := strings.ToLower(strings.TrimSpace(s.Cfg.AdminEmail))
	if email == "" || s.Cfg.AdminPassword == "" {
		s.Log.Warn("admin seed enabled but ADMIN_EMAIL or ADMIN_PASSWORD is missing; skipping")
		return nil
	}

	var id, role string
	err := s.DB.QueryRow(ctx, `SELECT id, role FROM users WHERE email = $1`, email).Scan(&id, &role)
	if err == nil {
		if role != auth.RoleAdmin {
			if _, err := s.DB.Exec(ctx,
				`UPDATE users SET role = 'ADMIN', updated_at = now() WHERE id = $1`, id); err != nil {
				return fmt.Errorf("promote admin: %w", err)
			}
			s.Log.Info("existing user promoted to admin", "email", email)
		}
		return nil
	}

	hash, err := auth.HashPassword(s.Cfg.AdminPassword)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx,
		`INSERT INTO users (email, password_hash, display_name, role)
		 VALUES ($1, $2, $3, 'ADMIN')`,
		email, hash, s.Cfg.AdminDisplayName,
	)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.Log.Info("admin seed ensured", "email", email)
	return nil
}
