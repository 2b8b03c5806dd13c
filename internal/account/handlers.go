package account

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"anisong/internal/auth"
	"anisong/internal/web"
)

const uniqueViolation = "23505"

const userColumns = `id, email, display_name, avatar_url, role, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (UserPublic, error) {
	var u UserPublic
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	return u, err
}

func validEmail(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	var req RegisterRequest
	if err := web.ReadJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "bad_json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if !validEmail(req.Email) {
		web.WriteError(w, http.StatusBadRequest, "invalid_email")
		return
	}
	if len(req.Password) < 8 {
		web.WriteError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, "hash_failed")
		return
	}

	user, err := scanUser(s.DB.QueryRow(r.Context(),
		`INSERT INTO users (email, password_hash, display_name)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		req.Email, hash, req.DisplayName,
	))
	if err != nil {
		// Covers both the common case and the race where two registrations
		// pass an existence check at once.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			web.WriteError(w, http.StatusConflict, "email_in_use")
			return
		}
		s.Log.Error("register insert failed", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "insert_failed")
		return
	}

	web.WriteJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	var req LoginRequest
	if err := web.ReadJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "bad_json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		web.WriteError(w, http.StatusBadRequest, "email_password_required")
		return
	}

	var userID, hash, role string
	err := s.DB.QueryRow(r.Context(),
		`SELECT id, password_hash, role FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hash, &role)
	if err != nil || !auth.CheckPassword(hash, req.Password) {
		web.WriteError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	if _, err := s.DB.Exec(r.Context(),
		`UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`,
		userID,
	); err != nil {
		s.Log.Warn("last_login_at update failed", "err", err)
	}

	token, err := auth.SignJWT(userID, role, s.Cfg.JWT)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, "jwt_failed")
		return
	}
	web.WriteJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) getUser(ctx context.Context, userID string) (UserPublic, error) {
	return scanUser(s.DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (s *Server) applyUpdate(ctx context.Context, userID string, update UserUpdate) (UserPublic, error) {
	return scanUser(s.DB.QueryRow(ctx,
		`UPDATE users
		    SET display_name = COALESCE($2, display_name),
		        avatar_url   = COALESCE($3, avatar_url),
		        updated_at   = now()
		  WHERE id = $1
		  RETURNING `+userColumns,
		userID, update.DisplayName, update.AvatarURL,
	))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := web.IdentityFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		user, err := s.getUser(r.Context(), id.UserID)
		if err != nil {
			web.WriteError(w, http.StatusUnauthorized, "user_not_found")
			return
		}
		web.WriteJSON(w, http.StatusOK, user)

	case http.MethodPatch:
		var update UserUpdate
		if err := web.ReadJSON(r, &update); err != nil {
			web.WriteError(w, http.StatusBadRequest, "bad_json")
			return
		}
		user, err := s.applyUpdate(r.Context(), id.UserID, update)
		if err != nil {
			web.WriteError(w, http.StatusUnauthorized, "user_not_found")
			return
		}
		web.WriteJSON(w, http.StatusOK, user)

	case http.MethodDelete:
		if _, err := s.DB.Exec(r.Context(), `DELETE FROM users WHERE id = $1`, id.UserID); err != nil {
			web.WriteError(w, http.StatusInternalServerError, "delete_failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	rows, err := s.DB.Query(r.Context(),
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	defer rows.Close()

	out := []UserPublic{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			web.WriteError(w, http.StatusInternalServerError, "scan_failed")
			return
		}
		out = append(out, u)
	}
	web.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/user/")
	if _, err := uuid.Parse(userID); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.getUser(r.Context(), userID)
		if err != nil {
			web.WriteError(w, http.StatusNotFound, "not_found")
			return
		}
		web.WriteJSON(w, http.StatusOK, user)

	case http.MethodPatch:
		var update UserUpdate
		if err := web.ReadJSON(r, &update); err != nil {
			web.WriteError(w, http.StatusBadRequest, "bad_json")
			return
		}
		user, err := s.applyUpdate(r.Context(), userID, update)
		if err != nil {
			web.WriteError(w, http.StatusNotFound, "not_found")
			return
		}
		web.WriteJSON(w, http.StatusOK, user)

	case http.MethodDelete:
		caller, _ := web.IdentityFromContext(r.Context())
		if caller.UserID == userID {
			web.WriteError(w, http.StatusBadRequest, "cannot_delete_self")
			return
		}
		tag, err := s.DB.Exec(r.Context(), `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			web.WriteError(w, http.StatusInternalServerError, "delete_failed")
			return
		}
		if tag.RowsAffected() == 0 {
			web.WriteError(w, http.StatusNotFound, "not_found")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}
