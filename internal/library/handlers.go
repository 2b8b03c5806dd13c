package library

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"anisong/internal/web"
)

const uniqueViolation = "23505"

var errNotFound = errors.New("rating not found")

const entryColumns = `user_id, song_id, amq_song_id, score, is_favorite, note, created_at, updated_at`

func scanRating(row pgx.Row) (Rating, error) {
	var rt Rating
	err := row.Scan(&rt.UserID, &rt.SongID, &rt.AMQSongID, &rt.Score, &rt.IsFavorite, &rt.Note, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return Rating{}, err
	}
	rt.ID = RatingID(rt.UserID, rt.SongID)
	return rt, nil
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	id, _ := web.IdentityFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r, id.UserID)
	case http.MethodPost:
		s.handleCreate(w, r, id.UserID)
	default:
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

// handleLibrarySub routes /library/by-song/:songID and /library/:ratingID.
func (s *Server) handleLibrarySub(w http.ResponseWriter, r *http.Request) {
	id, _ := web.IdentityFromContext(r.Context())
	path := strings.TrimPrefix(r.URL.Path, "/library/")

	if rest, ok := strings.CutPrefix(path, "by-song/"); ok {
		if r.Method != http.MethodGet {
			web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		s.handleGetBySong(w, r, id.UserID, rest)
		return
	}

	ratingID := path
	if _, err := uuid.Parse(ratingID); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt, err := s.getByRatingID(r.Context(), id.UserID, ratingID)
		if err != nil {
			web.WriteError(w, http.StatusNotFound, "rating_not_found")
			return
		}
		web.WriteJSON(w, http.StatusOK, rt)
	case http.MethodPatch:
		s.handleUpdate(w, r, id.UserID, ratingID)
	case http.MethodDelete:
		rt, err := s.getByRatingID(r.Context(), id.UserID, ratingID)
		if err != nil {
			web.WriteError(w, http.StatusNotFound, "rating_not_found")
			return
		}
		if _, err := s.DB.Exec(r.Context(),
			`DELETE FROM library_entry WHERE user_id = $1 AND song_id = $2`,
			id.UserID, rt.SongID,
		); err != nil {
			web.WriteError(w, http.StatusInternalServerError, "delete_failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()

	skip := intQuery(q.Get("skip"), 0, 0, 1<<30)
	limit := intQuery(q.Get("limit"), 50, 1, 200)

	sql := `SELECT ` + entryColumns + ` FROM library_entry WHERE user_id = $1`
	args := []any{userID}

	if v := q.Get("min_score"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min < 0 || min > 100 {
			web.WriteError(w, http.StatusBadRequest, "invalid_min_score")
			return
		}
		args = append(args, min)
		sql += ` AND score >= $` + strconv.Itoa(len(args))
	}
	if v := q.Get("is_favorite"); v != "" {
		fav, err := strconv.ParseBool(v)
		if err != nil {
			web.WriteError(w, http.StatusBadRequest, "invalid_is_favorite")
			return
		}
		args = append(args, fav)
		sql += ` AND is_favorite = $` + strconv.Itoa(len(args))
	}

	args = append(args, limit, skip)
	sql += ` ORDER BY updated_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.DB.Query(r.Context(), sql, args...)
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	defer rows.Close()

	out := []Rating{}
	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			web.WriteError(w, http.StatusInternalServerError, "scan_failed")
			return
		}
		out = append(out, rt)
	}
	web.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBySong(w http.ResponseWriter, r *http.Request, userID, songID string) {
	if _, err := uuid.Parse(songID); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}
	rt, err := scanRating(s.DB.QueryRow(r.Context(),
		`SELECT `+entryColumns+` FROM library_entry WHERE user_id = $1 AND song_id = $2`,
		userID, songID,
	))
	if err != nil {
		web.WriteError(w, http.StatusNotFound, "rating_not_found")
		return
	}
	web.WriteJSON(w, http.StatusOK, rt)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req RatingCreate
	if err := web.ReadJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if _, err := uuid.Parse(req.SongID); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_song_id")
		return
	}
	if req.Score < 0 || req.Score > 100 {
		web.WriteError(w, http.StatusBadRequest, "score_out_of_range")
		return
	}

	rt, err := scanRating(s.DB.QueryRow(r.Context(),
		`INSERT INTO library_entry (user_id, song_id, amq_song_id, score, is_favorite, note)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+entryColumns,
		userID, req.SongID, req.AMQSongID, req.Score, req.IsFavorite, req.Note,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			web.WriteError(w, http.StatusConflict, "rating_already_exists")
			return
		}
		s.Log.Error("rating insert failed", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "insert_failed")
		return
	}
	web.WriteJSON(w, http.StatusCreated, rt)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, userID, ratingID string) {
	var req RatingUpdate
	if err := web.ReadJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		web.WriteError(w, http.StatusBadRequest, "score_out_of_range")
		return
	}

	existing, err := s.getByRatingID(r.Context(), userID, ratingID)
	if err != nil {
		web.WriteError(w, http.StatusNotFound, "rating_not_found")
		return
	}

	rt, err := scanRating(s.DB.QueryRow(r.Context(),
		`UPDATE library_entry
		    SET score       = COALESCE($3, score),
		        is_favorite = COALESCE($4, is_favorite),
		        note        = COALESCE($5, note),
		        updated_at  = now()
		  WHERE user_id = $1 AND song_id = $2
		  RETURNING `+entryColumns,
		userID, existing.SongID, req.Score, req.IsFavorite, req.Note,
	))
	if err != nil {
		web.WriteError(w, http.StatusInternalServerError, "update_failed")
		return
	}
	web.WriteJSON(w, http.StatusOK, rt)
}

// getByRatingID matches the derived id against the user's rows. The id is a
// uuid v5 of (user, song), so this stays a per-user scan rather than a keyed
// lookup.
func (s *Server) getByRatingID(ctx context.Context, userID, ratingID string) (Rating, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+entryColumns+` FROM library_entry WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return Rating{}, err
	}
	defer rows.Close()

	for rows.Next() {
		rt, err := scanRating(rows)
		if err != nil {
			return Rating{}, err
		}
		if rt.ID == ratingID {
			return rt, nil
		}
	}
	return Rating{}, errNotFound
}

func intQuery(v string, fallback, min, max int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return fallback
	}
	return n
}
