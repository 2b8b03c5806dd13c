package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"anisong/internal/anilist"
	"anisong/internal/anisongdb"
	"anisong/internal/web"
)

const animeColumns = `id, title_en, title_jp, title_romaji, season, year, type, cover_image_url, linked_ids, created_at, updated_at`

func scanAnime(row pgx.Row) (Anime, error) {
	var a Anime
	var linked []byte
	err := row.Scan(&a.ID, &a.TitleEN, &a.TitleJP, &a.TitleRomaji, &a.Season, &a.Year, &a.Type, &a.CoverImageURL, &linked, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Anime{}, err
	}
	if len(linked) > 0 {
		if err := json.Unmarshal(linked, &a.LinkedIDs); err != nil {
			return Anime{}, fmt.Errorf("decode linked_ids: %w", err)
		}
	}
	return a, nil
}

func (s *Server) getAnime(ctx context.Context, id string) (Anime, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+animeColumns+` FROM anime WHERE id = $1`, id)
	return scanAnime(row)
}

func (s *Server) handleAnime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	s.handleListAnime(w, r)
}

func (s *Server) handleListAnime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if search := strings.TrimSpace(q.Get("q")); search != "" {
		p := arg("%" + search + "%")
		where = append(where, fmt.Sprintf("(title_en ILIKE %s OR title_jp ILIKE %s OR title_romaji ILIKE %s)", p, p, p))
	}
	if season := strings.TrimSpace(q.Get("season")); season != "" {
		where = append(where, "season = "+arg(season))
	}
	if ys := strings.TrimSpace(q.Get("year")); ys != "" {
		year, err := strconv.Atoi(ys)
		if err != nil {
			web.WriteError(w, http.StatusBadRequest, "invalid_year")
			return
		}
		where = append(where, "year = "+arg(year))
	}
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		where = append(where, "type = "+arg(typ))
	}

	skip := intQuery(q.Get("skip"), 0, 0, 1<<30)
	limit := intQuery(q.Get("limit"), 25, 1, 100)

	sql := `SELECT ` + animeColumns + ` FROM anime`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at DESC OFFSET " + arg(skip) + " LIMIT " + arg(limit)

	rows, err := s.DB.Query(r.Context(), sql, args...)
	if err != nil {
		s.Log.Error("list anime", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	defer rows.Close()

	out := []Anime{}
	for rows.Next() {
		a, err := scanAnime(rows)
		if err != nil {
			s.Log.Error("scan anime", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		out = append(out, a)
	}
	web.WriteJSON(w, http.StatusOK, out)
}

// handleAnimeSub routes /api/anime/import/... and /api/anime/:id[/songs].
func (s *Server) handleAnimeSub(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/anime/")

	if rest, ok := strings.CutPrefix(path, "import/anilist/"); ok {
		s.handleImportAniList(w, r, rest)
		return
	}
	if rest, ok := strings.CutPrefix(path, "import/by-amq-song/"); ok {
		s.handleImportByAMQSong(w, r, rest)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	if _, err := uuid.Parse(id); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}

	switch rest {
	case "":
		s.handleAnimeByID(w, r, id)
	case "songs":
		if r.Method != http.MethodGet {
			web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		s.handleAnimeSongs(w, r, id)
	default:
		web.WriteError(w, http.StatusNotFound, "not_found")
	}
}

func (s *Server) handleAnimeByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		a, err := s.getAnime(r.Context(), id)
		if err != nil {
			web.WriteError(w, http.StatusNotFound, "anime_not_found")
			return
		}
		web.WriteJSON(w, http.StatusOK, a)

	case http.MethodPatch:
		var upd AnimeUpdate
		if err := web.ReadJSON(r, &upd); err != nil {
			web.WriteError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		a, err := s.applyAnimeUpdate(r.Context(), id, upd)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				web.WriteError(w, http.StatusNotFound, "anime_not_found")
				return
			}
			s.Log.Error("update anime", "id", id, "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		web.WriteJSON(w, http.StatusOK, a)

	case http.MethodDelete:
		tag, err := s.DB.Exec(r.Context(), `DELETE FROM anime WHERE id = $1`, id)
		if err != nil {
			s.Log.Error("delete anime", "id", id, "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if tag.RowsAffected() == 0 {
			web.WriteError(w, http.StatusNotFound, "anime_not_found")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

// applyAnimeUpdate patches scalar columns with COALESCE and merges
// linked_ids keys instead of replacing the object.
func (s *Server) applyAnimeUpdate(ctx context.Context, id string, upd AnimeUpdate) (Anime, error) {
	var linkedPatch []byte
	if upd.LinkedIDs != nil {
		b, err := json.Marshal(upd.LinkedIDs)
		if err != nil {
			return Anime{}, err
		}
		linkedPatch = b
	}

	row := s.DB.QueryRow(ctx, `
		UPDATE anime SET
			title_en        = COALESCE($2, title_en),
			title_jp        = COALESCE($3, title_jp),
			title_romaji    = COALESCE($4, title_romaji),
			season          = COALESCE($5, season),
			year            = COALESCE($6, year),
			type            = COALESCE($7, type),
			cover_image_url = COALESCE($8, cover_image_url),
			linked_ids      = linked_ids || COALESCE($9::jsonb, '{}'::jsonb),
			updated_at      = now()
		WHERE id = $1
		RETURNING `+animeColumns,
		id, upd.TitleEN, upd.TitleJP, upd.TitleRomaji, upd.Season, upd.Year, upd.Type, upd.CoverImageURL, linkedPatch)
	return scanAnime(row)
}

func (s *Server) handleAnimeSongs(w http.ResponseWriter, r *http.Request, animeID string) {
	if _, err := s.getAnime(r.Context(), animeID); err != nil {
		web.WriteError(w, http.StatusNotFound, "anime_not_found")
		return
	}
	apps, err := s.songAppearances(r.Context(), animeID)
	if err != nil {
		s.Log.Error("anime songs", "anime_id", animeID, "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	web.WriteJSON(w, http.StatusOK, apps)
}

func (s *Server) handleImportAniList(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	anilistID, err := strconv.Atoi(rawID)
	if err != nil || anilistID <= 0 {
		web.WriteError(w, http.StatusBadRequest, "invalid_anilist_id")
		return
	}

	media, err := s.AniList.FetchAnimeByID(r.Context(), anilistID)
	if err != nil {
		s.Log.Error("anilist fetch", "anilist_id", anilistID, "err", err)
		web.WriteError(w, http.StatusBadGateway, "anilist_fetch_failed")
		return
	}
	if media == nil {
		web.WriteError(w, http.StatusNotFound, "anilist_media_not_found")
		return
	}

	a, err := s.upsertAnimeFromAniList(r.Context(), media)
	if err != nil {
		s.Log.Error("anilist upsert", "anilist_id", anilistID, "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	web.WriteJSON(w, http.StatusCreated, a)
}

// upsertAnimeFromAniList is idempotent over the AniList id: re-imports
// refresh the row found via linked_ids.anilist instead of creating a twin.
func (s *Server) upsertAnimeFromAniList(ctx context.Context, media *anilist.Media) (Anime, error) {
	fields := mapAniListMedia(media)
	linked, err := json.Marshal(fields.LinkedIDs)
	if err != nil {
		return Anime{}, err
	}

	existing, err := s.findAnimeByAniListID(ctx, media.ID)
	if err != nil {
		return Anime{}, err
	}

	if existing != nil {
		row := s.DB.QueryRow(ctx, `
			UPDATE anime SET
				title_en        = COALESCE($2, title_en),
				title_jp        = COALESCE($3, title_jp),
				title_romaji    = COALESCE($4, title_romaji),
				season          = COALESCE($5, season),
				year            = COALESCE($6, year),
				type            = COALESCE($7, type),
				cover_image_url = COALESCE($8, cover_image_url),
				linked_ids      = linked_ids || $9::jsonb,
				updated_at      = now()
			WHERE id = $1
			RETURNING `+animeColumns,
			existing.ID, fields.TitleEN, fields.TitleJP, fields.TitleRomaji, fields.Season, fields.Year, fields.Type, fields.CoverImageURL, linked)
		return scanAnime(row)
	}

	row := s.DB.QueryRow(ctx, `
		INSERT INTO anime (title_en, title_jp, title_romaji, season, year, type, cover_image_url, linked_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING `+animeColumns,
		fields.TitleEN, fields.TitleJP, fields.TitleRomaji, fields.Season, fields.Year, fields.Type, fields.CoverImageURL, linked)
	return scanAnime(row)
}

// findAnimeByAniListID tolerates the id being stored as a JSON number or a
// string; ->> renders both as text.
func (s *Server) findAnimeByAniListID(ctx context.Context, anilistID int) (*Anime, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT `+animeColumns+` FROM anime WHERE linked_ids->>'anilist' = $1 LIMIT 1`,
		strconv.Itoa(anilistID))
	a, err := scanAnime(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Server) findAnimeByMALID(ctx context.Context, malID int) (*Anime, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT `+animeColumns+` FROM anime WHERE linked_ids->>'myanimelist' = $1 LIMIT 1`,
		strconv.Itoa(malID))
	a, err := scanAnime(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Server) handleImportByAMQSong(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	amqSongID, err := strconv.Atoi(rawID)
	if err != nil || amqSongID <= 0 {
		web.WriteError(w, http.StatusBadRequest, "invalid_amq_song_id")
		return
	}

	touched, err := s.ImportSongAndAnimeByAMQSongID(r.Context(), amqSongID)
	if err != nil {
		if errors.Is(err, anisongdb.ErrNotConfigured) {
			web.WriteError(w, http.StatusBadGateway, "anisongdb_not_configured")
			return
		}
		if errors.Is(err, errSongUnknown) {
			web.WriteError(w, http.StatusNotFound, "amq_song_not_found")
			return
		}
		s.Log.Error("amq song import", "amq_song_id", amqSongID, "err", err)
		web.WriteError(w, http.StatusBadGateway, "anisongdb_import_failed")
		return
	}
	web.WriteJSON(w, http.StatusOK, touched)
}

func intQuery(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	if n > max {
		return max
	}
	return n
}
