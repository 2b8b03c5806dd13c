package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"anisong/internal/anisongdb"
	"anisong/internal/storage"
	"anisong/internal/web"
)

// Presigned uploads are restricted to audio types the player can handle.
var audioContentTypes = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"audio/webm": ".webm",
	"audio/mp4":  ".m4a",
	"audio/aac":  ".aac",
	"audio/flac": ".flac",
	"audio/wav":  ".wav",
}

func (s *Server) getSong(ctx context.Context, id string) (Song, error) {
	var song Song
	err := s.DB.QueryRow(ctx,
		`SELECT id, amq_song_id, name, audio, created_at, updated_at FROM song WHERE id = $1`, id).
		Scan(&song.ID, &song.AMQSongID, &song.Name, &song.Audio, &song.CreatedAt, &song.UpdatedAt)
	return song, err
}

// loadSongDetail fills in credits and anime links for the details panel.
func (s *Server) loadSongDetail(ctx context.Context, id string) (Song, error) {
	song, err := s.getSong(ctx, id)
	if err != nil {
		return Song{}, err
	}

	song.Credits = []SongCredit{}
	rows, err := s.DB.Query(ctx, `
		SELECT sa.role, p.id, p.primary_name, p.image_url, p.kind
		FROM song_artist sa
		JOIN people p ON p.id = sa.people_id
		WHERE sa.song_id = $1
		ORDER BY sa.role, p.primary_name`, id)
	if err != nil {
		return Song{}, err
	}
	for rows.Next() {
		var c SongCredit
		if err := rows.Scan(&c.Role, &c.People.ID, &c.People.PrimaryName, &c.People.ImageURL, &c.People.Kind); err != nil {
			rows.Close()
			return Song{}, err
		}
		song.Credits = append(song.Credits, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Song{}, err
	}

	song.AnimeLinks = []SongAnimeLink{}
	rows, err = s.DB.Query(ctx, `
		SELECT sa.id, sa.use_type, sa.sequence, sa.notes, sa.is_dub, sa.is_rebroadcast,
		       a.id, a.title_en, a.title_jp, a.title_romaji, a.season, a.year, a.type, a.cover_image_url, a.linked_ids, a.created_at, a.updated_at
		FROM song_anime sa
		JOIN anime a ON a.id = sa.anime_id
		WHERE sa.song_id = $1
		ORDER BY sa.sequence NULLS LAST, sa.use_type`, id)
	if err != nil {
		return Song{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l SongAnimeLink
		var linked []byte
		err := rows.Scan(&l.ID, &l.UseType, &l.Sequence, &l.Notes, &l.IsDub, &l.IsRebroadcast,
			&l.Anime.ID, &l.Anime.TitleEN, &l.Anime.TitleJP, &l.Anime.TitleRomaji, &l.Anime.Season,
			&l.Anime.Year, &l.Anime.Type, &l.Anime.CoverImageURL, &linked, &l.Anime.CreatedAt, &l.Anime.UpdatedAt)
		if err != nil {
			return Song{}, err
		}
		if len(linked) > 0 {
			if err := json.Unmarshal(linked, &l.Anime.LinkedIDs); err != nil {
				return Song{}, err
			}
		}
		song.AnimeLinks = append(song.AnimeLinks, l)
	}
	return song, rows.Err()
}

// songAppearances lists an anime's songs with their full details, openings
// first in airing order.
func (s *Server) songAppearances(ctx context.Context, animeID string) ([]AnimeSongAppearance, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, song_id, use_type, sequence, notes, is_dub, is_rebroadcast
		FROM song_anime
		WHERE anime_id = $1
		ORDER BY sequence NULLS LAST, use_type`, animeID)
	if err != nil {
		return nil, err
	}

	type linkRow struct {
		app    AnimeSongAppearance
		songID string
	}
	var links []linkRow
	for rows.Next() {
		var lr linkRow
		if err := rows.Scan(&lr.app.LinkID, &lr.songID, &lr.app.UseType, &lr.app.Sequence, &lr.app.Notes, &lr.app.IsDub, &lr.app.IsRebroadcast); err != nil {
			rows.Close()
			return nil, err
		}
		links = append(links, lr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := []AnimeSongAppearance{}
	for _, lr := range links {
		song, err := s.loadSongDetail(ctx, lr.songID)
		if err != nil {
			return nil, err
		}
		app := lr.app
		app.Song = song
		out = append(out, app)
	}
	return out, nil
}

// handleSongsSub routes /api/songs/by-anime/:animeID and
// /api/songs/:id[/audio|/audio-upload].
func (s *Server) handleSongsSub(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/songs/")

	if rest, ok := strings.CutPrefix(path, "by-anime/"); ok {
		if r.Method != http.MethodGet {
			web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		s.handleSongsByAnime(w, r, rest)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	if _, err := uuid.Parse(id); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		song, err := s.loadSongDetail(r.Context(), id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				web.WriteError(w, http.StatusNotFound, "song_not_found")
				return
			}
			s.Log.Error("song detail", "id", id, "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		web.WriteJSON(w, http.StatusOK, song)
	case "audio":
		if r.Method != http.MethodGet {
			web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		s.handleSongAudio(w, r, id)
	case "audio-upload":
		if r.Method != http.MethodPost {
			web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}
		s.handleAudioUpload(w, r, id)
	default:
		web.WriteError(w, http.StatusNotFound, "not_found")
	}
}

// importErrorCode maps an on-demand import failure to its response code.
func importErrorCode(err error) string {
	if errors.Is(err, anisongdb.ErrNotConfigured) {
		return "anisongdb_not_configured"
	}
	return "anisongdb_import_failed"
}

// songsForAnime returns the flat song list for an anime, newest first.
func (s *Server) songsForAnime(ctx context.Context, animeID string) ([]Song, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT DISTINCT s.id, s.created_at
		FROM song s
		JOIN song_anime sa ON sa.song_id = s.id
		WHERE sa.anime_id = $1
		ORDER BY s.created_at DESC`, animeID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := []Song{}
	for _, id := range ids {
		song, err := s.loadSongDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, song)
	}
	return out, nil
}

func (s *Server) handleSongsByAnime(w http.ResponseWriter, r *http.Request, animeID string) {
	if _, err := uuid.Parse(animeID); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}
	anime, err := s.getAnime(r.Context(), animeID)
	if err != nil {
		web.WriteError(w, http.StatusNotFound, "anime_not_found")
		return
	}

	songs, err := s.songsForAnime(r.Context(), animeID)
	if err != nil {
		s.Log.Error("songs by anime", "anime_id", animeID, "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	importMissing := r.URL.Query().Get("import_if_missing") != "false"
	if len(songs) == 0 && importMissing {
		if _, err := s.ImportSongsForAnime(r.Context(), anime); err != nil {
			s.Log.Error("on-demand import failed", "anime_id", animeID, "err", err)
			web.WriteError(w, http.StatusBadGateway, importErrorCode(err))
			return
		}
		if songs, err = s.songsForAnime(r.Context(), animeID); err != nil {
			s.Log.Error("songs by anime", "anime_id", animeID, "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
	}
	web.WriteJSON(w, http.StatusOK, songs)
}

func (s *Server) handleSongAudio(w http.ResponseWriter, r *http.Request, id string) {
	song, err := s.getSong(r.Context(), id)
	if err != nil {
		web.WriteError(w, http.StatusNotFound, "song_not_found")
		return
	}
	if song.Audio == "" {
		web.WriteError(w, http.StatusNotFound, "no_audio")
		return
	}
	// External catbox/AniSongDB URLs are not proxied.
	if strings.HasPrefix(song.Audio, "http://") || strings.HasPrefix(song.Audio, "https://") {
		http.Redirect(w, r, song.Audio, http.StatusTemporaryRedirect)
		return
	}
	if s.Storage == nil {
		web.WriteError(w, http.StatusServiceUnavailable, "storage_not_configured")
		return
	}

	body, ctype, err := s.Storage.GetObjectStream(r.Context(), song.Audio)
	if err != nil {
		s.Log.Error("audio stream", "id", id, "key", song.Audio, "err", err)
		web.WriteError(w, http.StatusNotFound, "audio_not_found")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = io.Copy(w, body)
}

type audioUploadRequest struct {
	ContentType string `json:"content_type"`
}

type audioUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

func (s *Server) handleAudioUpload(w http.ResponseWriter, r *http.Request, id string) {
	if s.Storage == nil {
		web.WriteError(w, http.StatusServiceUnavailable, "storage_not_configured")
		return
	}
	if _, err := s.getSong(r.Context(), id); err != nil {
		web.WriteError(w, http.StatusNotFound, "song_not_found")
		return
	}

	var req audioUploadRequest
	if err := web.ReadJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	ctype := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := audioContentTypes[ctype]
	if !ok {
		web.WriteError(w, http.StatusBadRequest, "unsupported_content_type")
		return
	}

	key := storage.AudioKey(s.Cfg.AudioKeyPrefix, id, ext)
	ttl := storage.SignedURLTTL()
	url, err := s.Storage.SignedPutURL(r.Context(), key, ctype, ttl)
	if err != nil {
		s.Log.Error("presign upload", "id", id, "err", err)
		web.WriteError(w, http.StatusInternalServerError, "presign_failed")
		return
	}

	// Point the song at the new object now; the upload follows immediately.
	if _, err := s.DB.Exec(r.Context(), `UPDATE song SET audio = $2, updated_at = now() WHERE id = $1`, id, key); err != nil {
		s.Log.Error("store audio key", "id", id, "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	web.WriteJSON(w, http.StatusOK, audioUploadResponse{
		Key:       key,
		UploadURL: url,
		ExpiresIn: int(ttl.Seconds()),
	})
}
