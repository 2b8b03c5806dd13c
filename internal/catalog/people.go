package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"anisong/internal/anisongdb"
	"anisong/internal/web"
)

const peopleColumns = `id, anisongdb_id, kind, primary_name, alt_names, image_url, created_at, updated_at`

func scanPeople(row pgx.Row) (People, error) {
	var p People
	err := row.Scan(&p.ID, &p.AniSongDBID, &p.Kind, &p.PrimaryName, &p.AltNames, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return People{}, err
	}
	if p.AltNames == nil {
		p.AltNames = []string{}
	}
	return p, nil
}

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	q := r.URL.Query()
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if search := strings.TrimSpace(q.Get("q")); search != "" {
		p := arg("%" + search + "%")
		where = append(where, fmt.Sprintf(
			"(primary_name ILIKE %s OR EXISTS (SELECT 1 FROM unnest(alt_names) an WHERE an ILIKE %s))", p, p))
	}
	if kind := strings.TrimSpace(q.Get("kind")); kind != "" {
		where = append(where, "kind = "+arg(kind))
	}

	skip := intQuery(q.Get("skip"), 0, 0, 1<<30)
	limit := intQuery(q.Get("limit"), 25, 1, 100)

	sql := `SELECT ` + peopleColumns + ` FROM people`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY primary_name ASC OFFSET " + arg(skip) + " LIMIT " + arg(limit)

	rows, err := s.DB.Query(r.Context(), sql, args...)
	if err != nil {
		s.Log.Error("list people", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	defer rows.Close()

	out := []People{}
	for rows.Next() {
		p, err := scanPeople(rows)
		if err != nil {
			s.Log.Error("scan people", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		out = append(out, p)
	}
	web.WriteJSON(w, http.StatusOK, out)
}

// handlePeopleSub routes /api/people/import/anisongdb/:id and /api/people/:id.
func (s *Server) handlePeopleSub(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/people/")

	if rest, ok := strings.CutPrefix(path, "import/anisongdb/"); ok {
		s.handleImportPerson(w, r, rest)
		return
	}

	if _, err := uuid.Parse(path); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_uuid")
		return
	}

	switch r.Method {
	case http.MethodGet:
		detail, err := s.loadPeopleDetail(r.Context(), path)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				web.WriteError(w, http.StatusNotFound, "people_not_found")
				return
			}
			s.Log.Error("people detail", "id", path, "err", err)
			web.WriteError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		web.WriteJSON(w, http.StatusOK, detail)
	case http.MethodPatch:
		s.handleUpdatePerson(w, r, path)
	default:
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (s *Server) loadPeopleDetail(ctx context.Context, id string) (PeopleDetail, error) {
	p, err := scanPeople(s.DB.QueryRow(ctx, `SELECT `+peopleColumns+` FROM people WHERE id = $1`, id))
	if err != nil {
		return PeopleDetail{}, err
	}
	detail := PeopleDetail{People: p, Members: []PeopleBrief{}, MemberOf: []PeopleBrief{}}

	load := func(sql string) ([]PeopleBrief, error) {
		rows, err := s.DB.Query(ctx, sql, id)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		out := []PeopleBrief{}
		for rows.Next() {
			var b PeopleBrief
			if err := rows.Scan(&b.ID, &b.PrimaryName, &b.ImageURL, &b.Kind); err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, rows.Err()
	}

	if detail.Members, err = load(`
		SELECT p.id, p.primary_name, p.image_url, p.kind
		FROM people_membership m JOIN people p ON p.id = m.member_id
		WHERE m.group_id = $1 ORDER BY p.primary_name`); err != nil {
		return PeopleDetail{}, err
	}
	if detail.MemberOf, err = load(`
		SELECT p.id, p.primary_name, p.image_url, p.kind
		FROM people_membership m JOIN people p ON p.id = m.group_id
		WHERE m.member_id = $1 ORDER BY p.primary_name`); err != nil {
		return PeopleDetail{}, err
	}
	return detail, nil
}

// normalizeAltNames trims, drops empties and de-duplicates case-insensitively.
func normalizeAltNames(names []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if !seen[key] {
			seen[key] = true
			out = append(out, n)
		}
	}
	return out
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request, id string) {
	var upd PeopleUpdate
	if err := web.ReadJSON(r, &upd); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if upd.Kind != nil && *upd.Kind != "person" && *upd.Kind != "group" {
		web.WriteError(w, http.StatusBadRequest, "invalid_kind")
		return
	}

	var altNames []string
	if upd.AltNames != nil {
		altNames = normalizeAltNames(*upd.AltNames)
	}

	p, err := scanPeople(s.DB.QueryRow(r.Context(), `
		UPDATE people SET
			primary_name = COALESCE($2, primary_name),
			alt_names    = COALESCE($3, alt_names),
			image_url    = COALESCE($4, image_url),
			kind         = COALESCE($5, kind),
			anisongdb_id = COALESCE($6, anisongdb_id),
			updated_at   = now()
		WHERE id = $1
		RETURNING `+peopleColumns,
		id, upd.PrimaryName, altNames, upd.ImageURL, upd.Kind, upd.AniSongDBID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			web.WriteError(w, http.StatusNotFound, "people_not_found")
			return
		}
		s.Log.Error("update people", "id", id, "err", err)
		web.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	web.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleImportPerson(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		web.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	anisongdbID, err := strconv.Atoi(rawID)
	if err != nil || anisongdbID <= 0 {
		web.WriteError(w, http.StatusBadRequest, "invalid_anisongdb_id")
		return
	}
	importSongs := r.URL.Query().Get("import_songs") != "false"

	detail, err := s.UpsertPersonDeep(r.Context(), anisongdbID, importSongs)
	if err != nil {
		if errors.Is(err, anisongdb.ErrNotConfigured) {
			web.WriteError(w, http.StatusBadGateway, "anisongdb_not_configured")
			return
		}
		if errors.Is(err, errPersonUnknown) {
			web.WriteError(w, http.StatusNotFound, "anisongdb_artist_not_found")
			return
		}
		s.Log.Error("person import", "anisongdb_id", anisongdbID, "err", err)
		web.WriteError(w, http.StatusBadGateway, "anisongdb_import_failed")
		return
	}
	web.WriteJSON(w, http.StatusOK, detail)
}
