package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"anisong/internal/anisongdb"
)

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

var (
	errSongUnknown   = errors.New("amq song id unknown to anisongdb")
	errPersonUnknown = errors.New("artist id unknown to anisongdb")
)

// pickAudio prefers the full recording over the HQ/MQ video rips.
func pickAudio(e anisongdb.SongEntry) string {
	for _, u := range []string{e.Audio, e.HQ, e.MQ} {
		if strings.TrimSpace(u) != "" {
			return u
		}
	}
	return ""
}

// linkedInt reads a numeric id out of a linked_ids map, whatever JSON type
// it arrived as.
func linkedInt(m map[string]any, key string) *int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case int:
		return &t
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return &n
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			i := int(n)
			return &i
		}
	}
	return nil
}

// getOrCreateSong resolves a song by amq id when present, else by exact
// name. A non-empty audio value is never overwritten.
func (s *Server) getOrCreateSong(ctx context.Context, e anisongdb.SongEntry) (string, error) {
	name := strings.TrimSpace(e.SongName)
	if name == "" {
		return "", fmt.Errorf("song entry has no name")
	}
	audio := pickAudio(e)

	var id, existingAudio string
	var err error
	if e.AMQSongID != nil {
		err = s.DB.QueryRow(ctx, `SELECT id, audio FROM song WHERE amq_song_id = $1`, *e.AMQSongID).Scan(&id, &existingAudio)
	} else {
		err = s.DB.QueryRow(ctx, `SELECT id, audio FROM song WHERE name = $1 AND amq_song_id IS NULL`, name).Scan(&id, &existingAudio)
	}

	switch {
	case err == nil:
		if existingAudio == "" && audio != "" {
			if _, err := s.DB.Exec(ctx, `UPDATE song SET audio = $2, updated_at = now() WHERE id = $1`, id, audio); err != nil {
				return "", err
			}
		}
		return id, nil
	case isNoRows(err):
		err = s.DB.QueryRow(ctx,
			`INSERT INTO song (name, audio, amq_song_id) VALUES ($1, $2, $3) RETURNING id`,
			name, audio, e.AMQSongID).Scan(&id)
		return id, err
	default:
		return "", err
	}
}

// getOrCreatePerson resolves by anisongdb id first, exact primary name
// second. Artists with members are groups.
func (s *Server) getOrCreatePerson(ctx context.Context, a anisongdb.Artist) (string, error) {
	if len(a.Names) == 0 || strings.TrimSpace(a.Names[0]) == "" {
		return "", fmt.Errorf("artist %d has no names", a.ID)
	}
	primary := strings.TrimSpace(a.Names[0])
	kind := "person"
	if len(a.Members) > 0 {
		kind = "group"
	}

	var id string
	if a.ID > 0 {
		err := s.DB.QueryRow(ctx, `SELECT id FROM people WHERE anisongdb_id = $1`, a.ID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !isNoRows(err) {
			return "", err
		}
	}

	err := s.DB.QueryRow(ctx, `SELECT id FROM people WHERE primary_name = $1`, primary).Scan(&id)
	if err == nil {
		// Learn the anisongdb id for a row created from a name fallback.
		if a.ID > 0 {
			_, _ = s.DB.Exec(ctx, `UPDATE people SET anisongdb_id = $2, updated_at = now() WHERE id = $1 AND anisongdb_id IS NULL`, id, a.ID)
		}
		return id, nil
	}
	if !isNoRows(err) {
		return "", err
	}

	altNames := normalizeAltNames(a.Names[1:])
	var anisongdbID *int
	if a.ID > 0 {
		anisongdbID = &a.ID
	}
	err = s.DB.QueryRow(ctx,
		`INSERT INTO people (kind, primary_name, alt_names, anisongdb_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		kind, primary, altNames, anisongdbID).Scan(&id)
	return id, err
}

func (s *Server) ensureCredit(ctx context.Context, songID, peopleID, role string) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO song_artist (song_id, people_id, role) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		songID, peopleID, role)
	return err
}

// linkSongAnime upserts a song usage. On a uq_song_anime_usage conflict the
// dub/rebroadcast flags accumulate truth and the first non-null notes win.
func (s *Server) linkSongAnime(ctx context.Context, songID, animeID, useType string, sequence *int, notes *string, isDub, isRebroadcast bool) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO song_anime (song_id, anime_id, use_type, sequence, notes, is_dub, is_rebroadcast)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT uq_song_anime_usage DO UPDATE SET
			is_dub         = song_anime.is_dub OR EXCLUDED.is_dub,
			is_rebroadcast = song_anime.is_rebroadcast OR EXCLUDED.is_rebroadcast,
			notes          = COALESCE(song_anime.notes, EXCLUDED.notes)`,
		songID, animeID, useType, sequence, notes, isDub, isRebroadcast)
	return err
}

// importCredits attaches people for one role, preferring the structured
// artist array over the combined fallback string.
func (s *Server) importCredits(ctx context.Context, songID, role string, artists []anisongdb.Artist, fallback string) error {
	if len(artists) == 0 {
		for _, name := range ExplodeNames(fallback) {
			artists = append(artists, anisongdb.Artist{Names: []string{name}})
		}
	}
	for _, a := range artists {
		peopleID, err := s.getOrCreatePerson(ctx, a)
		if err != nil {
			return err
		}
		if err := s.ensureCredit(ctx, songID, peopleID, role); err != nil {
			return err
		}
	}
	return nil
}

// importNotes records where a link came from, keeping the raw type string
// the use type was parsed out of.
func importNotes(rawType string) string {
	if strings.TrimSpace(rawType) == "" {
		return "imported from AniSongDB"
	}
	return "imported from AniSongDB: " + rawType
}

// importEntryForAnime writes one AniSongDB row into the catalog. Rows with
// an unrecognized song type are skipped.
func (s *Server) importEntryForAnime(ctx context.Context, e anisongdb.SongEntry, animeID string) (bool, error) {
	useType, sequence := ParseUseType(e.SongType)
	if useType == "" {
		return false, nil
	}

	songID, err := s.getOrCreateSong(ctx, e)
	if err != nil {
		return false, err
	}

	if err := s.importCredits(ctx, songID, RoleArtist, e.Artists, e.SongArtist); err != nil {
		return false, err
	}
	if err := s.importCredits(ctx, songID, RoleComposer, e.Composers, e.SongComposer); err != nil {
		return false, err
	}
	if err := s.importCredits(ctx, songID, RoleArranger, e.Arrangers, e.SongArranger); err != nil {
		return false, err
	}

	notes := importNotes(e.SongType)
	if err := s.linkSongAnime(ctx, songID, animeID, useType, sequence, &notes, e.IsDub, e.IsRebroadcast); err != nil {
		return false, err
	}
	return true, nil
}

// rowMatchesAnime guards against title-search pulling in a different show.
// Prefer a shared MAL or AniList id; without one, any case-insensitive
// title or alt-name intersection counts.
func rowMatchesAnime(e anisongdb.SongEntry, anime Anime) bool {
	if mal := linkedInt(e.LinkedIDs, "myanimelist"); mal != nil {
		if ours := linkedInt(anime.LinkedIDs, "myanimelist"); ours != nil {
			return *mal == *ours
		}
	}
	if al := linkedInt(e.LinkedIDs, "anilist"); al != nil {
		if ours := linkedInt(anime.LinkedIDs, "anilist"); ours != nil {
			return *al == *ours
		}
	}

	theirs := map[string]bool{}
	add := func(names ...string) {
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" {
				theirs[n] = true
			}
		}
	}
	add(e.AnimeENName, e.AnimeJPName)
	add(e.AnimeAltName...)

	var ours []string
	for _, t := range []*string{anime.TitleEN, anime.TitleJP, anime.TitleRomaji} {
		if t != nil {
			ours = append(ours, *t)
		}
	}
	if syns, ok := anime.LinkedIDs["synonyms"].([]any); ok {
		for _, v := range syns {
			if sv, ok := v.(string); ok {
				ours = append(ours, sv)
			}
		}
	}
	for _, t := range ours {
		if theirs[strings.ToLower(strings.TrimSpace(t))] {
			return true
		}
	}
	return false
}

// dedupeKey collapses duplicate inbound rows for the same usage.
func dedupeKey(e anisongdb.SongEntry) string {
	ann := -1
	if e.AnnSongID != nil {
		ann = *e.AnnSongID
	}
	return strings.ToLower(strings.TrimSpace(e.SongName)) + "|" + strings.ToLower(strings.TrimSpace(e.SongType)) + "|" + strconv.Itoa(ann)
}

// ImportSongsForAnime pulls every AniSongDB row for the anime and imports
// the ones that pass the identity guard. Returns how many rows landed.
func (s *Server) ImportSongsForAnime(ctx context.Context, anime Anime) (int, error) {
	var entries []anisongdb.SongEntry
	var err error

	if mal := linkedInt(anime.LinkedIDs, "myanimelist"); mal != nil {
		entries, err = s.AniSongDB.FetchByMALIDs(ctx, []int{*mal})
	} else {
		title := ""
		for _, t := range []*string{anime.TitleRomaji, anime.TitleEN, anime.TitleJP} {
			if t != nil && strings.TrimSpace(*t) != "" {
				title = *t
				break
			}
		}
		if title == "" {
			return 0, fmt.Errorf("anime %s has no linked MAL id and no title to search", anime.ID)
		}
		entries, err = s.AniSongDB.SearchByTitle(ctx, title)
	}
	if err != nil {
		return 0, err
	}

	imported := 0
	seen := map[string]bool{}
	for _, e := range entries {
		key := dedupeKey(e)
		if seen[key] {
			continue
		}
		seen[key] = true
		if !rowMatchesAnime(e, anime) {
			continue
		}
		ok, err := s.importEntryForAnime(ctx, e, anime.ID)
		if err != nil {
			return imported, err
		}
		if ok {
			imported++
		}
	}
	return imported, nil
}

// getOrCreateAnimeFromEntry resolves the anime an AniSongDB row belongs to,
// creating a skeleton row from the entry when the catalog has never seen it.
func (s *Server) getOrCreateAnimeFromEntry(ctx context.Context, e anisongdb.SongEntry) (Anime, error) {
	if mal := linkedInt(e.LinkedIDs, "myanimelist"); mal != nil {
		if a, err := s.findAnimeByMALID(ctx, *mal); err != nil {
			return Anime{}, err
		} else if a != nil {
			return *a, nil
		}
	}
	if al := linkedInt(e.LinkedIDs, "anilist"); al != nil {
		if a, err := s.findAnimeByAniListID(ctx, *al); err != nil {
			return Anime{}, err
		} else if a != nil {
			return *a, nil
		}
	}

	var titleEN, titleJP *string
	if t := strings.TrimSpace(e.AnimeENName); t != "" {
		titleEN = &t
	}
	if t := strings.TrimSpace(e.AnimeJPName); t != "" {
		titleJP = &t
	}
	if titleEN == nil && titleJP == nil {
		return Anime{}, fmt.Errorf("song entry names no anime")
	}
	season, year := parseVintage(e.AnimeVintage)

	linked := map[string]any{}
	if mal := linkedInt(e.LinkedIDs, "myanimelist"); mal != nil {
		linked["myanimelist"] = *mal
	}
	if al := linkedInt(e.LinkedIDs, "anilist"); al != nil {
		linked["anilist"] = *al
	}
	if len(e.AnimeAltName) > 0 {
		linked["synonyms"] = e.AnimeAltName
	}
	linkedJSON, err := json.Marshal(linked)
	if err != nil {
		return Anime{}, err
	}

	row := s.DB.QueryRow(ctx, `
		INSERT INTO anime (title_en, title_jp, season, year, linked_ids)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING `+animeColumns,
		titleEN, titleJP, season, year, linkedJSON)
	return scanAnime(row)
}

// ImportSongAndAnimeByAMQSongID imports one AMQ song together with every
// anime it appears in, returning the distinct anime touched.
func (s *Server) ImportSongAndAnimeByAMQSongID(ctx context.Context, amqSongID int) ([]Anime, error) {
	entries, err := s.AniSongDB.FetchByAMQSongIDs(ctx, []int{amqSongID})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errSongUnknown
	}

	touched := []Anime{}
	seenAnime := map[string]bool{}
	seenRows := map[string]bool{}
	for _, e := range entries {
		key := dedupeKey(e)
		if seenRows[key] {
			continue
		}
		seenRows[key] = true

		anime, err := s.getOrCreateAnimeFromEntry(ctx, e)
		if err != nil {
			return nil, err
		}
		if _, err := s.importEntryForAnime(ctx, e, anime.ID); err != nil {
			return nil, err
		}
		if !seenAnime[anime.ID] {
			seenAnime[anime.ID] = true
			touched = append(touched, anime)
		}
	}
	return touched, nil
}

// UpsertPersonDeep imports an AniSongDB artist with group line-up and,
// optionally, their whole discography.
func (s *Server) UpsertPersonDeep(ctx context.Context, anisongdbID int, importSongs bool) (PeopleDetail, error) {
	entries, err := s.AniSongDB.FetchByArtistIDs(ctx, []int{anisongdbID})
	if err != nil {
		return PeopleDetail{}, err
	}
	if len(entries) == 0 {
		return PeopleDetail{}, errPersonUnknown
	}

	artist := findArtist(entries, anisongdbID)
	if artist == nil {
		return PeopleDetail{}, errPersonUnknown
	}

	personID, err := s.getOrCreatePerson(ctx, *artist)
	if err != nil {
		return PeopleDetail{}, err
	}
	for _, m := range artist.Members {
		memberID, err := s.getOrCreatePerson(ctx, m)
		if err != nil {
			return PeopleDetail{}, err
		}
		if _, err := s.DB.Exec(ctx,
			`INSERT INTO people_membership (group_id, member_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			personID, memberID); err != nil {
			return PeopleDetail{}, err
		}
	}

	if importSongs {
		seenRows := map[string]bool{}
		for _, e := range entries {
			key := dedupeKey(e)
			if seenRows[key] {
				continue
			}
			seenRows[key] = true

			anime, err := s.getOrCreateAnimeFromEntry(ctx, e)
			if err != nil {
				return PeopleDetail{}, err
			}
			if _, err := s.importEntryForAnime(ctx, e, anime.ID); err != nil {
				return PeopleDetail{}, err
			}
		}
	}

	return s.loadPeopleDetail(ctx, personID)
}

// findArtist digs the artist record out of the credit arrays of the
// returned rows; groups show up with their members attached.
func findArtist(entries []anisongdb.SongEntry, id int) *anisongdb.Artist {
	var found *anisongdb.Artist
	for i := range entries {
		for _, arr := range [][]anisongdb.Artist{entries[i].Artists, entries[i].Composers, entries[i].Arrangers} {
			for j := range arr {
				a := &arr[j]
				if a.ID == id {
					// Prefer an occurrence that carries the member list.
					if len(a.Members) > 0 {
						return a
					}
					if found == nil {
						found = a
					}
				}
				for k := range a.Members {
					if a.Members[k].ID == id && found == nil {
						found = &a.Members[k]
					}
				}
			}
		}
	}
	return found
}
