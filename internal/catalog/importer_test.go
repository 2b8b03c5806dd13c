package catalog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anisong/internal/anisongdb"
)

func strPtr(s string) *string { return &s }

func TestImportNotes(t *testing.T) {
	assert.Equal(t, "imported from AniSongDB: Opening 2", importNotes("Opening 2"))
	assert.Equal(t, "imported from AniSongDB: insert_song", importNotes("insert_song"))
	assert.Equal(t, "imported from AniSongDB", importNotes("  "))
}

func TestImportErrorCode(t *testing.T) {
	assert.Equal(t, "anisongdb_not_configured", importErrorCode(anisongdb.ErrNotConfigured))
	assert.Equal(t, "anisongdb_not_configured", importErrorCode(fmt.Errorf("import: %w", anisongdb.ErrNotConfigured)))
	assert.Equal(t, "anisongdb_import_failed", importErrorCode(errors.New("anisongdb returned status 500")))
}

func TestPickAudio(t *testing.T) {
	assert.Equal(t, "a.mp3", pickAudio(anisongdb.SongEntry{Audio: "a.mp3", HQ: "hq.webm"}))
	assert.Equal(t, "hq.webm", pickAudio(anisongdb.SongEntry{HQ: "hq.webm", MQ: "mq.webm"}))
	assert.Equal(t, "mq.webm", pickAudio(anisongdb.SongEntry{MQ: "mq.webm"}))
	assert.Equal(t, "", pickAudio(anisongdb.SongEntry{Audio: "  "}))
}

func TestLinkedInt(t *testing.T) {
	m := map[string]any{
		"float":  float64(123),
		"int":    456,
		"string": "789",
		"junk":   "not a number",
		"nil":    nil,
	}

	for key, want := range map[string]int{"float": 123, "int": 456, "string": 789} {
		got := linkedInt(m, key)
		require.NotNil(t, got, key)
		assert.Equal(t, want, *got, key)
	}
	assert.Nil(t, linkedInt(m, "junk"))
	assert.Nil(t, linkedInt(m, "nil"))
	assert.Nil(t, linkedInt(m, "missing"))
}

func TestRowMatchesAnime(t *testing.T) {
	tests := []struct {
		name  string
		entry anisongdb.SongEntry
		anime Anime
		want  bool
	}{
		{
			name:  "mal id match",
			entry: anisongdb.SongEntry{LinkedIDs: map[string]any{"myanimelist": float64(11757)}},
			anime: Anime{LinkedIDs: map[string]any{"myanimelist": 11757}},
			want:  true,
		},
		{
			name:  "mal id mismatch beats matching titles",
			entry: anisongdb.SongEntry{AnimeENName: "Sword Art Online", LinkedIDs: map[string]any{"myanimelist": float64(1)}},
			anime: Anime{TitleEN: strPtr("Sword Art Online"), LinkedIDs: map[string]any{"myanimelist": 11757}},
			want:  false,
		},
		{
			name:  "anilist id match",
			entry: anisongdb.SongEntry{LinkedIDs: map[string]any{"anilist": "11757"}},
			anime: Anime{LinkedIDs: map[string]any{"anilist": float64(11757)}},
			want:  true,
		},
		{
			name:  "title intersection when no shared ids",
			entry: anisongdb.SongEntry{AnimeENName: "SWORD ART ONLINE"},
			anime: Anime{TitleEN: strPtr("Sword Art Online")},
			want:  true,
		},
		{
			name:  "alt name against synonym",
			entry: anisongdb.SongEntry{AnimeENName: "Something Else", AnimeAltName: []string{"SAO"}},
			anime: Anime{TitleEN: strPtr("Sword Art Online"), LinkedIDs: map[string]any{"synonyms": []any{"sao"}}},
			want:  true,
		},
		{
			name:  "no overlap",
			entry: anisongdb.SongEntry{AnimeENName: "Attack on Titan"},
			anime: Anime{TitleEN: strPtr("Sword Art Online")},
			want:  false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rowMatchesAnime(tc.entry, tc.anime))
		})
	}
}

func TestDedupeKey(t *testing.T) {
	ann := 99
	a := anisongdb.SongEntry{SongName: "Crossing Field", SongType: "Opening 1", AnnSongID: &ann}
	b := anisongdb.SongEntry{SongName: "crossing field", SongType: "opening 1", AnnSongID: &ann}
	c := anisongdb.SongEntry{SongName: "Crossing Field", SongType: "Opening 2", AnnSongID: &ann}

	assert.Equal(t, dedupeKey(a), dedupeKey(b))
	assert.NotEqual(t, dedupeKey(a), dedupeKey(c))
	assert.NotEqual(t, dedupeKey(a), dedupeKey(anisongdb.SongEntry{SongName: "Crossing Field", SongType: "Opening 1"}))
}

func TestFindArtist(t *testing.T) {
	entries := []anisongdb.SongEntry{
		{
			Artists: []anisongdb.Artist{
				{ID: 7, Names: []string{"ClariS"}},
			},
		},
		{
			Artists: []anisongdb.Artist{
				{ID: 7, Names: []string{"ClariS"}, Members: []anisongdb.Artist{
					{ID: 70, Names: []string{"Clara"}},
					{ID: 71, Names: []string{"Karen"}},
				}},
			},
		},
	}

	// the occurrence carrying the line-up wins
	got := findArtist(entries, 7)
	require.NotNil(t, got)
	assert.Len(t, got.Members, 2)

	// members are findable too
	member := findArtist(entries, 71)
	require.NotNil(t, member)
	assert.Equal(t, []string{"Karen"}, member.Names)

	assert.Nil(t, findArtist(entries, 999))
}
