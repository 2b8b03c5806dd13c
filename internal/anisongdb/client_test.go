package anisongdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotConfigured(t *testing.T) {
	c := New("")
	assert.False(t, c.Configured())

	_, err := c.FetchByMALIDs(context.Background(), []int{1})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetchByMALIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mal_ids_request", r.URL.Path)

		var body map[string][]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int{21}, body["mal_ids"])

		_, _ = w.Write([]byte(`[{
			"annSongId": 111,
			"songName": "We Are!",
			"songType": "Opening 1",
			"audio": "https://files/we-are.mp3",
			"artists": [{"id": 5, "names": ["Hiroshi Kitadani"]}],
			"animeENName": "One Piece",
			"animeJPName": "ワンピース",
			"animeVintage": "Fall 1999",
			"linked_ids": {"myanimelist": 21, "anilist": 21}
		}]`))
	}))
	defer srv.Close()

	entries, err := New(srv.URL).FetchByMALIDs(context.Background(), []int{21})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "We Are!", e.SongName)
	assert.Equal(t, "Opening 1", e.SongType)
	require.NotNil(t, e.AnnSongID)
	assert.Equal(t, 111, *e.AnnSongID)
	require.Len(t, e.Artists, 1)
	assert.Equal(t, []string{"Hiroshi Kitadani"}, e.Artists[0].Names)
	assert.EqualValues(t, 21, e.LinkedIDs["myanimelist"])
}

func TestSearchByTitleSendsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search_request", r.URL.Path)

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Cowboy Bebop", body["anime_search_filter"]["search"])

		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	entries, err := New(srv.URL).SearchByTitle(context.Background(), "Cowboy Bebop")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchByAMQSongIDs(context.Background(), []int{1})
	assert.ErrorContains(t, err, "status 502")
}
