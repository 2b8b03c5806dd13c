package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAnimeByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "Media(id: $id, type: ANIME)")
		assert.EqualValues(t, 21, req.Variables["id"])

		_, _ = w.Write([]byte(`{"data":{"Media":{
			"id":21,"idMal":21,
			"title":{"romaji":"One Piece","english":"One Piece","native":"ワンピース"},
			"season":"FALL","seasonYear":1999,"format":"TV",
			"coverImage":{"extraLarge":"https://img/xl.png","large":"https://img/l.png"},
			"synonyms":["OP"]
		}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	media, err := c.FetchAnimeByID(context.Background(), 21)
	require.NoError(t, err)
	require.NotNil(t, media)

	assert.Equal(t, 21, media.ID)
	require.NotNil(t, media.IDMal)
	assert.Equal(t, 21, *media.IDMal)
	assert.Equal(t, "One Piece", *media.Title.English)
	assert.Equal(t, "FALL", *media.Season)
	assert.Equal(t, []string{"OP"}, media.Synonyms)
}

func TestFetchAnimeByIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"data":{"Media":null}}`))
	}))
	defer srv.Close()

	media, err := New(srv.URL).FetchAnimeByID(context.Background(), 999999999)
	require.NoError(t, err)
	assert.Nil(t, media)
}

func TestFetchAnimeByIDServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchAnimeByID(context.Background(), 21)
	assert.Error(t, err)
}
