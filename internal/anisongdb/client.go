// Package anisongdb is a client for the AniSongDB search API.
package anisongdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when no base URL was configured; callers turn
// it into a 502 with a distinct error code.
var ErrNotConfigured = errors.New("anisongdb base url not configured (set ANISONGDB_BASE_URL)")

// Artist is an AniSongDB artist reference. Groups carry their line-up in
// Members.
type Artist struct {
	ID      int      `json:"id"`
	Names   []string `json:"names"`
	Members []Artist `json:"members,omitempty"`
}

// SongEntry is one row of an AniSongDB response. Field coverage follows what
// the importer consumes; unknown fields are ignored.
type SongEntry struct {
	AnnSongID *int `json:"annSongId"`
	AMQSongID *int `json:"amqSongId"`

	SongName string `json:"songName"`
	SongType string `json:"songType"` // "Opening 2", "ED", "Insert Song", ...
	Audio    string `json:"audio"`
	HQ       string `json:"HQ"`
	MQ       string `json:"MQ"`

	IsDub         bool `json:"isDub"`
	IsRebroadcast bool `json:"isRebroadcast"`

	Artists   []Artist `json:"artists"`
	Composers []Artist `json:"composers"`
	Arrangers []Artist `json:"arrangers"`

	// single-string fallbacks for older responses
	SongArtist   string `json:"songArtist"`
	SongComposer string `json:"songComposer"`
	SongArranger string `json:"songArranger"`

	AnimeENName  string   `json:"animeENName"`
	AnimeJPName  string   `json:"animeJPName"`
	AnimeAltName []string `json:"animeAltName"`
	AnimeVintage string   `json:"animeVintage"` // "Spring 2012"

	LinkedIDs map[string]any `json:"linked_ids"` // myanimelist / anilist ids
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client, or one that fails with ErrNotConfigured when baseURL
// is empty.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *Client) Configured() bool { return c.baseURL != "" }

func (c *Client) post(ctx context.Context, endpoint string, body any) ([]SongEntry, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anisongdb request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("anisongdb returned status %d", resp.StatusCode)
	}

	var entries []SongEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("anisongdb decode failed: %w", err)
	}
	return entries, nil
}

// FetchByMALIDs returns every song entry for the given MyAnimeList ids.
func (c *Client) FetchByMALIDs(ctx context.Context, malIDs []int) ([]SongEntry, error) {
	return c.post(ctx, "/mal_ids_request", map[string]any{"mal_ids": malIDs})
}

// SearchByTitle runs an anime title search. Results may include other shows
// with similar titles; callers must verify identity.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]SongEntry, error) {
	return c.post(ctx, "/search_request", map[string]any{
		"anime_search_filter": map[string]any{"search": title},
	})
}

// FetchByAMQSongIDs resolves AMQ song ids to song entries.
func (c *Client) FetchByAMQSongIDs(ctx context.Context, amqSongIDs []int) ([]SongEntry, error) {
	return c.post(ctx, "/amq_ids_request", map[string]any{"amq_song_ids": amqSongIDs})
}

// FetchByArtistIDs returns every song entry credited to the given AniSongDB
// artists.
func (c *Client) FetchByArtistIDs(ctx context.Context, artistIDs []int) ([]SongEntry, error) {
	return c.post(ctx, "/artist_ids_request", map[string]any{"artist_ids": artistIDs})
}
