// Package anilist is a small client for the AniList GraphQL API.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://graphql.anilist.co"

const animeQuery = `
query ($id: Int!) {
  Media(id: $id, type: ANIME) {
    id
    idMal
    title { romaji english native }
    season
    seasonYear
    format
    coverImage { extraLarge large medium }
    synonyms
  }
}`

// Media is the subset of an AniList Media object the catalog consumes.
type Media struct {
	ID    int  `json:"id"`
	IDMal *int `json:"idMal"`
	Title struct {
		Romaji  *string `json:"romaji"`
		English *string `json:"english"`
		Native  *string `json:"native"`
	} `json:"title"`
	Season     *string `json:"season"` // WINTER | SPRING | SUMMER | FALL
	SeasonYear *int    `json:"seasonYear"`
	Format     *string `json:"format"` // TV | MOVIE | OVA | ONA | SPECIAL | ...
	CoverImage struct {
		ExtraLarge *string `json:"extraLarge"`
		Large      *string `json:"large"`
		Medium     *string `json:"medium"`
	} `json:"coverImage"`
	Synonyms []string `json:"synonyms"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchAnimeByID returns the AniList media for the given id, or nil when
// AniList has no such anime.
func (c *Client) FetchAnimeByID(ctx context.Context, anilistID int) (*Media, error) {
	body, err := json.Marshal(map[string]any{
		"query":     animeQuery,
		"variables": map[string]any{"id": anilistID},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anilist request failed: %w", err)
	}
	defer resp.Body.Close()

	// AniList answers 404 for unknown ids with a null Media payload.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("anilist returned status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			Media *Media `json:"Media"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("anilist decode failed: %w", err)
	}
	return out.Data.Media, nil
}
