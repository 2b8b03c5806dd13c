package amqsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

const DefaultMasterURL = "https://animemusicquiz.com/libraryMasterList"

type songLink struct {
	SongID *int `json:"songId"`
}

type animeEntry struct {
	SongLinks map[string][]songLink `json:"songLinks"`
}

// MasterList is the subset of the AMQ library dump the sync consumes.
type MasterList struct {
	MasterListID json.Number           `json:"masterListId"`
	AnimeMap     map[string]animeEntry `json:"animeMap"`
}

// Extract pulls the master list id and the sorted, de-duplicated set of AMQ
// song ids out of animeMap[*].songLinks.{OP,ED,INS}.
func Extract(m MasterList) (string, []int) {
	seen := map[int]bool{}
	for _, anime := range m.AnimeMap {
		for _, kind := range []string{"OP", "ED", "INS"} {
			for _, link := range anime.SongLinks[kind] {
				if link.SongID != nil {
					seen[*link.SongID] = true
				}
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return m.MasterListID.String(), ids
}

// Delta returns the ids present in next but not in prev, sorted.
func Delta(prev, next []int) []int {
	old := make(map[int]bool, len(prev))
	for _, id := range prev {
		old[id] = true
	}
	var add []int
	for _, id := range next {
		if !old[id] {
			add = append(add, id)
		}
	}
	sort.Ints(add)
	return add
}

// FetchMasterList does a conditional GET. notModified is true on a 304; the
// returned etag and last-modified come from the response when present.
func FetchMasterList(ctx context.Context, client *http.Client, url string, etag, lastModified *string) (ml *MasterList, newETag, newLastModified *string, notModified bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, nil, false, err
	}
	if etag != nil && *etag != "" {
		req.Header.Set("If-None-Match", *etag)
	}
	if lastModified != nil && *lastModified != "" {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, nil, false, err
	}
	defer resp.Body.Close()

	headerPtr := func(name string) *string {
		if v := resp.Header.Get(name); v != "" {
			return &v
		}
		return nil
	}

	if resp.StatusCode == http.StatusNotModified {
		return nil, headerPtr("ETag"), headerPtr("Last-Modified"), true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, nil, false, fmt.Errorf("master list fetch returned status %d", resp.StatusCode)
	}

	var out MasterList
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, nil, false, fmt.Errorf("master list decode failed: %w", err)
	}
	return &out, headerPtr("ETag"), headerPtr("Last-Modified"), false, nil
}
