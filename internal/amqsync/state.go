// Package amqsync delta-syncs the AMQ master list into the catalog service.
package amqsync

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"time"
)

// State is what survives between runs: the last master list seen, the full
// id set it contained and the HTTP caching headers for conditional fetches.
type State struct {
	MasterListID string  `json:"masterListId"`
	AMQIDs       []int   `json:"amq_ids"`
	ETag         *string `json:"etag"`
	LastModified *string `json:"last_modified"`
	UpdatedAt    int64   `json:"updated_at"`
}

// LoadState returns a zero state when the file does not exist yet.
func LoadState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{AMQIDs: []int{}}, nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, err
	}
	if st.AMQIDs == nil {
		st.AMQIDs = []int{}
	}
	return st, nil
}

func SaveState(path string, st State) error {
	sort.Ints(st.AMQIDs)
	if st.UpdatedAt == 0 {
		st.UpdatedAt = time.Now().Unix()
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
