package amqsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterJSON = `{
	"masterListId": 512,
	"animeMap": {
		"1": {"songLinks": {"OP": [{"songId": 10}, {"songId": 11}], "ED": [{"songId": 12}], "INS": []}},
		"2": {"songLinks": {"OP": [{"songId": 11}], "ED": [{"songId": null}]}},
		"3": {}
	}
}`

func TestExtract(t *testing.T) {
	var ml MasterList
	require.NoError(t, json.Unmarshal([]byte(masterJSON), &ml))

	id, ids := Extract(ml)
	assert.Equal(t, "512", id)
	assert.Equal(t, []int{10, 11, 12}, ids)
}

func TestDelta(t *testing.T) {
	assert.Equal(t, []int{12, 13}, Delta([]int{10, 11}, []int{10, 11, 12, 13}))
	assert.Empty(t, Delta([]int{10, 11}, []int{10, 11}))
	assert.Equal(t, []int{10}, Delta(nil, []int{10}))
	// ids dropped upstream are not deltas
	assert.Empty(t, Delta([]int{10, 11}, []int{10}))
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	// missing file gives a zero state
	st, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "", st.MasterListID)
	assert.Empty(t, st.AMQIDs)

	etag := `"abc"`
	require.NoError(t, SaveState(path, State{
		MasterListID: "512",
		AMQIDs:       []int{12, 10, 11},
		ETag:         &etag,
	}))

	st, err = LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "512", st.MasterListID)
	assert.Equal(t, []int{10, 11, 12}, st.AMQIDs)
	require.NotNil(t, st.ETag)
	assert.Equal(t, `"abc"`, *st.ETag)
	assert.NotZero(t, st.UpdatedAt)
}

func TestFetchMasterListConditional(t *testing.T) {
	var gotETag, gotModified string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		if gotETag == `"current"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"current"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte(masterJSON))
	}))
	defer srv.Close()

	client := srv.Client()

	ml, etag, lastModified, notModified, err := FetchMasterList(context.Background(), client, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.False(t, notModified)
	require.NotNil(t, ml)
	require.NotNil(t, etag)
	assert.Equal(t, `"current"`, *etag)
	require.NotNil(t, lastModified)

	_, _, _, notModified, err = FetchMasterList(context.Background(), client, srv.URL, etag, lastModified)
	require.NoError(t, err)
	assert.True(t, notModified)
	assert.Equal(t, `"current"`, gotETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", gotModified)
}

func TestClassify(t *testing.T) {
	var c Counters
	for _, status := range []int{200, 201, 404, 409, 500, 502} {
		classify(status, &c)
	}
	assert.Equal(t, Counters{OK: 2, Skip: 2, Err: 2}, c)
}

func TestFmtETA(t *testing.T) {
	assert.Equal(t, "01:01:05", fmtETA(3665))
	assert.Equal(t, "--:--:--", fmtETA(0))
	assert.Equal(t, "--:--:--", fmtETA(-1))
}

func TestSyncerRun(t *testing.T) {
	master := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(masterJSON))
	}))
	defer master.Close()

	var imported []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		imported = append(imported, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/10"):
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/11"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer api.Close()

	statePath := filepath.Join(t.TempDir(), "state.json")
	s := &Syncer{
		API:       api.URL,
		Token:     "tok",
		MasterURL: master.URL,
		StatePath: statePath,
		TargetRPS: 100, // keep the test fast
		Client:    &http.Client{},
		Log:       log.New(os.Stderr),
	}
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []string{
		"/api/anime/import/by-amq-song/10",
		"/api/anime/import/by-amq-song/11",
		"/api/anime/import/by-amq-song/12",
	}, imported)

	st, err := LoadState(statePath)
	require.NoError(t, err)
	assert.Equal(t, "512", st.MasterListID)
	assert.Equal(t, []int{10, 11, 12}, st.AMQIDs)
	require.NotNil(t, st.ETag)
	assert.Equal(t, `"v1"`, *st.ETag)
}
