package library

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anisong/internal/auth"
	"anisong/internal/config"
)

var testJWT = config.JWT{Secret: "test-secret", Issuer: "iss", Audience: "aud", TTLMin: 20}

func testServer() *Server {
	return &Server{Cfg: config.Library{JWT: testJWT}, Log: log.New(os.Stderr)}
}

func TestRatingIDDeterministic(t *testing.T) {
	userID := "7d0a4cbb-43f4-4ed5-b1f9-0f1f1c2d3e4f"
	songID := "0b8a93d4-8347-4a85-a1b2-c3d4e5f60718"

	first := RatingID(userID, songID)
	second := RatingID(userID, songID)
	assert.Equal(t, first, second)

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	// different inputs give different ids
	assert.NotEqual(t, first, RatingID(userID, uuid.NewString()))
	assert.NotEqual(t, first, RatingID(uuid.NewString(), songID))
}

func TestLibraryRequiresAuth(t *testing.T) {
	s := testServer()
	h := s.Routes()

	for _, path := range []string{"/library", "/library/" + uuid.NewString()} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func authed(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	token, err := auth.SignJWT(uuid.NewString(), auth.RoleUser, testJWT)
	require.NoError(t, err)

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestCreateValidation(t *testing.T) {
	s := testServer()
	h := s.Routes()

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"bad json", "{", "bad_json"},
		{"missing song id", `{"score":50}`, "invalid_song_id"},
		{"score too high", `{"song_id":"` + uuid.NewString() + `","score":101}`, "score_out_of_range"},
		{"score negative", `{"song_id":"` + uuid.NewString() + `","score":-1}`, "score_out_of_range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, authed(t, http.MethodPost, "/library", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantError)
		})
	}
}

func TestSubrouteValidation(t *testing.T) {
	s := testServer()
	h := s.Routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authed(t, http.MethodGet, "/library/not-a-uuid", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authed(t, http.MethodGet, "/library/by-song/not-a-uuid", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authed(t, http.MethodPost, "/library/by-song/"+uuid.NewString(), ""))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
