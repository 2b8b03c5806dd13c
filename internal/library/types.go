package library

import (
	"time"

	"github.com/google/uuid"
)

type RatingCreate struct {
	SongID     string  `json:"song_id"`
	AMQSongID  *int    `json:"amq_song_id"`
	Score      int     `json:"score"`
	IsFavorite bool    `json:"is_favorite"`
	Note       *string `json:"note"`
}

type RatingUpdate struct {
	Score      *int    `json:"score"`
	IsFavorite *bool   `json:"is_favorite"`
	Note       *string `json:"note"`
}

type Rating struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SongID     string    `json:"song_id"`
	AMQSongID  *int      `json:"amq_song_id,omitempty"`
	Score      int       `json:"score"`
	IsFavorite bool      `json:"is_favorite"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RatingID derives a stable id from (user, song) so routes can address a
// rating without a surrogate key. uuid v5 over the URL namespace.
func RatingID(userID, songID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("library:"+userID+":"+songID)).String()
}
