package catalog

import "time"

// Song placement in an anime: opening, ending or insert song.
const (
	UseTypeOP = "OP"
	UseTypeED = "ED"
	UseTypeIN = "IN"
)

const (
	RoleArtist   = "artist"
	RoleComposer = "composer"
	RoleArranger = "arranger"
)

type Anime struct {
	ID            string         `json:"id"`
	TitleEN       *string        `json:"title_en,omitempty"`
	TitleJP       *string        `json:"title_jp,omitempty"`
	TitleRomaji   *string        `json:"title_romaji,omitempty"`
	Season        *string        `json:"season,omitempty"` // Winter | Spring | Summer | Fall
	Year          *int           `json:"year,omitempty"`
	Type          *string        `json:"type,omitempty"` // TV | MOVIE | ONA | ...
	CoverImageURL *string        `json:"cover_image_url,omitempty"`
	LinkedIDs     map[string]any `json:"linked_ids,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type AnimeUpdate struct {
	TitleEN       *string        `json:"title_en"`
	TitleJP       *string        `json:"title_jp"`
	TitleRomaji   *string        `json:"title_romaji"`
	Season        *string        `json:"season"`
	Year          *int           `json:"year"`
	Type          *string        `json:"type"`
	CoverImageURL *string        `json:"cover_image_url"`
	LinkedIDs     map[string]any `json:"linked_ids"` // merged, not clobbered
}

type PeopleBrief struct {
	ID          string  `json:"id"`
	PrimaryName string  `json:"primary_name"`
	ImageURL    *string `json:"image_url,omitempty"`
	Kind        string  `json:"kind"` // person | group
}

type People struct {
	ID          string    `json:"id"`
	AniSongDBID *int      `json:"anisongdb_id,omitempty"`
	Kind        string    `json:"kind"`
	PrimaryName string    `json:"primary_name"`
	AltNames    []string  `json:"alt_names"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PeopleDetail adds group membership in both directions.
type PeopleDetail struct {
	People
	Members  []PeopleBrief `json:"members"`
	MemberOf []PeopleBrief `json:"member_of"`
}

type PeopleUpdate struct {
	PrimaryName *string   `json:"primary_name"`
	AltNames    *[]string `json:"alt_names"`
	ImageURL    *string   `json:"image_url"`
	Kind        *string   `json:"kind"`
	AniSongDBID *int      `json:"anisongdb_id"`
}

type SongCredit struct {
	Role   string      `json:"role"`
	People PeopleBrief `json:"people"`
}

type SongAnimeLink struct {
	ID            string  `json:"id"`
	Anime         Anime   `json:"anime"`
	UseType       string  `json:"use_type"`
	IsDub         bool    `json:"is_dub"`
	IsRebroadcast bool    `json:"is_rebroadcast"`
	Sequence      *int    `json:"sequence,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

type Song struct {
	ID         string          `json:"id"`
	AMQSongID  *int            `json:"amq_song_id,omitempty"`
	Name       string          `json:"name"`
	Audio      string          `json:"audio"`
	AnimeLinks []SongAnimeLink `json:"anime_links"`
	Credits    []SongCredit    `json:"credits"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AnimeSongAppearance is one song usage seen from the anime side.
type AnimeSongAppearance struct {
	LinkID        string  `json:"link_id"`
	Song          Song    `json:"song"`
	UseType       string  `json:"use_type"`
	IsDub         bool    `json:"is_dub"`
	IsRebroadcast bool    `json:"is_rebroadcast"`
	Sequence      *int    `json:"sequence,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}
