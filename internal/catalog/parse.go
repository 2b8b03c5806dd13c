package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"anisong/internal/anilist"
)

var (
	nameSplitRE = regexp.MustCompile(`(?i)\s*(?:,|/|&| feat\. | feat | ft\. | x )\s*`)
	numberRE    = regexp.MustCompile(`(\d+)`)
)

var useTypeWords = []struct {
	re      *regexp.Regexp
	useType string
}{
	{regexp.MustCompile(`\bop\b`), UseTypeOP},
	{regexp.MustCompile(`\bopening\b`), UseTypeOP},
	{regexp.MustCompile(`\bed\b`), UseTypeED},
	{regexp.MustCompile(`\bending\b`), UseTypeED},
	{regexp.MustCompile(`\bin\b`), UseTypeIN},
	{regexp.MustCompile(`\binsert\b`), UseTypeIN},
}

// ParseUseType normalizes AniSongDB song type strings. Accepts "OP", "OP 1",
// "Opening 2", "Ending 10", "Insert Song", "Insert 3" and the like; returns
// ("", nil) for unrecognized types. The sequence is the first integer found
// anywhere in the string.
func ParseUseType(s string) (useType string, sequence *int) {
	low := strings.ToLower(strings.TrimSpace(s))
	if low == "" {
		return "", nil
	}
	low = strings.NewReplacer("_", " ", "-", " ").Replace(low)

	if m := numberRE.FindString(low); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			sequence = &n
		}
	}

	for _, w := range useTypeWords {
		if w.re.MatchString(low) {
			return w.useType, sequence
		}
	}
	return "", sequence
}

// ExplodeNames splits a combined artist string ("A, B feat. C") into
// individual names, case-insensitively de-duplicated, order preserved.
func ExplodeNames(s string) []string {
	if s == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, part := range nameSplitRE.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if !seen[key] {
			seen[key] = true
			out = append(out, part)
		}
	}
	return out
}

var seasonMap = map[string]string{
	"WINTER": "Winter",
	"SPRING": "Spring",
	"SUMMER": "Summer",
	"FALL":   "Fall",
}

// animeFields is the set of anime columns an AniList media maps onto.
type animeFields struct {
	TitleEN       *string
	TitleJP       *string
	TitleRomaji   *string
	Season        *string
	Year          *int
	Type          *string
	CoverImageURL *string
	LinkedIDs     map[string]any
}

func mapAniListMedia(media *anilist.Media) animeFields {
	linked := map[string]any{"anilist": media.ID}
	if media.IDMal != nil {
		linked["myanimelist"] = *media.IDMal
	}
	if len(media.Synonyms) > 0 {
		linked["synonyms"] = media.Synonyms
	}

	var season *string
	if media.Season != nil {
		if mapped, ok := seasonMap[*media.Season]; ok {
			season = &mapped
		}
	}

	cover := media.CoverImage.ExtraLarge
	if cover == nil {
		cover = media.CoverImage.Large
	}
	if cover == nil {
		cover = media.CoverImage.Medium
	}

	return animeFields{
		TitleEN:       media.Title.English,
		TitleJP:       media.Title.Native,
		TitleRomaji:   media.Title.Romaji,
		Season:        season,
		Year:          media.SeasonYear,
		Type:          media.Format,
		CoverImageURL: cover,
		LinkedIDs:     linked,
	}
}

// parseVintage splits an AniSongDB vintage string ("Spring 2012") into
// season and year.
func parseVintage(s string) (*string, *int) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) != 2 {
		return nil, nil
	}
	season := parts[0]
	switch season {
	case "Winter", "Spring", "Summer", "Fall":
	default:
		return nil, nil
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, nil
	}
	return &season, &year
}
