// Package models holds the value types shared by the controllers: catalog
// items, taste profiles, recommendations and the error taxonomy.
package models

import "strings"

type MediaType string

const (
	MediaMovie  MediaType = "movie"
	MediaSeries MediaType = "series"
)

// ParseMediaType accepts the catalog spellings of a media type. TMDB and the
// backend report series as "tv".
func ParseMediaType(raw string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie":
		return MediaMovie, true
	case "tv", "series":
		return MediaSeries, true
	}
	return "", false
}

// MediaItem is a search candidate or a favorite. ID zero means the catalog
// did not provide one.
type MediaItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title,omitempty"`
	Name        string    `json:"name,omitempty"`
	MediaType   MediaType `json:"media_type"`
	PosterPath  string    `json:"poster_path,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
}

// DisplayTitle returns Title, falling back to Name.
func (m MediaItem) DisplayTitle() string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	return strings.TrimSpace(m.Name)
}

func (m MediaItem) HasID() bool { return m.ID != 0 }
