package models

import (
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// Profile is the structured summary of a user's cinematic taste.
type Profile struct {
	FavoriteGenres             []string `json:"favorite_genres"`
	FavoriteDirectors          []string `json:"favorite_directors"`
	FavoriteActors             []string `json:"favorite_actors"`
	PreferredDecades           []string `json:"preferred_decades"`
	MoviesWatched              []string `json:"movies_watched"`
	ViewingMoodPreferences     []string `json:"viewing_mood_preferences"`
	RecommendedGenresToExplore []string `json:"recommended_genres_to_explore"`

	CinematicTasteDescription string `json:"cinematic_taste_description"`
	MoviePreferences          string `json:"movie_preferences"`
	PersonalityTraits         string `json:"personality_traits"`
}

type ListField string

const (
	FieldFavoriteGenres             ListField = "favorite_genres"
	FieldFavoriteDirectors          ListField = "favorite_directors"
	FieldFavoriteActors             ListField = "favorite_actors"
	FieldPreferredDecades           ListField = "preferred_decades"
	FieldMoviesWatched              ListField = "movies_watched"
	FieldViewingMoodPreferences     ListField = "viewing_mood_preferences"
	FieldRecommendedGenresToExplore ListField = "recommended_genres_to_explore"
)

var listFields = []ListField{
	FieldFavoriteGenres,
	FieldFavoriteDirectors,
	FieldFavoriteActors,
	FieldPreferredDecades,
	FieldMoviesWatched,
	FieldViewingMoodPreferences,
	FieldRecommendedGenresToExplore,
}

type TextField string

const (
	FieldCinematicTasteDescription TextField = "cinematic_taste_description"
	FieldMoviePreferences          TextField = "movie_preferences"
	FieldPersonalityTraits         TextField = "personality_traits"
)

var textFields = []TextField{
	FieldCinematicTasteDescription,
	FieldMoviePreferences,
	FieldPersonalityTraits,
}

func ParseListField(raw string) (ListField, bool) {
	f := ListField(strings.TrimSpace(raw))
	return f, slices.Contains(listFields, f)
}

func ParseTextField(raw string) (TextField, bool) {
	f := TextField(strings.TrimSpace(raw))
	return f, slices.Contains(textFields, f)
}

// List returns a pointer to the named sequence, or nil for an unknown field.
func (p *Profile) List(f ListField) *[]string {
	switch f {
	case FieldFavoriteGenres:
		return &p.FavoriteGenres
	case FieldFavoriteDirectors:
		return &p.FavoriteDirectors
	case FieldFavoriteActors:
		return &p.FavoriteActors
	case FieldPreferredDecades:
		return &p.PreferredDecades
	case FieldMoviesWatched:
		return &p.MoviesWatched
	case FieldViewingMoodPreferences:
		return &p.ViewingMoodPreferences
	case FieldRecommendedGenresToExplore:
		return &p.RecommendedGenresToExplore
	}
	return nil
}

// Text returns a pointer to the named free-text field, or nil for an unknown
// field.
func (p *Profile) Text(f TextField) *string {
	switch f {
	case FieldCinematicTasteDescription:
		return &p.CinematicTasteDescription
	case FieldMoviePreferences:
		return &p.MoviePreferences
	case FieldPersonalityTraits:
		return &p.PersonalityTraits
	}
	return nil
}

// Clone returns a copy that shares no backing arrays with p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	for _, f := range listFields {
		dst := out.List(f)
		*dst = slices.Clone(*p.List(f))
	}
	return &out
}

// Equal reports deep equality. Nil and empty sequences compare equal.
func (p *Profile) Equal(o *Profile) bool {
	if p == nil || o == nil {
		return p == o
	}
	for _, f := range listFields {
		if !slices.Equal(*p.List(f), *o.List(f)) {
			return false
		}
	}
	return p.CinematicTasteDescription == o.CinematicTasteDescription &&
		p.MoviePreferences == o.MoviePreferences &&
		p.PersonalityTraits == o.PersonalityTraits
}

// MarshalJSON writes absent sequences as empty arrays rather than null.
func (p Profile) MarshalJSON() ([]byte, error) {
	type plain Profile
	for _, f := range listFields {
		if l := p.List(f); *l == nil {
			*l = []string{}
		}
	}
	return json.Marshal(plain(p))
}

// StoredProfile is a backend-persisted profile together with its identifier.
type StoredProfile struct {
	ProfileID string   `json:"profile_id" validate:"required"`
	Profile   *Profile `json:"profile" validate:"required"`
}
