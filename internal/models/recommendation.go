package models

// Recommendation is one suggested title plus the reason it was suggested. It
// is only meaningful relative to the profile that produced it.
type Recommendation struct {
	Title          string   `json:"title"`
	Year           string   `json:"year,omitempty"`
	Genre          string   `json:"genre,omitempty"`
	Director       string   `json:"director,omitempty"`
	Rating         string   `json:"rating,omitempty"`
	Cast           []string `json:"cast,omitempty"`
	Description    string   `json:"description,omitempty"`
	WhyRecommended string   `json:"why_recommended"`
	PosterPath     string   `json:"poster_path,omitempty"`
}
