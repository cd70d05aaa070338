package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/handsomefox/movie-taste/internal/models"
	"github.com/handsomefox/movie-taste/internal/validation"
)

type searchItem struct {
	ID          *int64  `json:"id"`
	Title       string  `json:"title"`
	Name        string  `json:"name"`
	MediaType   string  `json:"media_type"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate *string `json:"release_date"`
}

type createProfileRequest struct {
	FavoriteMovies []string `json:"favorite_movies"`
}

type listProfilesResponse struct {
	Profiles []models.StoredProfile `json:"profiles" validate:"dive"`
}

type updateProfileResponse struct {
	Success bool `json:"success"`
}

type recommendRequest struct {
	Profile     *models.Profile `json:"profile"`
	CustomQuery *string         `json:"custom_query"`
}

type recommendResponse struct {
	Movies []models.Recommendation `json:"movies"`
}

// Search runs a catalog lookup. Results keep backend order; entries that are
// neither movies nor series are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]models.MediaItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var payload []searchItem
	if err := c.do(ctx, "search", http.MethodGet, []string{"search"}, url.Values{"query": {query}}, nil, &payload); err != nil {
		return nil, err
	}

	out := make([]models.MediaItem, 0, len(payload))
	for _, r := range payload {
		mediaType, ok := models.ParseMediaType(r.MediaType)
		if !ok {
			continue
		}
		item := models.MediaItem{
			Title:       r.Title,
			Name:        r.Name,
			MediaType:   mediaType,
			PosterPath:  deref(r.PosterPath),
			ReleaseDate: deref(r.ReleaseDate),
		}
		if r.ID != nil {
			item.ID = *r.ID
		}
		out = append(out, item)
	}
	return out, nil
}

// CreateProfile asks the backend to derive a profile from favorite titles.
func (c *Client) CreateProfile(ctx context.Context, titles []string) (models.StoredProfile, error) {
	body := createProfileRequest{FavoriteMovies: titles}
	if body.FavoriteMovies == nil {
		body.FavoriteMovies = []string{}
	}
	var out models.StoredProfile
	if err := c.do(ctx, "create_profile", http.MethodPost, []string{"profile", "create"}, nil, body, &out); err != nil {
		return models.StoredProfile{}, err
	}
	if err := validation.Struct(&out); err != nil {
		return models.StoredProfile{}, fmt.Errorf("create profile response: %w", err)
	}
	return out, nil
}

// ListProfiles returns the profiles of the current session, oldest first.
func (c *Client) ListProfiles(ctx context.Context) ([]models.StoredProfile, error) {
	var out listProfilesResponse
	if err := c.do(ctx, "list_profiles", http.MethodGet, []string{"profiles"}, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := validation.Struct(&out); err != nil {
		return nil, fmt.Errorf("list profiles response: %w", err)
	}
	return out.Profiles, nil
}

func (c *Client) UpdateProfile(ctx context.Context, profileID string, profile *models.Profile) error {
	if strings.TrimSpace(profileID) == "" {
		return errors.New("update profile: empty profile id")
	}
	var out updateProfileResponse
	if err := c.do(ctx, "update_profile", http.MethodPut, []string{"profile", profileID}, nil, profile, &out); err != nil {
		return err
	}
	if !out.Success {
		return ErrUpdateRejected
	}
	return nil
}

// RecommendFromProfile requests recommendations for profile. An empty
// customQuery is sent as null.
func (c *Client) RecommendFromProfile(ctx context.Context, profile *models.Profile, customQuery string) ([]models.Recommendation, error) {
	body := recommendRequest{Profile: profile}
	if q := strings.TrimSpace(customQuery); q != "" {
		body.CustomQuery = &q
	}
	var out recommendResponse
	if err := c.do(ctx, "recommend", http.MethodPost, []string{"recommendations", "from-profile"}, nil, body, &out); err != nil {
		return nil, err
	}
	if out.Movies == nil {
		out.Movies = []models.Recommendation{}
	}
	return out.Movies, nil
}

// Ping checks that the backend answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, "ping", http.MethodGet, []string{"ping"}, nil, nil, nil); err != nil {
		return err
	}
	c.log.Debug("backend reachable", slog.String("url", c.baseURL.String()))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
