// Package tmdb is a direct TMDB catalog source for search, used instead of
// the backend's search endpoint when configured.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/handsomefox/movie-taste/internal/models"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	DefaultImageBase = "https://image.tmdb.org/t/p/w500"
)

type Client struct {
	apiKey    string
	readToken string
	baseURL   string
	imageBase string
	language  string
	http      *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithImageBase(u string) Option {
	return func(c *Client) { c.imageBase = strings.TrimRight(u, "/") }
}

func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = strings.TrimSpace(lang) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

type SearchPage struct {
	Results      []models.MediaItem
	Page         int
	TotalPages   int
	TotalResults int
}

type searchResponse struct {
	Page         int `json:"page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	Results      []struct {
		ID           int64  `json:"id"`
		MediaType    string `json:"media_type"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
		PosterPath   string `json:"poster_path"`
	} `json:"results"`
}

func New(apiKey, readToken string, opts ...Option) *Client {
	if strings.TrimSpace(readToken) == "" && looksLikeJWT(apiKey) {
		readToken = apiKey
		apiKey = ""
	}
	c := &Client{
		apiKey:    apiKey,
		readToken: readToken,
		baseURL:   DefaultBaseURL,
		imageBase: DefaultImageBase,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the first page of multi-search results.
func (c *Client) Search(ctx context.Context, query string) ([]models.MediaItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	pageData, err := c.SearchPage(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	return pageData.Results, nil
}

func (c *Client) SearchPage(ctx context.Context, query string, page int) (SearchPage, error) {
	if strings.TrimSpace(query) == "" {
		return SearchPage{}, nil
	}
	if page < 1 {
		page = 1
	}
	values := url.Values{}
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}
	values.Set("query", query)
	values.Set("include_adult", "false")
	values.Set("page", strconv.Itoa(page))
	if c.language != "" {
		values.Set("language", c.language)
	}
	return c.fetchSearch(ctx, c.baseURL+"/search/multi?"+values.Encode())
}

func (c *Client) fetchSearch(ctx context.Context, endpoint string) (SearchPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return SearchPage{}, err
	}
	c.applyAuth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return SearchPage{}, err
	}
	if resp.StatusCode >= 400 {
		statusErr := fmt.Errorf("tmdb search failed: %s", resp.Status)
		if cerr := resp.Body.Close(); cerr != nil {
			return SearchPage{}, errors.Join(statusErr, cerr)
		}
		return SearchPage{}, statusErr
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			return SearchPage{}, errors.Join(err, cerr)
		}
		return SearchPage{}, err
	}
	if err := resp.Body.Close(); err != nil {
		return SearchPage{}, err
	}

	out := make([]models.MediaItem, 0, len(payload.Results))
	for i := range payload.Results {
		r := payload.Results[i]
		mediaType, ok := models.ParseMediaType(r.MediaType)
		if !ok {
			continue
		}
		item := models.MediaItem{
			ID:         r.ID,
			MediaType:  mediaType,
			PosterPath: c.posterURL(r.PosterPath),
		}
		if mediaType == models.MediaMovie {
			item.Title = r.Title
			item.ReleaseDate = r.ReleaseDate
		} else {
			item.Name = r.Name
			item.ReleaseDate = r.FirstAirDate
		}
		out = append(out, item)
	}
	return SearchPage{
		Results:      out,
		Page:         payload.Page,
		TotalPages:   payload.TotalPages,
		TotalResults: payload.TotalResults,
	}, nil
}

func (c *Client) posterURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return c.imageBase + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) applyAuth(req *http.Request) {
	if strings.TrimSpace(c.readToken) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.readToken))
}

func looksLikeJWT(token string) bool {
	parts := strings.Split(strings.TrimSpace(token), ".")
	return len(parts) == 3 && len(token) > 80
}
