// Package handlers exposes the taste client over HTTP for a local UI.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/handsomefox/movie-taste/internal/app"
	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/metrics"
	"github.com/handsomefox/movie-taste/internal/models"
	"github.com/handsomefox/movie-taste/internal/validation"
)

const healthTimeout = 3 * time.Second

// Checker is a dependency probed by /healthz.
type Checker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	app    *app.App
	checks map[string]Checker
	log    *slog.Logger
}

type Config struct {
	App    *app.App
	Checks map[string]Checker
	Logger *slog.Logger
}

type favoriteRequest struct {
	ID          int64  `json:"id" validate:"gt=0"`
	Title       string `json:"title"`
	Name        string `json:"name"`
	MediaType   string `json:"media_type" validate:"required,oneof=movie tv series"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type recommendRequest struct {
	CustomQuery string `json:"custom_query"`
}

type searchResponse struct {
	Query   string             `json:"query"`
	Results []models.MediaItem `json:"results"`
}

type favoritesResponse struct {
	Added     *bool              `json:"added,omitempty"`
	Removed   *bool              `json:"removed,omitempty"`
	Favorites []models.MediaItem `json:"favorites"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func New(cfg *Config) (*Handler, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		app:    cfg.App,
		checks: cfg.Checks,
		log:    log.With(slog.String("component", "http")),
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Method(http.MethodGet, "/healthz", Adapt(h.getHealth))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Method(http.MethodGet, "/state", Adapt(h.getState))
	r.Method(http.MethodGet, "/search", Adapt(h.getSearch))

	r.Route("/favorites", func(r chi.Router) {
		r.Method(http.MethodGet, "/", Adapt(h.getFavorites))
		r.Method(http.MethodPost, "/", Adapt(h.postFavorite))
		r.Method(http.MethodDelete, "/{id:[0-9]+}", Adapt(h.deleteFavorite))
	})

	r.Route("/profile", func(r chi.Router) {
		r.Method(http.MethodPost, "/", Adapt(h.postProfile))
		r.Method(http.MethodPost, "/restore", Adapt(h.postProfileRestore))

		r.Route("/edit", func(r chi.Router) {
			r.Method(http.MethodPost, "/", Adapt(h.postEditStart))
			r.Method(http.MethodDelete, "/", Adapt(h.deleteEdit))
			r.Method(http.MethodPost, "/save", Adapt(h.postEditSave))
			r.Method(http.MethodPut, "/fields/{field}", Adapt(h.putEditField))
			r.Method(http.MethodPost, "/lists/{field}", Adapt(h.postEditListItem))
			r.Method(http.MethodDelete, "/lists/{field}/{index}", Adapt(h.deleteEditListItem))
		})
	})

	r.Method(http.MethodPost, "/recommendations", Adapt(h.postRecommendations))
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) getSearch(w http.ResponseWriter, r *http.Request) error {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		return badRequest("query required")
	}
	if err := h.app.Search(r.Context(), query); err != nil {
		return err
	}

	st := h.app.State()
	writeJSON(w, http.StatusOK, &searchResponse{Query: st.Query, Results: nonNil(st.SearchResults)})
	return nil
}

func (h *Handler) getFavorites(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, &favoritesResponse{Favorites: nonNil(h.app.State().Favorites)})
	return nil
}

func (h *Handler) postFavorite(w http.ResponseWriter, r *http.Request) error {
	var req favoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(err.Error())
	}
	mediaType, _ := models.ParseMediaType(req.MediaType)

	item := models.MediaItem{
		ID:          req.ID,
		Title:       strings.TrimSpace(req.Title),
		Name:        strings.TrimSpace(req.Name),
		MediaType:   mediaType,
		PosterPath:  strings.TrimSpace(req.PosterPath),
		ReleaseDate: strings.TrimSpace(req.ReleaseDate),
	}
	if item.DisplayTitle() == "" {
		return badRequest("title or name required")
	}

	added := h.app.AddFavorite(item)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, &favoritesResponse{Added: &added, Favorites: nonNil(h.app.State().Favorites)})
	return nil
}

func (h *Handler) deleteFavorite(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return notFound("not found")
	}

	removed := h.app.RemoveFavorite(id)
	writeJSON(w, http.StatusOK, &favoritesResponse{Removed: &removed, Favorites: nonNil(h.app.State().Favorites)})
	return nil
}

func (h *Handler) postProfile(w http.ResponseWriter, r *http.Request) error {
	if h.app.CreatingProfile() {
		return conflict("profile creation already in progress")
	}
	if err := h.app.CreateProfile(r.Context()); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, h.app.State())
	return nil
}

func (h *Handler) postProfileRestore(w http.ResponseWriter, r *http.Request) error {
	h.app.RestoreSession(r.Context())
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) postEditStart(w http.ResponseWriter, r *http.Request) error {
	if err := h.app.StartEdit(); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) deleteEdit(w http.ResponseWriter, r *http.Request) error {
	h.app.CancelEdit()
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) postEditSave(w http.ResponseWriter, r *http.Request) error {
	if h.app.SavingProfile() {
		return conflict("profile save already in progress")
	}
	if err := h.app.SaveEdit(r.Context()); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) putEditField(w http.ResponseWriter, r *http.Request) error {
	field, ok := models.ParseTextField(chi.URLParam(r, "field"))
	if !ok {
		return notFound("unknown field")
	}
	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	if err := h.app.EditField(field, req.Value); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) postEditListItem(w http.ResponseWriter, r *http.Request) error {
	field, ok := models.ParseListField(chi.URLParam(r, "field"))
	if !ok {
		return notFound("unknown field")
	}
	var req valueRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	if err := h.app.AddListItem(field, req.Value); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) deleteEditListItem(w http.ResponseWriter, r *http.Request) error {
	field, ok := models.ParseListField(chi.URLParam(r, "field"))
	if !ok {
		return notFound("unknown field")
	}
	idx, err := indexParam(r, "index")
	if err != nil {
		return badRequest(err.Error())
	}
	if err := h.app.RemoveListItem(field, idx); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) postRecommendations(w http.ResponseWriter, r *http.Request) error {
	if h.app.Recommending() {
		return conflict("recommendations already in progress")
	}
	var req recommendRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			return badRequest("bad request")
		}
	}
	if err := h.app.RequestRecommendations(r.Context(), strings.TrimSpace(req.CustomQuery)); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.app.State())
	return nil
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := &healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.log.Warn("health check failed", slog.String("check", name), logger.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
