// Package app composes favorites, search, profile and recommendations into
// the single facade the HTTP layer talks to. It forwards user intents and
// wires the cross-component reactions; it holds no state of its own.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/handsomefox/movie-taste/internal/favorites"
	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/models"
	"github.com/handsomefox/movie-taste/internal/profile"
	"github.com/handsomefox/movie-taste/internal/recommend"
	"github.com/handsomefox/movie-taste/internal/search"
)

const persistTimeout = 5 * time.Second

type Backend interface {
	profile.Backend
	recommend.Backend
}

// FavoritesRepo mirrors favorites into durable storage.
type FavoritesRepo interface {
	UpsertFavorite(ctx context.Context, item models.MediaItem) error
	DeleteFavorite(ctx context.Context, tmdbID int64) error
}

type Config struct {
	Catalog search.Catalog
	Backend Backend
	// Repo is optional. When set, favorite changes are written through to it.
	Repo FavoritesRepo
	// Favorites seeds the store, typically from Repo, without triggering
	// any reaction.
	Favorites []models.MediaItem
	Logger    *slog.Logger
}

type App struct {
	favorites *favorites.Store
	search    *search.Controller
	profile   *profile.Controller
	recs      *recommend.Engine
	repo      FavoritesRepo
	log       *slog.Logger
}

// State is a point-in-time view of everything a UI renders.
type State struct {
	Query           string                  `json:"query"`
	SearchResults   []models.MediaItem      `json:"search_results"`
	Searching       bool                    `json:"searching"`
	Favorites       []models.MediaItem      `json:"favorites"`
	ProfileID       string                  `json:"profile_id,omitempty"`
	Profile         *models.Profile         `json:"profile"`
	Editing         bool                    `json:"editing"`
	Draft           *models.Profile         `json:"draft,omitempty"`
	CreatingProfile bool                    `json:"creating_profile"`
	SavingProfile   bool                    `json:"saving_profile"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Recommending    bool                    `json:"recommending"`
	CustomQuery     string                  `json:"custom_query,omitempty"`
}

func New(cfg Config) *App {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	favs := favorites.New()
	favs.Load(cfg.Favorites)

	searchCtrl := search.New(cfg.Catalog, log)
	engine := recommend.New(cfg.Backend, log)
	profileCtrl := profile.New(profile.Config{
		Backend:          cfg.Backend,
		Search:           searchCtrl,
		Recommendations:  engine,
		Logger:           log,
		InitialFavorites: favs.Count(),
	})

	a := &App{
		favorites: favs,
		search:    searchCtrl,
		profile:   profileCtrl,
		recs:      engine,
		repo:      cfg.Repo,
		log:       log.With(slog.String("component", "app")),
	}
	favs.Subscribe(profileCtrl.OnFavoritesChanged)
	if a.repo != nil {
		favs.Subscribe(a.persistFavorite)
	}
	return a
}

func (a *App) persistFavorite(change favorites.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	switch change.Op {
	case favorites.OpAdd:
		err = a.repo.UpsertFavorite(ctx, change.Item)
	case favorites.OpRemove:
		if !change.Removed {
			return
		}
		err = a.repo.DeleteFavorite(ctx, change.ID)
	}
	if err != nil {
		a.log.Error("persist favorite failed",
			slog.String("op", string(change.Op)), slog.Int64("id", change.ID), logger.Error(err))
	}
}

func (a *App) Search(ctx context.Context, query string) error {
	return a.search.Search(ctx, query)
}

// AddFavorite reports whether the item was added. Items without an id and
// items already present are ignored.
func (a *App) AddFavorite(item models.MediaItem) bool {
	return a.favorites.Add(item)
}

func (a *App) RemoveFavorite(id int64) bool {
	return a.favorites.Remove(id)
}

// CreateProfile derives a profile from the current favorites.
func (a *App) CreateProfile(ctx context.Context) error {
	return a.profile.CreateProfile(ctx, a.favorites.List())
}

func (a *App) StartEdit() error { return a.profile.StartEdit() }

func (a *App) EditField(field models.TextField, value string) error {
	return a.profile.EditField(field, value)
}

func (a *App) AddListItem(field models.ListField, value string) error {
	return a.profile.AddListItem(field, value)
}

func (a *App) RemoveListItem(field models.ListField, index int) error {
	return a.profile.RemoveListItem(field, index)
}

func (a *App) CancelEdit() { a.profile.CancelEdit() }

func (a *App) SaveEdit(ctx context.Context) error {
	return a.profile.SaveEdit(ctx)
}

// RequestRecommendations uses the committed profile, never the draft. The
// epoch is read before the profile so an invalidation landing in between is
// detected by the engine.
func (a *App) RequestRecommendations(ctx context.Context, customQuery string) error {
	epoch := a.recs.Epoch()
	return a.recs.RequestForProfileAt(ctx, epoch, a.profile.Profile(), customQuery)
}

func (a *App) RestoreSession(ctx context.Context) {
	a.profile.RestoreFromSession(ctx)
}

func (a *App) Recommending() bool    { return a.recs.Busy() }
func (a *App) CreatingProfile() bool { return a.profile.Creating() }
func (a *App) SavingProfile() bool   { return a.profile.Saving() }

func (a *App) State() State {
	return State{
		Query:           a.search.Query(),
		SearchResults:   a.search.Results(),
		Searching:       a.search.Pending(),
		Favorites:       a.favorites.List(),
		ProfileID:       a.profile.ProfileID(),
		Profile:         a.profile.Profile(),
		Editing:         a.profile.Editing(),
		Draft:           a.profile.Draft(),
		CreatingProfile: a.profile.Creating(),
		SavingProfile:   a.profile.Saving(),
		Recommendations: a.recs.Recommendations(),
		Recommending:    a.recs.Busy(),
		CustomQuery:     a.recs.CustomQuery(),
	}
}
