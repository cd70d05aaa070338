// Package profile owns the taste-profile lifecycle: creation from favorites,
// draft editing, saving, restoring the session's last profile and clearing
// the profile when the favorites it was derived from change.
package profile

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/handsomefox/movie-taste/internal/favorites"
	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/metrics"
	"github.com/handsomefox/movie-taste/internal/models"
)

type Backend interface {
	CreateProfile(ctx context.Context, titles []string) (models.StoredProfile, error)
	ListProfiles(ctx context.Context) ([]models.StoredProfile, error)
	UpdateProfile(ctx context.Context, profileID string, profile *models.Profile) error
}

// SearchResetter clears the search context once a profile supersedes it.
type SearchResetter interface {
	Reset()
}

// RecommendationClearer drops recommendations that no longer match the
// committed profile.
type RecommendationClearer interface {
	Clear()
}

type Config struct {
	Backend         Backend
	Search          SearchResetter
	Recommendations RecommendationClearer
	Logger          *slog.Logger
	// InitialFavorites is the favorites count at construction time, used as
	// the baseline for count-change invalidation.
	InitialFavorites int
}

type Controller struct {
	backend Backend
	search  SearchResetter
	recs    RecommendationClearer
	log     *slog.Logger

	mu        sync.Mutex
	profile   *models.Profile
	profileID string
	draft     *models.Profile

	// generation changes whenever the committed profile is set or cleared.
	generation uint64
	// favoritesGen changes whenever the favorites count changes.
	favoritesGen uint64
	lastCount    int

	createSeq uint64
	saveSeq   uint64
	creating  bool
	saving    bool
}

func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		backend:   cfg.Backend,
		search:    cfg.Search,
		recs:      cfg.Recommendations,
		log:       log.With(slog.String("component", "profile")),
		lastCount: cfg.InitialFavorites,
	}
}

// CreateProfile derives a new profile from favorites. The titles are sent in
// list order. A result that arrives after a newer create was issued is
// dropped silently; one that arrives after the favorites count changed is
// dropped with a validation error.
func (c *Controller) CreateProfile(ctx context.Context, items []models.MediaItem) error {
	if len(items) == 0 {
		return models.Invalid("create profile", "add favorites before creating a profile")
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.DisplayTitle())
	}

	c.mu.Lock()
	c.createSeq++
	seq := c.createSeq
	favGen := c.favoritesGen
	c.creating = true
	c.mu.Unlock()

	created, err := c.backend.CreateProfile(ctx, titles)

	c.mu.Lock()
	if seq != c.createSeq {
		c.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("create_profile").Inc()
		return nil
	}
	c.creating = false
	if err != nil {
		c.mu.Unlock()
		c.log.Error("create profile failed", slog.Int("favorites", len(titles)), logger.Error(err))
		return models.Transport("create profile", err)
	}
	if favGen != c.favoritesGen {
		c.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("create_profile").Inc()
		c.log.Warn("favorites changed while creating profile, discarding result",
			slog.String("profile_id", created.ProfileID))
		return models.Stale("create profile", "favorites changed while the profile was being created")
	}
	c.commitLocked(created.ProfileID, created.Profile.Clone())
	c.draft = nil
	c.mu.Unlock()

	c.log.Info("profile created", slog.String("profile_id", created.ProfileID), slog.Int("favorites", len(titles)))
	if c.search != nil {
		c.search.Reset()
	}
	if c.recs != nil {
		c.recs.Clear()
	}
	return nil
}

// StartEdit opens a draft that is a deep copy of the committed profile.
// Starting again discards the previous draft.
func (c *Controller) StartEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return models.Invalid("start edit", "no active profile")
	}
	c.draft = c.profile.Clone()
	return nil
}

func (c *Controller) EditField(field models.TextField, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return models.Invalid("edit field", "not editing")
	}
	dst := c.draft.Text(field)
	if dst == nil {
		return models.Invalid("edit field", "unknown field "+string(field))
	}
	*dst = value
	return nil
}

// AddListItem appends the trimmed value to a sequence field of the draft.
// Blank values are ignored; duplicates are kept.
func (c *Controller) AddListItem(field models.ListField, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return models.Invalid("add list item", "not editing")
	}
	dst := c.draft.List(field)
	if dst == nil {
		return models.Invalid("add list item", "unknown field "+string(field))
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	*dst = append(*dst, value)
	return nil
}

// RemoveListItem drops the element at index. Out-of-range indexes are
// ignored.
func (c *Controller) RemoveListItem(field models.ListField, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return models.Invalid("remove list item", "not editing")
	}
	dst := c.draft.List(field)
	if dst == nil {
		return models.Invalid("remove list item", "unknown field "+string(field))
	}
	if index < 0 || index >= len(*dst) {
		return nil
	}
	out := make([]string, 0, len(*dst)-1)
	out = append(out, (*dst)[:index]...)
	*dst = append(out, (*dst)[index+1:]...)
	return nil
}

func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = nil
}

// SaveEdit persists a snapshot of the draft. On success the snapshot becomes
// the committed profile and editing ends, unless the draft was changed while
// the save was in flight; on failure the draft stays as it was and editing
// continues.
func (c *Controller) SaveEdit(ctx context.Context) error {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return models.Invalid("save profile", "not editing")
	}
	if c.profileID == "" {
		c.mu.Unlock()
		return models.Invalid("save profile", "no active profile id")
	}
	c.saveSeq++
	seq := c.saveSeq
	gen := c.generation
	id := c.profileID
	snapshot := c.draft.Clone()
	c.saving = true
	c.mu.Unlock()

	err := c.backend.UpdateProfile(ctx, id, snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.saveSeq {
		metrics.StaleResponses.WithLabelValues("update_profile").Inc()
		return nil
	}
	c.saving = false
	if err != nil {
		c.log.Error("save profile failed", slog.String("profile_id", id), logger.Error(err))
		return models.Transport("save profile", err)
	}
	if gen != c.generation {
		metrics.StaleResponses.WithLabelValues("update_profile").Inc()
		c.log.Warn("profile replaced while saving, dropping saved draft", slog.String("profile_id", id))
		return nil
	}
	c.commitLocked(id, snapshot)
	// Edits made while the save was in flight stay in the draft.
	if c.draft == nil || c.draft.Equal(snapshot) {
		c.draft = nil
	}
	c.log.Info("profile saved", slog.String("profile_id", id))
	return nil
}

// RestoreFromSession hydrates the most recently created profile of the
// session. An empty listing or a failure leaves the controller without a
// profile and is not reported. A profile set or cleared locally after the
// restore started takes precedence over the restored one.
func (c *Controller) RestoreFromSession(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	profiles, err := c.backend.ListProfiles(ctx)
	if err != nil {
		c.log.Warn("session restore failed, starting without a profile", logger.Error(err))
		return
	}
	if len(profiles) == 0 {
		c.log.Debug("no stored profiles for session")
		return
	}
	last := profiles[len(profiles)-1]
	if last.ProfileID == "" || last.Profile == nil {
		c.log.Warn("stored profile without id, ignoring")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.profile != nil {
		metrics.StaleResponses.WithLabelValues("list_profiles").Inc()
		c.log.Info("local profile changed during restore, keeping it")
		return
	}
	c.commitLocked(last.ProfileID, last.Profile.Clone())
	c.log.Info("profile restored", slog.String("profile_id", last.ProfileID), slog.Int("stored", len(profiles)))
}

// OnFavoritesChanged clears the profile, any draft and the recommendations
// when the favorites count differs from the last one observed.
func (c *Controller) OnFavoritesChanged(change favorites.Change) {
	c.mu.Lock()
	if change.Count == c.lastCount {
		c.mu.Unlock()
		return
	}
	c.lastCount = change.Count
	c.favoritesGen++
	if c.profile == nil {
		c.mu.Unlock()
		return
	}
	id := c.profileID
	c.profile = nil
	c.profileID = ""
	c.draft = nil
	c.generation++
	c.mu.Unlock()

	metrics.ProfileInvalidations.Inc()
	c.log.Info("favorites changed, profile cleared", slog.String("profile_id", id), slog.Int("favorites", change.Count))
	if c.recs != nil {
		c.recs.Clear()
	}
}

func (c *Controller) commitLocked(id string, p *models.Profile) {
	if p == nil {
		p = &models.Profile{}
	}
	c.profile = p
	c.profileID = id
	c.generation++
}

// Profile returns a copy of the committed profile, or nil.
func (c *Controller) Profile() *models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Clone()
}

func (c *Controller) ProfileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profileID
}

// Draft returns a copy of the draft, or nil when not editing.
func (c *Controller) Draft() *models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

func (c *Controller) Editing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft != nil
}

func (c *Controller) Creating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creating
}

func (c *Controller) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}
