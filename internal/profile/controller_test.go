package profile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/handsomefox/movie-taste/internal/favorites"
	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/models"
	"github.com/stretchr/testify/require"
)

type updateCall struct {
	id      string
	profile *models.Profile
}

type fakeBackend struct {
	mu sync.Mutex

	createCalls [][]string
	created     models.StoredProfile
	createErr   error
	createGate  chan struct{}

	listCalls int
	listed    []models.StoredProfile
	listErr   error
	listGate  chan struct{}

	updateCalls []updateCall
	updateErr   error
	updateGate  chan struct{}

	started chan string
}

func (f *fakeBackend) CreateProfile(ctx context.Context, titles []string) (models.StoredProfile, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, titles)
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		f.started <- "create"
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.createErr
}

func (f *fakeBackend) ListProfiles(ctx context.Context) ([]models.StoredProfile, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		f.started <- "list"
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed, f.listErr
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, profileID string, profile *models.Profile) error {
	f.mu.Lock()
	f.updateCalls = append(f.updateCalls, updateCall{id: profileID, profile: profile})
	gate := f.updateGate
	f.mu.Unlock()
	if gate != nil {
		f.started <- "update"
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateErr
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Reset() { c.inc() }
func (c *counter) Clear() { c.inc() }

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func sampleProfile() *models.Profile {
	return &models.Profile{
		FavoriteGenres:            []string{"Drama", "Sci-Fi"},
		FavoriteDirectors:         []string{"Kubrick"},
		FavoriteActors:            []string{"Tilda Swinton"},
		PreferredDecades:          []string{"1970s"},
		ViewingMoodPreferences:    []string{"contemplative"},
		CinematicTasteDescription: "Cerebral and slow",
		MoviePreferences:          "Practical effects",
		PersonalityTraits:         "Curious",
	}
}

type fixture struct {
	backend *fakeBackend
	search  *counter
	recs    *counter
	ctrl    *Controller
}

func newFixture(initialFavorites int) *fixture {
	f := &fixture{
		backend: &fakeBackend{
			created: models.StoredProfile{ProfileID: "p-1", Profile: sampleProfile()},
			started: make(chan string, 4),
		},
		search: &counter{},
		recs:   &counter{},
	}
	f.ctrl = New(Config{
		Backend:          f.backend,
		Search:           f.search,
		Recommendations:  f.recs,
		Logger:           logger.Discard(),
		InitialFavorites: initialFavorites,
	})
	return f
}

func items(titles ...string) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(titles))
	for i, t := range titles {
		out = append(out, models.MediaItem{ID: int64(i + 1), Title: t, MediaType: models.MediaMovie})
	}
	return out
}

// withProfile returns a fixture whose controller holds p-1, created from two
// favorites.
func withProfile(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(2)
	require.NoError(t, f.ctrl.CreateProfile(context.Background(), items("A", "B")))
	require.NotNil(t, f.ctrl.Profile())
	return f
}

func TestCreateProfile_EmptyFavorites(t *testing.T) {
	f := newFixture(0)
	err := f.ctrl.CreateProfile(context.Background(), nil)
	require.ErrorIs(t, err, models.ErrValidation)
	require.Empty(t, f.backend.createCalls)
	require.Nil(t, f.ctrl.Profile())
	require.Zero(t, f.search.count())
	require.Zero(t, f.recs.count())
}

func TestCreateProfile_SendsTitlesInOrder(t *testing.T) {
	f := newFixture(3)
	favs := []models.MediaItem{
		{ID: 1, Title: "A", MediaType: models.MediaMovie},
		{ID: 2, Title: "B", MediaType: models.MediaMovie},
		{ID: 3, Name: "Dark", MediaType: models.MediaSeries},
	}
	require.NoError(t, f.ctrl.CreateProfile(context.Background(), favs))

	require.Equal(t, [][]string{{"A", "B", "Dark"}}, f.backend.createCalls)
	require.Equal(t, "p-1", f.ctrl.ProfileID())
	require.True(t, sampleProfile().Equal(f.ctrl.Profile()))
	require.Equal(t, 1, f.search.count())
	require.Equal(t, 1, f.recs.count())
	require.False(t, f.ctrl.Creating())
}

func TestCreateProfile_FailureLeavesStateUntouched(t *testing.T) {
	f := withProfile(t)
	f.backend.createErr = errors.New("quota exceeded")

	err := f.ctrl.CreateProfile(context.Background(), items("A", "B"))
	require.ErrorIs(t, err, models.ErrTransport)
	require.Equal(t, "p-1", f.ctrl.ProfileID())
	require.True(t, sampleProfile().Equal(f.ctrl.Profile()))
	require.Equal(t, 1, f.search.count())
	require.Equal(t, 1, f.recs.count())
	require.False(t, f.ctrl.Creating())
}

func TestCreateProfile_ReplacesDraft(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	f.backend.created = models.StoredProfile{ProfileID: "p-2", Profile: &models.Profile{MoviePreferences: "new"}}

	require.NoError(t, f.ctrl.CreateProfile(context.Background(), items("A", "B")))
	require.False(t, f.ctrl.Editing())
	require.Equal(t, "p-2", f.ctrl.ProfileID())
}

func TestCreateProfile_DiscardedWhenFavoritesChangeInFlight(t *testing.T) {
	f := newFixture(2)
	f.backend.createGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.ctrl.CreateProfile(context.Background(), items("A", "B")) }()
	require.Equal(t, "create", <-f.backend.started)
	require.True(t, f.ctrl.Creating())

	f.ctrl.OnFavoritesChanged(favorites.Change{Op: favorites.OpAdd, Count: 3})
	close(f.backend.createGate)

	err := <-done
	require.ErrorIs(t, err, models.ErrStale)
	require.NotErrorIs(t, err, models.ErrValidation)
	require.Len(t, f.backend.createCalls, 1)
	require.Nil(t, f.ctrl.Profile())
	require.Empty(t, f.ctrl.ProfileID())
	require.Zero(t, f.search.count())
	require.False(t, f.ctrl.Creating())
}

func TestEditCancel_LeavesProfileUnchanged(t *testing.T) {
	f := withProfile(t)
	before := f.ctrl.Profile()

	require.NoError(t, f.ctrl.StartEdit())
	require.True(t, f.ctrl.Editing())
	require.NoError(t, f.ctrl.EditField(models.FieldCinematicTasteDescription, "Loud and fast"))
	require.NoError(t, f.ctrl.EditField(models.FieldPersonalityTraits, ""))
	require.NoError(t, f.ctrl.AddListItem(models.FieldFavoriteGenres, "Horror"))
	require.NoError(t, f.ctrl.AddListItem(models.FieldFavoriteActors, "  Toni Collette "))
	require.NoError(t, f.ctrl.RemoveListItem(models.FieldFavoriteDirectors, 0))
	require.NoError(t, f.ctrl.RemoveListItem(models.FieldFavoriteGenres, 0))

	draft := f.ctrl.Draft()
	require.Equal(t, "Loud and fast", draft.CinematicTasteDescription)
	require.Equal(t, []string{"Sci-Fi", "Horror"}, draft.FavoriteGenres)
	require.Equal(t, []string{"Tilda Swinton", "Toni Collette"}, draft.FavoriteActors)
	require.Empty(t, draft.FavoriteDirectors)

	f.ctrl.CancelEdit()
	require.False(t, f.ctrl.Editing())
	require.Nil(t, f.ctrl.Draft())
	require.True(t, before.Equal(f.ctrl.Profile()))
	require.Empty(t, f.backend.updateCalls)
}

func TestStartEdit_RequiresProfile(t *testing.T) {
	f := newFixture(0)
	require.ErrorIs(t, f.ctrl.StartEdit(), models.ErrValidation)
	require.False(t, f.ctrl.Editing())
}

func TestDraftMutations_RequireEditMode(t *testing.T) {
	f := withProfile(t)
	require.ErrorIs(t, f.ctrl.EditField(models.FieldMoviePreferences, "x"), models.ErrValidation)
	require.ErrorIs(t, f.ctrl.AddListItem(models.FieldFavoriteGenres, "x"), models.ErrValidation)
	require.ErrorIs(t, f.ctrl.RemoveListItem(models.FieldFavoriteGenres, 0), models.ErrValidation)
	require.ErrorIs(t, f.ctrl.SaveEdit(context.Background()), models.ErrValidation)
	require.Empty(t, f.backend.updateCalls)
}

func TestDraftMutations_UnknownField(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	require.ErrorIs(t, f.ctrl.EditField("favorite_genres", "x"), models.ErrValidation)
	require.ErrorIs(t, f.ctrl.AddListItem("personality_traits", "x"), models.ErrValidation)
	require.ErrorIs(t, f.ctrl.RemoveListItem("nope", 0), models.ErrValidation)
}

func TestAddListItem_BlankIsNoop(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	require.NoError(t, f.ctrl.AddListItem(models.FieldFavoriteGenres, "   "))
	require.Len(t, f.ctrl.Draft().FavoriteGenres, 2)
}

func TestAddListItem_AllowsDuplicates(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	require.NoError(t, f.ctrl.AddListItem(models.FieldFavoriteGenres, "Drama"))
	require.Equal(t, []string{"Drama", "Sci-Fi", "Drama"}, f.ctrl.Draft().FavoriteGenres)
}

func TestRemoveListItem_OutOfRangeIsNoop(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	for _, idx := range []int{-1, 2, 100} {
		require.NoError(t, f.ctrl.RemoveListItem(models.FieldFavoriteGenres, idx))
	}
	require.Equal(t, []string{"Drama", "Sci-Fi"}, f.ctrl.Draft().FavoriteGenres)

	require.NoError(t, f.ctrl.RemoveListItem(models.FieldFavoriteGenres, 1))
	require.Equal(t, []string{"Drama"}, f.ctrl.Draft().FavoriteGenres)
	require.Equal(t, []string{"Drama", "Sci-Fi"}, f.ctrl.Profile().FavoriteGenres)
}

func TestSaveEdit_CommitsDraft(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	require.NoError(t, f.ctrl.EditField(models.FieldMoviePreferences, "Long takes"))
	require.NoError(t, f.ctrl.AddListItem(models.FieldPreferredDecades, "1980s"))
	draft := f.ctrl.Draft()

	require.NoError(t, f.ctrl.SaveEdit(context.Background()))
	require.False(t, f.ctrl.Editing())
	require.False(t, f.ctrl.Saving())
	require.True(t, draft.Equal(f.ctrl.Profile()))

	require.Len(t, f.backend.updateCalls, 1)
	require.Equal(t, "p-1", f.backend.updateCalls[0].id)
	require.True(t, draft.Equal(f.backend.updateCalls[0].profile))
}

func TestSaveEdit_KeepsEditsMadeWhileSaving(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	require.NoError(t, f.ctrl.EditField(models.FieldMoviePreferences, "Long takes"))
	saved := f.ctrl.Draft()
	f.backend.updateGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.ctrl.SaveEdit(context.Background()) }()
	require.Equal(t, "update", <-f.backend.started)
	require.True(t, f.ctrl.Saving())

	require.NoError(t, f.ctrl.AddListItem(models.FieldFavoriteGenres, "Western"))
	close(f.backend.updateGate)
	require.NoError(t, <-done)

	require.True(t, saved.Equal(f.ctrl.Profile()))
	require.True(t, f.ctrl.Editing())
	require.False(t, f.ctrl.Saving())
	require.Equal(t, []string{"Drama", "Sci-Fi", "Western"}, f.ctrl.Draft().FavoriteGenres)
	require.Equal(t, "Long takes", f.ctrl.Draft().MoviePreferences)

	// A second save commits the remaining edit and ends editing.
	f.backend.updateGate = nil
	require.NoError(t, f.ctrl.SaveEdit(context.Background()))
	require.False(t, f.ctrl.Editing())
	require.Equal(t, []string{"Drama", "Sci-Fi", "Western"}, f.ctrl.Profile().FavoriteGenres)
}

func TestSaveEdit_FailureKeepsDraft(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	require.NoError(t, f.ctrl.EditField(models.FieldMoviePreferences, "Long takes"))
	require.NoError(t, f.ctrl.AddListItem(models.FieldFavoriteGenres, "Noir"))
	before := f.ctrl.Draft()
	f.backend.updateErr = errors.New("503")

	err := f.ctrl.SaveEdit(context.Background())
	require.ErrorIs(t, err, models.ErrTransport)
	require.True(t, f.ctrl.Editing())
	require.True(t, before.Equal(f.ctrl.Draft()))
	require.True(t, sampleProfile().Equal(f.ctrl.Profile()))
	require.False(t, f.ctrl.Saving())

	// The edits survive and a retry by the user succeeds.
	f.backend.updateErr = nil
	require.NoError(t, f.ctrl.SaveEdit(context.Background()))
	require.True(t, before.Equal(f.ctrl.Profile()))
}

func TestInvalidation_ClearsProfileDraftAndRecommendations(t *testing.T) {
	f := withProfile(t)
	require.NoError(t, f.ctrl.StartEdit())
	recsBefore := f.recs.count()

	f.ctrl.OnFavoritesChanged(favorites.Change{Op: favorites.OpRemove, Count: 1, Removed: true})

	require.Nil(t, f.ctrl.Profile())
	require.Empty(t, f.ctrl.ProfileID())
	require.False(t, f.ctrl.Editing())
	require.Equal(t, recsBefore+1, f.recs.count())
	require.ErrorIs(t, f.ctrl.SaveEdit(context.Background()), models.ErrValidation)
}

func TestInvalidation_SameCountIsIgnored(t *testing.T) {
	f := withProfile(t)
	recsBefore := f.recs.count()

	f.ctrl.OnFavoritesChanged(favorites.Change{Op: favorites.OpRemove, ID: 99, Count: 2})
	require.NotNil(t, f.ctrl.Profile())
	require.Equal(t, recsBefore, f.recs.count())
}

func TestInvalidation_WithoutProfileDoesNothing(t *testing.T) {
	f := newFixture(0)
	f.ctrl.OnFavoritesChanged(favorites.Change{Op: favorites.OpAdd, Count: 1})
	require.Zero(t, f.recs.count())
}

func TestInvalidation_AnyMutationSequenceClearsProfile(t *testing.T) {
	sequences := map[string]func(s *favorites.Store){
		"add":        func(s *favorites.Store) { s.Add(models.MediaItem{ID: 10, Title: "X"}) },
		"remove":     func(s *favorites.Store) { s.Remove(1) },
		"add-remove": func(s *favorites.Store) { s.Add(models.MediaItem{ID: 10, Title: "X"}); s.Remove(10) },
		"remove-add": func(s *favorites.Store) { s.Remove(2); s.Add(models.MediaItem{ID: 11, Title: "Y"}) },
	}
	for name, mutate := range sequences {
		t.Run(name, func(t *testing.T) {
			store := favorites.New()
			store.Load(items("A", "B"))
			f := newFixture(store.Count())
			store.Subscribe(f.ctrl.OnFavoritesChanged)
			require.NoError(t, f.ctrl.CreateProfile(context.Background(), store.List()))

			mutate(store)
			require.Nil(t, f.ctrl.Profile())
			require.Empty(t, f.ctrl.ProfileID())
		})
	}
}

func TestInvalidation_NotificationsStayOrderedUnderConcurrency(t *testing.T) {
	store := favorites.New()
	store.Load(items("A", "B"))
	f := newFixture(store.Count())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.Subscribe(func(favorites.Change) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})
	store.Subscribe(f.ctrl.OnFavoritesChanged)

	addDone := make(chan struct{})
	go func() {
		defer close(addDone)
		store.Add(models.MediaItem{ID: 3, Title: "C"})
	}()
	<-entered

	removeDone := make(chan struct{})
	go func() {
		defer close(removeDone)
		store.Remove(3)
	}()

	close(release)
	<-addDone
	<-removeDone
	require.Equal(t, 2, store.Count())

	require.NoError(t, f.ctrl.CreateProfile(context.Background(), store.List()))
	require.NotNil(t, f.ctrl.Profile())

	store.Add(models.MediaItem{ID: 4, Title: "D"})
	require.Nil(t, f.ctrl.Profile())
}

func TestRestoreFromSession_LastWins(t *testing.T) {
	f := newFixture(0)
	p1 := &models.Profile{MoviePreferences: "first"}
	p2 := &models.Profile{MoviePreferences: "second"}
	f.backend.listed = []models.StoredProfile{{ProfileID: "p-1", Profile: p1}, {ProfileID: "p-2", Profile: p2}}

	f.ctrl.RestoreFromSession(context.Background())
	require.Equal(t, "p-2", f.ctrl.ProfileID())
	require.True(t, p2.Equal(f.ctrl.Profile()))
	require.Zero(t, f.recs.count())
}

func TestRestoreFromSession_EmptyAndFailureAreQuiet(t *testing.T) {
	f := newFixture(0)
	f.ctrl.RestoreFromSession(context.Background())
	require.Nil(t, f.ctrl.Profile())

	f.backend.listErr = errors.New("connection refused")
	f.ctrl.RestoreFromSession(context.Background())
	require.Nil(t, f.ctrl.Profile())
	require.Equal(t, 2, f.backend.listCalls)
}

func TestRestoreFromSession_LocalProfileWins(t *testing.T) {
	f := newFixture(2)
	f.backend.listed = []models.StoredProfile{{ProfileID: "p-old", Profile: &models.Profile{MoviePreferences: "old"}}}
	f.backend.listGate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.ctrl.RestoreFromSession(context.Background())
	}()
	require.Equal(t, "list", <-f.backend.started)

	require.NoError(t, f.ctrl.CreateProfile(context.Background(), items("A", "B")))
	close(f.backend.listGate)
	<-done

	require.Equal(t, "p-1", f.ctrl.ProfileID())
	require.True(t, sampleProfile().Equal(f.ctrl.Profile()))
}

func TestRestoreFromSession_DoesNotResurrectInvalidatedProfile(t *testing.T) {
	f := withProfile(t)
	f.backend.listed = []models.StoredProfile{{ProfileID: "p-old", Profile: &models.Profile{}}}
	f.backend.listGate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.ctrl.RestoreFromSession(context.Background())
	}()
	<-f.backend.started

	f.ctrl.OnFavoritesChanged(favorites.Change{Op: favorites.OpAdd, Count: 3})
	close(f.backend.listGate)
	<-done

	require.Nil(t, f.ctrl.Profile())
}

func TestProfileAccessorsReturnCopies(t *testing.T) {
	f := withProfile(t)
	p := f.ctrl.Profile()
	p.FavoriteGenres[0] = "mutated"
	require.Equal(t, "Drama", f.ctrl.Profile().FavoriteGenres[0])

	require.NoError(t, f.ctrl.StartEdit())
	d := f.ctrl.Draft()
	d.MoviePreferences = "mutated"
	require.Equal(t, "Practical effects", f.ctrl.Draft().MoviePreferences)
}
