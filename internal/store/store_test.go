package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/handsomefox/movie-taste/internal/models"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "taste.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestFavorites_RoundTripInOrder(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 3, Title: "Alien", MediaType: models.MediaMovie, ReleaseDate: "1979-05-25"}))
	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 1, Name: "Dark", MediaType: models.MediaSeries, PosterPath: "https://img/dark.jpg"}))
	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 2, Title: "Heat", MediaType: models.MediaMovie}))

	got, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.MediaItem{
		{ID: 3, Title: "Alien", MediaType: models.MediaMovie, ReleaseDate: "1979-05-25"},
		{ID: 1, Name: "Dark", MediaType: models.MediaSeries, PosterPath: "https://img/dark.jpg"},
		{ID: 2, Title: "Heat", MediaType: models.MediaMovie},
	}, got)
}

func TestUpsertFavorite_KeepsPosition(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 1, Title: "A", MediaType: models.MediaMovie}))
	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 2, Title: "B", MediaType: models.MediaMovie}))
	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 1, Title: "A (1999)", MediaType: models.MediaMovie}))

	got, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "A (1999)", got[0].Title)
	require.Equal(t, "B", got[1].Title)
}

func TestUpsertFavorite_RejectsZeroID(t *testing.T) {
	s, _ := openTemp(t)
	require.Error(t, s.UpsertFavorite(context.Background(), models.MediaItem{Title: "No id"}))
}

func TestDeleteFavorite(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFavorite(ctx, models.MediaItem{ID: 1, Title: "A", MediaType: models.MediaMovie}))

	require.NoError(t, s.DeleteFavorite(ctx, 1))
	require.ErrorIs(t, s.DeleteFavorite(ctx, 1), sql.ErrNoRows)

	got, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFavorites_SurviveReopen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	want := models.MediaItem{ID: 7, Title: "Stalker", MediaType: models.MediaMovie, ReleaseDate: "1979-05-25"}
	require.NoError(t, s.UpsertFavorite(ctx, want))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ListFavorites(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.MediaItem{want}, got)

	require.NoError(t, reopened.UpsertFavorite(ctx, models.MediaItem{ID: 8, Title: "Solaris", MediaType: models.MediaMovie}))
	got, err = reopened.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSessionID_StableAcrossReopen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()

	first, err := s.SessionID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	again, err := s.SessionID(ctx)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	afterReopen, err := reopened.SessionID(ctx)
	require.NoError(t, err)
	require.Equal(t, first, afterReopen)
}

func TestPing(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.Ping(context.Background()))
}
