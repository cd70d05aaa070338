// Package store provides SQLite persistence for favorites and session settings.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/handsomefox/movie-taste/internal/models"

	_ "modernc.org/sqlite"
)

const settingSessionID = "session_id"

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

type Favorite struct {
	bun.BaseModel `bun:"table:favorites,alias:f"`

	TMDBID      int64            `bun:"tmdb_id,pk"`
	Position    int64            `bun:"position,notnull"`
	MediaType   string           `bun:"media_type,notnull"`
	Title       sql.Null[string] `bun:"title,nullzero"`
	Name        sql.Null[string] `bun:"name,nullzero"`
	PosterPath  sql.Null[string] `bun:"poster_path,nullzero"`
	ReleaseDate sql.Null[string] `bun:"release_date,nullzero"`
	CreatedAt   string           `bun:"created_at,notnull"`
}

type setting struct {
	bun.BaseModel `bun:"table:settings,alias:st"`

	Key       string `bun:"key,pk"`
	Value     string `bun:"value,notnull"`
	UpdatedAt string `bun:"updated_at,notnull"`
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("DB_PATH is required")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers for SQLite.
	sqldb.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := initSchema(ctx, sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("init schema: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS favorites (
	tmdb_id INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	media_type TEXT NOT NULL,
	title TEXT,
	name TEXT,
	poster_path TEXT,
	release_date TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_favorites_position ON favorites(position);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func nullString(v string) sql.Null[string] {
	v = strings.TrimSpace(v)
	return sql.Null[string]{V: v, Valid: v != ""}
}

// UpsertFavorite appends item to the end of the persisted favorites. An item
// that is already stored keeps its position and has its metadata refreshed.
func (s *Store) UpsertFavorite(ctx context.Context, item models.MediaItem) error {
	if !item.HasID() {
		return errors.New("favorite without id")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var next int64
		err := tx.NewSelect().
			Table("favorites").
			ColumnExpr("COALESCE(MAX(position), 0) + 1").
			Scan(ctx, &next)
		if err != nil {
			return err
		}

		fav := Favorite{
			TMDBID:      item.ID,
			Position:    next,
			MediaType:   string(item.MediaType),
			Title:       nullString(item.Title),
			Name:        nullString(item.Name),
			PosterPath:  nullString(item.PosterPath),
			ReleaseDate: nullString(item.ReleaseDate),
			CreatedAt:   now,
		}
		_, err = tx.NewInsert().
			Model(&fav).
			On("CONFLICT (tmdb_id) DO UPDATE").
			Set("media_type = EXCLUDED.media_type").
			Set("title = EXCLUDED.title").
			Set("name = EXCLUDED.name").
			Set("poster_path = EXCLUDED.poster_path").
			Set("release_date = EXCLUDED.release_date").
			Exec(ctx)
		return err
	})
}

func (s *Store) DeleteFavorite(ctx context.Context, tmdbID int64) error {
	res, err := s.db.NewDelete().
		Table("favorites").
		Where("tmdb_id = ?", tmdbID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

func expectRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListFavorites returns the stored favorites in insertion order.
func (s *Store) ListFavorites(ctx context.Context) ([]models.MediaItem, error) {
	var rows []Favorite
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.MediaItem, 0, len(rows))
	for _, r := range rows {
		mt, ok := models.ParseMediaType(r.MediaType)
		if !ok {
			mt = models.MediaMovie
		}
		out = append(out, models.MediaItem{
			ID:          r.TMDBID,
			Title:       r.Title.V,
			Name:        r.Name.V,
			MediaType:   mt,
			PosterPath:  r.PosterPath.V,
			ReleaseDate: r.ReleaseDate.V,
		})
	}
	return out, nil
}

// SessionID returns the persisted session identifier, generating and storing
// one on first use.
func (s *Store) SessionID(ctx context.Context) (string, error) {
	var id string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var st setting
		err := tx.NewSelect().
			Model(&st).
			Where("key = ?", settingSessionID).
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil && st.Value != "":
			id = st.Value
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}

		st = setting{
			Key:       settingSessionID,
			Value:     uuid.NewString(),
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := tx.NewInsert().
			Model(&st).
			On("CONFLICT (key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return err
		}
		id = st.Value
		return nil
	})
	return id, err
}
