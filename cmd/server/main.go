package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/httprate"

	"github.com/handsomefox/movie-taste/internal/app"
	"github.com/handsomefox/movie-taste/internal/backend"
	"github.com/handsomefox/movie-taste/internal/config"
	"github.com/handsomefox/movie-taste/internal/env"
	"github.com/handsomefox/movie-taste/internal/handlers"
	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/search"
	"github.com/handsomefox/movie-taste/internal/store"
	"github.com/handsomefox/movie-taste/internal/tmdb"

	_ "github.com/joho/godotenv/autoload"
)

const (
	restoreTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	slog.SetDefault(logger.New(slog.LevelInfo))
	if err := run(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	environment := env.Parse(cfg.Server.Environment)
	log := logger.NewWithWriter(os.Stderr, logger.ParseLevel(cfg.Log.Level), environment)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close DB", logger.Error(err))
		}
	}()

	sessionID, err := st.SessionID(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session id: %w", err)
	}
	favs, err := st.ListFavorites(ctx)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	be, err := backend.New(backend.Config{
		BaseURL:     cfg.Backend.URL,
		Token:       cfg.Backend.Token,
		SessionID:   sessionID,
		Timeout:     cfg.Backend.Timeout,
		MinInterval: cfg.Backend.RateInterval,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to init backend client: %w", err)
	}

	var catalog search.Catalog = be
	if cfg.Catalog.Source == config.CatalogTMDB {
		catalog = tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.APIReadToken,
			tmdb.WithImageBase(cfg.TMDB.ImageBase),
			tmdb.WithLanguage(cfg.TMDB.Language),
		)
	}

	taste := app.New(app.Config{
		Catalog:   catalog,
		Backend:   be,
		Repo:      st,
		Favorites: favs,
		Logger:    log,
	})

	go func() {
		rctx, cancel := context.WithTimeout(ctx, restoreTimeout)
		defer cancel()
		taste.RestoreSession(rctx)
	}()

	h, err := handlers.New(&handlers.Config{
		App: taste,
		Checks: map[string]handlers.Checker{
			"backend": be,
			"db":      st,
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(log, &httplog.Options{
		Level:         slog.LevelInfo,
		Schema:        httplog.SchemaECS,
		RecoverPanics: true,
		Skip: func(req *http.Request, respStatus int) bool {
			return req.URL.Path == "/healthz" || req.URL.Path == "/metrics"
		},
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimit, time.Minute))
	}
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Profile creation and recommendations wait on a language model.
		WriteTimeout: cfg.Backend.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			slog.String("addr", server.Addr),
			slog.String("backend", cfg.Backend.URL),
			slog.String("catalog", cfg.Catalog.Source),
			slog.Int("favorites", len(favs)))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
