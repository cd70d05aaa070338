// Package recommend fetches recommendations for the committed taste profile.
package recommend

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/metrics"
	"github.com/handsomefox/movie-taste/internal/models"
)

type Backend interface {
	RecommendFromProfile(ctx context.Context, profile *models.Profile, customQuery string) ([]models.Recommendation, error)
}

// Engine owns the current recommendations and a busy flag. Busy lets callers
// avoid re-triggering; overlapping requests are still resolved by sequence,
// so only the latest one is applied.
type Engine struct {
	backend Backend
	log     *slog.Logger

	mu    sync.Mutex
	recs  []models.Recommendation
	busy  bool
	seq   uint64
	query string
	// epoch changes on every Clear.
	epoch uint64
}

func New(backend Backend, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{backend: backend, log: log.With(slog.String("component", "recommend"))}
}

// RequestForProfile asks the backend for recommendations derived from
// profile. On success the previous recommendations are replaced wholesale;
// on failure they are kept.
func (e *Engine) RequestForProfile(ctx context.Context, profile *models.Profile, customQuery string) error {
	return e.RequestForProfileAt(ctx, e.Epoch(), profile, customQuery)
}

// Epoch identifies the recommendations state between two Clear calls.
func (e *Engine) Epoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// RequestForProfileAt is RequestForProfile for a profile read at epoch. If the
// engine was cleared since then the profile is no longer current and the
// request is rejected without reaching the backend.
func (e *Engine) RequestForProfileAt(ctx context.Context, epoch uint64, profile *models.Profile, customQuery string) error {
	if profile == nil {
		return models.Invalid("request recommendations", "no active profile")
	}
	snapshot := profile.Clone()

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("recommend").Inc()
		return models.Stale("request recommendations", "the profile changed before the request started")
	}
	e.seq++
	seq := e.seq
	e.busy = true
	e.mu.Unlock()

	recs, err := e.backend.RecommendFromProfile(ctx, snapshot, customQuery)

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seq {
		metrics.StaleResponses.WithLabelValues("recommend").Inc()
		e.log.Debug("discarding stale recommendations")
		return nil
	}
	e.busy = false
	if err != nil {
		e.log.Error("recommendation request failed", logger.Error(err))
		return models.Transport("request recommendations", err)
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}
	e.recs = recs
	e.query = customQuery
	e.log.Info("recommendations updated", slog.Int("count", len(recs)))
	return nil
}

// Clear drops the recommendations and any in-flight response.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.epoch++
	e.recs = nil
	e.busy = false
	e.query = ""
}

func (e *Engine) Recommendations() []models.Recommendation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.recs)
}

func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// CustomQuery is the free-text query that produced the current
// recommendations.
func (e *Engine) CustomQuery() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}
