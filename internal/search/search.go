// Package search holds the current query and its results.
package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/metrics"
	"github.com/handsomefox/movie-taste/internal/models"
)

// Catalog looks up candidate items for a query.
type Catalog interface {
	Search(ctx context.Context, query string) ([]models.MediaItem, error)
}

type Controller struct {
	catalog Catalog
	log     *slog.Logger

	mu      sync.Mutex
	query   string
	results []models.MediaItem
	seq     uint64
	pending bool
}

func New(catalog Catalog, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{catalog: catalog, log: log.With(slog.String("component", "search"))}
}

// Search issues one catalog lookup. A blank query is a no-op. Only the
// response of the most recently issued search is applied; on failure the
// previous results are kept.
func (c *Controller) Search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.query = query
	c.pending = true
	c.mu.Unlock()

	items, err := c.catalog.Search(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		metrics.StaleResponses.WithLabelValues("search").Inc()
		c.log.Debug("discarding stale search response", slog.String("query", query))
		return nil
	}
	c.pending = false
	if err != nil {
		c.log.Error("search failed", slog.String("query", query), logger.Error(err))
		return models.Transport("search", err)
	}
	if items == nil {
		items = []models.MediaItem{}
	}
	c.results = items
	return nil
}

// Reset clears the query and results and drops any in-flight response.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.query = ""
	c.results = nil
	c.pending = false
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller) Results() []models.MediaItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.results)
}

// Pending reports whether the latest search has not completed yet.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
