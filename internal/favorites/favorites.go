// Package favorites keeps the user's curated, deduplicated and
// insertion-ordered set of media items.
package favorites

import (
	"slices"
	"sync"

	"github.com/handsomefox/movie-taste/internal/models"
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Change describes one mutation. Count is the number of favorites after it
// was applied; Removed is false when Remove found nothing to drop.
type Change struct {
	Op      Op
	Item    models.MediaItem
	ID      int64
	Count   int
	Removed bool
}

type Listener func(Change)

type Store struct {
	// notifyMu serializes mutations together with their notifications, so
	// listeners observe Changes in mutation order. It is taken before mu.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	items     []models.MediaItem
	listeners []Listener
}

func New() *Store {
	return &Store{}
}

// Subscribe registers fn. Listeners run synchronously in subscription order,
// outside the store lock, so they may read the store. They must not mutate
// it.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Load seeds the store from persisted favorites without notifying listeners.
func (s *Store) Load(items []models.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
	for _, item := range items {
		if !item.HasID() || s.indexLocked(item.ID) >= 0 {
			continue
		}
		s.items = append(s.items, item)
	}
}

// Add appends item unless it has no ID or is already present. It reports
// whether the item was appended.
func (s *Store) Add(item models.MediaItem) bool {
	if !item.HasID() {
		return false
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.indexLocked(item.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items, item)
	change := Change{Op: OpAdd, Item: item, ID: item.ID, Count: len(s.items)}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	notify(listeners, change)
	return true
}

// Remove drops the favorite with the given id. Listeners are notified on
// every call, even when nothing matched.
func (s *Store) Remove(id int64) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	change := Change{Op: OpRemove, ID: id}
	if i := s.indexLocked(id); i >= 0 {
		change.Item = s.items[i]
		change.Removed = true
		s.items = slices.Delete(s.items, i, i+1)
	}
	change.Count = len(s.items)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	notify(listeners, change)
	return change.Removed
}

// List returns the favorites in insertion order. The slice is a copy.
func (s *Store) List() []models.MediaItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id) >= 0
}

func (s *Store) indexLocked(id int64) int {
	return slices.IndexFunc(s.items, func(m models.MediaItem) bool { return m.ID == id })
}

func notify(listeners []Listener, change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}
