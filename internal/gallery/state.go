// Package gallery holds the client side view of the collection: the cached
// painting list, favorites, and the comparison selection.
package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/erazemk/galerija/internal/model"
)

// MaxCompare is the size limit of the comparison selection.
const MaxCompare = 3

// Lister fetches the canonical painting list.
type Lister interface {
	List(ctx context.Context) ([]model.Painting, error)
}

// State is the client's materialized view of the collection. It is safe for
// concurrent use.
type State struct {
	lister   Lister
	favStore FavoritesStore
	logger   *slog.Logger

	mu        sync.RWMutex
	cache     []model.Painting
	favorites map[string]bool
	compare   []model.Painting
}

// NewState creates a State and loads the stored favorites. A nil store keeps
// favorites in memory.
func NewState(lister Lister, favStore FavoritesStore, logger *slog.Logger) (*State, error) {
	if favStore == nil {
		favStore = &MemoryStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ids, err := favStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	favorites := make(map[string]bool, len(ids))
	for _, id := range ids {
		favorites[id] = true
	}

	return &State{
		lister:    lister,
		favStore:  favStore,
		logger:    logger.With("component", "gallery"),
		cache:     []model.Painting{},
		favorites: favorites,
	}, nil
}

// Refresh replaces the cache with the server list. On failure the previous
// cache stays in place and the error is returned.
func (s *State) Refresh(ctx context.Context) error {
	list, err := s.lister.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "refresh failed, keeping cached list", "error", err)
		return fmt.Errorf("refreshing paintings: %w", err)
	}
	s.Replace(list)
	return nil
}

// Paintings returns a copy of the cached list.
func (s *State) Paintings() []model.Painting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cache)
}

// Replace swaps the cached list for a copy of list.
func (s *State) Replace(list []model.Painting) {
	cp := slices.Clone(list)
	if cp == nil {
		cp = []model.Painting{}
	}
	s.mu.Lock()
	s.cache = cp
	s.mu.Unlock()
}

// Project applies c to the current cache.
func (s *State) Project(c Criteria) []model.Painting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Project(s.cache, s.favorites, c)
}

// Mediums returns AllMediums followed by the distinct mediums of the cache
// in list order.
func (s *State) Mediums() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{AllMediums}
	seen := map[string]bool{}
	for _, p := range s.cache {
		if p.Medium == "" || seen[p.Medium] {
			continue
		}
		seen[p.Medium] = true
		out = append(out, p.Medium)
	}
	return out
}

// ToggleFavorite flips id in the favorites set and persists the set. It
// reports whether id is now a favorite. If saving fails the change is undone.
func (s *State) ToggleFavorite(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := !s.favorites[id]
	if now {
		s.favorites[id] = true
	} else {
		delete(s.favorites, id)
	}

	if err := s.favStore.Save(slices.Sorted(maps.Keys(s.favorites))); err != nil {
		if now {
			delete(s.favorites, id)
		} else {
			s.favorites[id] = true
		}
		return !now, fmt.Errorf("saving favorites: %w", err)
	}
	return now, nil
}

// IsFavorite reports whether id is a favorite.
func (s *State) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites[id]
}

// Favorites returns the favorite ids, sorted.
func (s *State) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.favorites))
}

// ToggleCompare adds p to the comparison selection or removes it if already
// selected. A fourth painting is refused. It reports whether p is selected
// afterwards.
func (s *State) ToggleCompare(p model.Painting) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.IndexFunc(s.compare, func(c model.Painting) bool { return c.ID == p.ID }); i >= 0 {
		s.compare = slices.Delete(s.compare, i, i+1)
		return false
	}
	if len(s.compare) >= MaxCompare {
		return false
	}
	s.compare = append(s.compare, p)
	return true
}

// Comparison returns the selected paintings in selection order.
func (s *State) Comparison() []model.Painting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.compare)
}

// ClearComparison empties the comparison selection.
func (s *State) ClearComparison() {
	s.mu.Lock()
	s.compare = nil
	s.mu.Unlock()
}
