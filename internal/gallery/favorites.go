package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// FavoritesStore persists the favorites set between runs.
type FavoritesStore interface {
	Load() ([]string, error)
	Save(ids []string) error
}

// FileStore keeps favorites as a JSON array in a file.
type FileStore struct {
	Path string
}

// Load returns the stored ids. A missing file is an empty set.
func (s FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading favorites: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing favorites: %w", err)
	}
	return ids, nil
}

// Save replaces the stored ids.
func (s FileStore) Save(ids []string) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []string{}
	}

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("encoding favorites: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating favorites directory: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing favorites: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing favorites: %w", err)
	}
	return nil
}

// MemoryStore keeps favorites in memory only.
type MemoryStore struct {
	ids []string
}

func (s *MemoryStore) Load() ([]string, error) { return slices.Clone(s.ids), nil }

func (s *MemoryStore) Save(ids []string) error {
	s.ids = slices.Clone(ids)
	return nil
}
