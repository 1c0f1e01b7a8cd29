package gallery

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/erazemk/galerija/internal/model"
)

type fakeLister struct {
	list []model.Painting
	err  error
}

func (f *fakeLister) List(context.Context) ([]model.Painting, error) {
	return slices.Clone(f.list), f.err
}

type failingStore struct{}

func (failingStore) Load() ([]string, error) { return nil, nil }
func (failingStore) Save([]string) error { return errors.New("disk full") }

func sample() []model.Painting {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.Painting{
		{ID: "1", Title: "Sunset", Medium: "Oil", Price: "$2,000", Notes: "warm tones", Order: 0, CreatedAt: base},
		{ID: "2", Title: "harbor", Medium: "Watercolor", Price: "$450", Order: 1, CreatedAt: base},
		{ID: "3", Title: "Abstract", Medium: "Oil", Price: "Price on request", Order: 2, CreatedAt: base},
		{ID: "4", Title: "Meadow", Medium: "Acrylic", Price: "1200 EUR", Notes: "sunlit field", Order: 3, CreatedAt: base},
	}
}

func ids(list []model.Painting) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}

func TestPriceValue(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"$2,000", 2000},
		{"$450", 450},
		{"1200 EUR", 1200},
		{"€1.500", 1},
		{"$1,200.50", 1200},
		{"2 for $300", 2},
		{"1,5", 15},
		{"Price on request", 0},
		{"", 0},
		{"Sold", 0},
	}
	for _, tt := range tests {
		if got := PriceValue(tt.in); got != tt.want {
			t.Errorf("PriceValue(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProjectSorts(t *testing.T) {
	cache := sample()
	tests := []struct {
		sort SortKey
		want []string
	}{
		{SortDefault, []string{"1", "2", "3", "4"}},
		{SortPriceAsc, []string{"3", "2", "4", "1"}},
		{SortPriceDesc, []string{"1", "4", "2", "3"}},
		{SortTitle, []string{"3", "2", "4", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.sort.String(), func(t *testing.T) {
			got := ids(Project(cache, nil, Criteria{Sort: tt.sort}))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectFilters(t *testing.T) {
	cache := sample()
	favorites := map[string]bool{"2": true, "4": true}

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"search title case-insensitive", Criteria{Search: "HARBOR"}, []string{"2"}},
		{"search notes", Criteria{Search: "sun"}, []string{"1", "4"}},
		{"search medium", Criteria{Search: "water"}, []string{"2"}},
		{"medium", Criteria{Medium: "Oil"}, []string{"1", "3"}},
		{"all mediums", Criteria{Medium: AllMediums}, []string{"1", "2", "3", "4"}},
		{"favorites", Criteria{FavoritesOnly: true}, []string{"2", "4"}},
		{"combined", Criteria{FavoritesOnly: true, Sort: SortPriceDesc}, []string{"4", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Project(cache, favorites, tt.c))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectIsPure(t *testing.T) {
	cache := sample()
	before := slices.Clone(cache)
	c := Criteria{Search: "o", Sort: SortTitle}

	first := Project(cache, nil, c)
	second := Project(cache, nil, c)
	if !slices.Equal(ids(first), ids(second)) {
		t.Errorf("projection not deterministic: %v vs %v", ids(first), ids(second))
	}
	if !slices.Equal(ids(cache), ids(before)) {
		t.Error("projection modified its input")
	}
}

func TestParseSortKey(t *testing.T) {
	for _, k := range []SortKey{SortDefault, SortPriceAsc, SortPriceDesc, SortTitle} {
		got, err := ParseSortKey(k.String())
		if err != nil || got != k {
			t.Errorf("ParseSortKey(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseSortKey("random"); err == nil {
		t.Error("expected error for unknown sort")
	}
}

func TestRefreshKeepsCacheOnFailure(t *testing.T) {
	lister := &fakeLister{list: sample()}
	s, err := NewState(lister, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(s.Paintings()) != 4 {
		t.Fatalf("expected 4 paintings, got %d", len(s.Paintings()))
	}

	lister.err = errors.New("network down")
	lister.list = nil
	if err := s.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if len(s.Paintings()) != 4 {
		t.Errorf("expected stale cache kept, got %d paintings", len(s.Paintings()))
	}
}

func TestPaintingsReturnsCopy(t *testing.T) {
	s, _ := NewState(&fakeLister{}, nil, nil)
	s.Replace(sample())

	list := s.Paintings()
	list[0].Title = "changed"
	if s.Paintings()[0].Title != "Sunset" {
		t.Error("mutating the returned slice changed the cache")
	}
}

func TestFavoritesPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.json")
	s, err := NewState(&fakeLister{}, FileStore{Path: path}, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	on, err := s.ToggleFavorite("2")
	if err != nil || !on {
		t.Fatalf("ToggleFavorite: %v, %v", on, err)
	}
	s.ToggleFavorite("1")
	if off, _ := s.ToggleFavorite("1"); off {
		t.Error("expected second toggle to remove favorite")
	}

	reloaded, err := NewState(&fakeLister{}, FileStore{Path: path}, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if !slices.Equal(reloaded.Favorites(), []string{"2"}) {
		t.Errorf("expected favorites [2], got %v", reloaded.Favorites())
	}
	if !reloaded.IsFavorite("2") || reloaded.IsFavorite("1") {
		t.Error("unexpected favorite membership after reload")
	}
}

func TestToggleFavoriteSaveFailure(t *testing.T) {
	s, _ := NewState(&fakeLister{}, failingStore{}, nil)
	if _, err := s.ToggleFavorite("1"); err == nil {
		t.Fatal("expected save error")
	}
	if s.IsFavorite("1") {
		t.Error("favorite should be reverted when saving fails")
	}
}

func TestComparisonLimit(t *testing.T) {
	s, _ := NewState(&fakeLister{}, nil, nil)
	list := sample()

	for _, p := range list[:3] {
		if !s.ToggleCompare(p) {
			t.Fatalf("expected %s to be selected", p.ID)
		}
	}
	if s.ToggleCompare(list[3]) {
		t.Error("fourth painting should be refused")
	}
	if got := ids(s.Comparison()); !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("unexpected comparison %v", got)
	}

	if s.ToggleCompare(list[1]) {
		t.Error("toggling a selected painting should remove it")
	}
	if !s.ToggleCompare(list[3]) {
		t.Error("expected room after removal")
	}

	s.ClearComparison()
	if len(s.Comparison()) != 0 {
		t.Error("expected empty comparison")
	}
}

func TestMediums(t *testing.T) {
	s, _ := NewState(&fakeLister{}, nil, nil)
	s.Replace(sample())
	want := []string{AllMediums, "Oil", "Watercolor", "Acrylic"}
	if got := s.Mediums(); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
