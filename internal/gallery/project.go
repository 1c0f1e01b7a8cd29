package gallery

import (
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/galerija/internal/model"
)

// SortKey selects the ordering of a projection.
type SortKey int

const (
	// SortDefault keeps the order of the cached list.
	SortDefault SortKey = iota
	SortPriceAsc
	SortPriceDesc
	SortTitle
)

var sortNames = map[SortKey]string{
	SortDefault:   "default",
	SortPriceAsc:  "price-asc",
	SortPriceDesc: "price-desc",
	SortTitle:     "title",
}

func (k SortKey) String() string {
	if name, ok := sortNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SortKey(%d)", int(k))
}

// ParseSortKey accepts the names printed by SortKey.String.
func ParseSortKey(s string) (SortKey, error) {
	for k, name := range sortNames {
		if name == s {
			return k, nil
		}
	}
	return SortDefault, fmt.Errorf("unknown sort %q", s)
}

// AllMediums is the medium filter value that matches every painting.
const AllMediums = "all"

// Criteria describes a filtered and sorted view of the collection.
type Criteria struct {
	Search        string
	Medium        string // "" or AllMediums for no filter
	FavoritesOnly bool
	Sort          SortKey
}

// Project filters and sorts cache according to c. It does not modify its
// inputs and returns the same result for the same arguments.
func Project(cache []model.Painting, favorites map[string]bool, c Criteria) []model.Painting {
	search := strings.ToLower(strings.TrimSpace(c.Search))

	out := make([]model.Painting, 0, len(cache))
	for _, p := range cache {
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		if c.Medium != "" && c.Medium != AllMediums && p.Medium != c.Medium {
			continue
		}
		if c.FavoritesOnly && !favorites[p.ID] {
			continue
		}
		out = append(out, p)
	}

	switch c.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b model.Painting) int {
			return cmpInt(PriceValue(a.Price), PriceValue(b.Price))
		})
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b model.Painting) int {
			return cmpInt(PriceValue(b.Price), PriceValue(a.Price))
		})
	case SortTitle:
		slices.SortStableFunc(out, func(a, b model.Painting) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	}
	return out
}

func matchesSearch(p model.Painting, needle string) bool {
	return strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Medium), needle) ||
		strings.Contains(strings.ToLower(p.Notes), needle)
}

// PriceValue extracts the sort key of a free-form price string: the first
// run of digits, with "," thousands separators inside that run skipped.
// Decimals and any later numbers are ignored, so "$1,200.50" is 1200 and
// "2 for $300" is 2. This is neither a plain leading-digit read ("$1,200"
// would be 1) nor a concatenation of every digit ("$1,200.50" would be
// 120050). Strings without digits are worth 0.
func PriceValue(price string) int64 {
	var v int64
	started := false
	for _, r := range price {
		switch {
		case r >= '0' && r <= '9':
			started = true
			if v > (1<<62)/10 {
				return v
			}
			v = v*10 + int64(r-'0')
		case r == ',' && started:
		case started:
			return v
		}
	}
	return v
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
