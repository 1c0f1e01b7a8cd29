// Package ordering computes order values for paintings. New paintings are
// prepended: they receive order 0 and every existing painting shifts down by
// one. Lower order sorts first; equal orders fall back to newest first.
package ordering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/erazemk/galerija/internal/model"
)

// ErrTiedOrder is returned when two paintings share an order value, so
// exchanging them would not change their relative position.
var ErrTiedOrder = errors.New("paintings share the same order value")

// OrderOnInsert returns the order for a new painting and the amount every
// existing painting's order must be shifted by.
func OrderOnInsert(existingCount int) (order, shift int) {
	if existingCount == 0 {
		return 0, 0
	}
	return 0, 1
}

// Less reports whether a sorts before b in display order.
func Less(a, b model.Painting) bool {
	return Compare(a, b) < 0
}

// Compare orders by order ascending, then created time descending, then id.
func Compare(a, b model.Painting) int {
	switch {
	case a.Order != b.Order:
		if a.Order < b.Order {
			return -1
		}
		return 1
	case !a.CreatedAt.Equal(b.CreatedAt):
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Sort sorts list in place into display order.
func Sort(list []model.Painting) {
	slices.SortStableFunc(list, Compare)
}

// SwapAdjacent exchanges the order values of a and b.
func SwapAdjacent(a, b model.Painting) (model.Painting, model.Painting, error) {
	if a.Order == b.Order {
		return a, b, ErrTiedOrder
	}
	a.Order, b.Order = b.Order, a.Order
	return a, b, nil
}

// Normalize assigns 0, 1, 2, ... to list in its current sequence.
func Normalize(list []model.Painting) []model.OrderUpdate {
	updates := make([]model.OrderUpdate, len(list))
	for i, p := range list {
		updates[i] = model.OrderUpdate{ID: p.ID, Order: i}
	}
	return updates
}

// IsDense reports whether list carries exactly the orders 0..n-1 in sequence.
func IsDense(list []model.Painting) bool {
	for i, p := range list {
		if p.Order != i {
			return false
		}
	}
	return true
}

// Swapped moves the painting at index i to the adjacent index j and returns
// the resulting list together with the order updates to persist. When the
// exchange alone yields a list in display order the batch has two entries.
// Otherwise, as when the pair is tied or a neighbour shares the order one of
// them receives, the whole list is renumbered with the move applied, so the
// returned sequence is exactly what a sorted read of the stored orders gives.
// The input slice is not modified.
func Swapped(list []model.Painting, i, j int) ([]model.Painting, []model.OrderUpdate, error) {
	if i < 0 || i >= len(list) || j < 0 || j >= len(list) {
		return nil, nil, fmt.Errorf("index out of range: %d, %d (len %d)", i, j, len(list))
	}
	if i-j != 1 && j-i != 1 {
		return nil, nil, fmt.Errorf("indexes %d and %d are not adjacent", i, j)
	}

	out := slices.Clone(list)

	a, b, err := SwapAdjacent(out[i], out[j])
	if err == nil {
		out[i], out[j] = b, a
	}
	if err == nil && slices.IsSortedFunc(out, Compare) {
		return out, []model.OrderUpdate{
			{ID: out[min(i, j)].ID, Order: out[min(i, j)].Order},
			{ID: out[max(i, j)].ID, Order: out[max(i, j)].Order},
		}, nil
	}

	out = slices.Clone(list)
	out[i], out[j] = out[j], out[i]
	updates := Normalize(out)
	for k := range out {
		out[k].Order = updates[k].Order
	}
	return out, updates, nil
}
