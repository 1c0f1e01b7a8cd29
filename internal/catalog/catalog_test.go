package catalog

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/erazemk/galerija/internal/auth"
	"github.com/erazemk/galerija/internal/db"
	"github.com/erazemk/galerija/internal/model"
	"github.com/erazemk/galerija/internal/ordering"
)

var (
	editor = &auth.Claims{UserID: 1, Username: "artist", Role: model.RoleEditor}
	viewer = &auth.Claims{UserID: 2, Username: "guest", Role: model.RoleViewer}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(db.NewTestDB(t), auth.RoleAuthorizer{Minimum: model.RoleEditor}, nil)
}

func str(s string) *string { return &s }

func fields(title string) model.PaintingFields {
	return model.PaintingFields{
		Title:      str(title),
		Dimensions: str("1x1"),
		Medium:     str("Oil"),
		Price:      str("$1"),
		Image:      str("u-" + title),
	}
}

func mustCreate(t *testing.T, s *Service, title string) *model.Painting {
	t.Helper()
	p, err := s.Create(context.Background(), fields(title), editor)
	if err != nil {
		t.Fatalf("Create %s: %v", title, err)
	}
	return p
}

func TestCreateIntoEmptyCollection(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, fields("A"), editor); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 painting, got %d", len(list))
	}
	if list[0].Order != 0 {
		t.Errorf("sole painting should have order 0, got %d", list[0].Order)
	}
}

func TestCreateIsUniqueMinimum(t *testing.T) {
	s := newTestService(t)
	mustCreate(t, s, "A")
	mustCreate(t, s, "B")
	c := mustCreate(t, s, "C")

	list, _ := s.List(context.Background())
	for _, p := range list {
		if p.ID != c.ID && p.Order <= c.Order {
			t.Errorf("%s has order %d, not above new painting's %d", p.Title, p.Order, c.Order)
		}
	}
	if list[0].ID != c.ID {
		t.Errorf("expected newest painting first, got %s", list[0].Title)
	}
}

func TestCreateMissingPrice(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	mustCreate(t, s, "existing")

	f := fields("A")
	f.Price = nil
	_, err := s.Create(ctx, f, editor)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "price" {
		t.Errorf("expected field price, got %q", verr.Field)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is(err, ErrValidation)")
	}

	list, _ := s.List(ctx)
	if len(list) != 1 {
		t.Errorf("expected no new painting persisted, got %d paintings", len(list))
	}
}

func TestMutationsRequireAuthorization(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, s, "A")

	if _, err := s.Create(ctx, fields("B"), viewer); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("create as viewer: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.Create(ctx, fields("B"), nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("create anonymously: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.Update(ctx, p.ID, fields("B"), viewer); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("update: expected ErrUnauthorized, got %v", err)
	}
	if err := s.Delete(ctx, p.ID, viewer); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("delete: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.Reorder(ctx, []model.OrderUpdate{{ID: p.ID, Order: 3}}, viewer); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("reorder: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.Normalize(ctx, viewer); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("normalize: expected ErrUnauthorized, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestService(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, s, "A")

	updated, err := s.Update(ctx, p.ID, model.PaintingFields{Notes: str("varnished")}, editor)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Notes != "varnished" || updated.Title != "A" {
		t.Errorf("unexpected result %+v", updated)
	}

	if _, err := s.Update(ctx, p.ID, model.PaintingFields{Title: str("")}, editor); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for emptied title, got %v", err)
	}
	if _, err := s.Update(ctx, "missing", model.PaintingFields{Notes: str("x")}, editor); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, s, "A")

	if err := s.Delete(ctx, p.ID, editor); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, p.ID, editor); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMoveDownViaReorder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	z := mustCreate(t, s, "Z")
	y := mustCreate(t, s, "Y")
	x := mustCreate(t, s, "X")

	list, _ := s.List(ctx)
	if got := []string{list[0].ID, list[1].ID, list[2].ID}; !slices.Equal(got, []string{x.ID, y.ID, z.ID}) {
		t.Fatalf("unexpected starting order")
	}

	_, batch, err := ordering.Swapped(list, 0, 1)
	if err != nil {
		t.Fatalf("Swapped: %v", err)
	}
	if _, err := s.Reorder(ctx, batch, editor); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	list, _ = s.List(ctx)
	want := []struct {
		id    string
		order int
	}{{y.ID, 0}, {x.ID, 1}, {z.ID, 2}}
	for i, w := range want {
		if list[i].ID != w.id || list[i].Order != w.order {
			t.Errorf("position %d: got %s/%d, want %s/%d", i, list[i].Title, list[i].Order, w.id, w.order)
		}
	}
}

func TestReorderWithUnknownIDIsAllOrNothing(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	y := mustCreate(t, s, "Y")

	_, err := s.Reorder(ctx, []model.OrderUpdate{
		{ID: y.ID, Order: 5},
		{ID: "nonexistent", Order: 6},
	}, editor)

	var berr *BatchError
	if !errors.As(err, &berr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if !slices.Equal(berr.Failed, []string{"nonexistent"}) {
		t.Errorf("expected failure for nonexistent, got %v", berr.Failed)
	}
	if !errors.Is(err, ErrPartialBatch) {
		t.Error("expected errors.Is(err, ErrPartialBatch)")
	}

	got, _ := s.Get(ctx, y.ID)
	if got.Order != 0 {
		t.Errorf("expected Y's order unchanged, got %d", got.Order)
	}
}

func TestReorderRejectsBadBatches(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := mustCreate(t, s, "A")

	if _, err := s.Reorder(ctx, nil, editor); !errors.Is(err, ErrValidation) {
		t.Errorf("empty batch: expected ErrValidation, got %v", err)
	}
	dup := []model.OrderUpdate{{ID: p.ID, Order: 1}, {ID: p.ID, Order: 2}}
	if _, err := s.Reorder(ctx, dup, editor); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate ids: expected ErrValidation, got %v", err)
	}
}

func TestListSortedWithTiesNewestFirst(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	var created []*model.Painting
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		created = append(created, mustCreate(t, s, title))
	}

	// Collapse some orders into ties.
	_, err := s.Reorder(ctx, []model.OrderUpdate{
		{ID: created[0].ID, Order: 1},
		{ID: created[1].ID, Order: 1},
		{ID: created[2].ID, Order: 0},
		{ID: created[3].ID, Order: 1},
	}, editor)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	list, _ := s.List(ctx)
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.Order > cur.Order {
			t.Errorf("order not ascending at %d: %d > %d", i, prev.Order, cur.Order)
		}
		if prev.Order == cur.Order && prev.CreatedAt.Before(cur.CreatedAt) {
			t.Errorf("tie at %d not broken newest first", i)
		}
	}
}

func TestNormalize(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, s, "A")
	b := mustCreate(t, s, "B")
	s.Delete(ctx, b.ID, editor)
	mustCreate(t, s, "C")

	// Orders are now [C:0, A:2].
	first, err := s.Normalize(ctx, editor)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := s.Normalize(ctx, editor)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if !slices.Equal(first, second) {
		t.Errorf("normalize not idempotent: %v then %v", first, second)
	}

	got, _ := s.Get(ctx, a.ID)
	if got.Order != 1 {
		t.Errorf("expected A renumbered to 1, got %d", got.Order)
	}
}
