// Package catalog is the only way painting records are read or changed.
// It validates input, checks authorization and keeps the order sequence
// consistent through the store.
package catalog

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/erazemk/galerija/internal/auth"
	"github.com/erazemk/galerija/internal/metrics"
	"github.com/erazemk/galerija/internal/model"
	"github.com/erazemk/galerija/internal/store"
)

// Authorizer decides whether a caller may mutate painting records.
type Authorizer interface {
	CanMutate(ctx context.Context, caller *auth.Claims) bool
}

// Service implements painting CRUD and ordering.
type Service struct {
	db    *sql.DB
	authz Authorizer
	log   *slog.Logger
}

// NewService creates a painting service. A nil logger uses slog.Default.
func NewService(db *sql.DB, authz Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, authz: authz, log: logger.With("component", "catalog")}
}

// List returns every painting in display order.
func (s *Service) List(ctx context.Context) ([]model.Painting, error) {
	list, err := store.ListPaintings(ctx, s.db)
	if err != nil {
		return nil, storageError("listing paintings", err)
	}
	return list, nil
}

// Get returns one painting.
func (s *Service) Get(ctx context.Context, id string) (*model.Painting, error) {
	p, err := store.GetPainting(ctx, s.db, id)
	if err != nil {
		return nil, storageError("getting painting", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// FindByImage returns the painting stored with the given image URL.
func (s *Service) FindByImage(ctx context.Context, image string) (*model.Painting, error) {
	p, err := store.FindPaintingByImage(ctx, s.db, image)
	if err != nil {
		return nil, storageError("finding painting", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// Create adds a painting at the top of the collection.
func (s *Service) Create(ctx context.Context, fields model.PaintingFields, caller *auth.Claims) (*model.Painting, error) {
	if err := s.authorize(ctx, "create", caller); err != nil {
		return nil, err
	}
	if missing := fields.MissingRequired(); missing != "" {
		metrics.PaintingOps.WithLabelValues("create", "invalid").Inc()
		return nil, &ValidationError{Field: missing}
	}

	p, err := store.CreatePainting(ctx, s.db, fields)
	if err != nil {
		metrics.PaintingOps.WithLabelValues("create", "error").Inc()
		return nil, storageError("creating painting", err)
	}

	metrics.PaintingOps.WithLabelValues("create", "ok").Inc()
	s.log.InfoContext(ctx, "painting created", "user", caller.Username, "id", p.ID, "title", p.Title)
	return p, nil
}

// Update merges the provided fields into an existing painting.
func (s *Service) Update(ctx context.Context, id string, fields model.PaintingFields, caller *auth.Claims) (*model.Painting, error) {
	if err := s.authorize(ctx, "update", caller); err != nil {
		return nil, err
	}
	if emptied := fields.EmptiedRequired(); emptied != "" {
		metrics.PaintingOps.WithLabelValues("update", "invalid").Inc()
		return nil, &ValidationError{Field: emptied, Message: "required field cannot be empty: " + emptied}
	}

	p, err := store.UpdatePainting(ctx, s.db, id, fields)
	if err != nil {
		metrics.PaintingOps.WithLabelValues("update", "error").Inc()
		return nil, storageError("updating painting", err)
	}
	if p == nil {
		metrics.PaintingOps.WithLabelValues("update", "not_found").Inc()
		return nil, ErrNotFound
	}

	metrics.PaintingOps.WithLabelValues("update", "ok").Inc()
	s.log.InfoContext(ctx, "painting updated", "user", caller.Username, "id", p.ID, "title", p.Title)
	return p, nil
}

// Delete permanently removes a painting. Remaining orders keep their gaps.
func (s *Service) Delete(ctx context.Context, id string, caller *auth.Claims) error {
	if err := s.authorize(ctx, "delete", caller); err != nil {
		return err
	}

	ok, err := store.DeletePainting(ctx, s.db, id)
	if err != nil {
		metrics.PaintingOps.WithLabelValues("delete", "error").Inc()
		return storageError("deleting painting", err)
	}
	if !ok {
		metrics.PaintingOps.WithLabelValues("delete", "not_found").Inc()
		return ErrNotFound
	}

	metrics.PaintingOps.WithLabelValues("delete", "ok").Inc()
	s.log.InfoContext(ctx, "painting deleted", "user", caller.Username, "id", id)
	return nil
}

// Reorder applies a batch of order updates. Either every update is applied
// or none is; a *BatchError lists the IDs that do not exist.
func (s *Service) Reorder(ctx context.Context, updates []model.OrderUpdate, caller *auth.Claims) ([]model.OrderUpdate, error) {
	if err := s.authorize(ctx, "reorder", caller); err != nil {
		return nil, err
	}
	if err := validateBatch(updates); err != nil {
		metrics.PaintingOps.WithLabelValues("reorder", "invalid").Inc()
		return nil, err
	}

	metrics.ReorderBatchSize.Observe(float64(len(updates)))

	missing, err := store.SetPaintingOrders(ctx, s.db, updates)
	if err != nil {
		metrics.PaintingOps.WithLabelValues("reorder", "error").Inc()
		return nil, storageError("reordering paintings", err)
	}
	if len(missing) > 0 {
		metrics.PaintingOps.WithLabelValues("reorder", "batch_failed").Inc()
		s.log.WarnContext(ctx, "reorder rejected", "user", caller.Username, "missing", missing)
		return nil, &BatchError{Failed: missing}
	}

	metrics.PaintingOps.WithLabelValues("reorder", "ok").Inc()
	s.log.InfoContext(ctx, "paintings reordered", "user", caller.Username, "count", len(updates))
	return updates, nil
}

// Normalize renumbers every painting 0..n-1 in display order.
func (s *Service) Normalize(ctx context.Context, caller *auth.Claims) ([]model.OrderUpdate, error) {
	if err := s.authorize(ctx, "normalize", caller); err != nil {
		return nil, err
	}

	updates, err := store.NormalizePaintingOrders(ctx, s.db)
	if err != nil {
		metrics.PaintingOps.WithLabelValues("normalize", "error").Inc()
		return nil, storageError("normalizing painting order", err)
	}
	if updates == nil {
		updates = []model.OrderUpdate{}
	}

	metrics.PaintingOps.WithLabelValues("normalize", "ok").Inc()
	s.log.InfoContext(ctx, "painting order normalized", "user", caller.Username, "count", len(updates))
	return updates, nil
}

func (s *Service) authorize(ctx context.Context, op string, caller *auth.Claims) error {
	if s.authz.CanMutate(ctx, caller) {
		return nil
	}
	metrics.PaintingOps.WithLabelValues(op, "unauthorized").Inc()
	username := ""
	if caller != nil {
		username = caller.Username
	}
	s.log.WarnContext(ctx, "painting mutation denied", "op", op, "user", username)
	return ErrUnauthorized
}

func validateBatch(updates []model.OrderUpdate) error {
	if len(updates) == 0 {
		return &ValidationError{Message: "reorder batch must not be empty"}
	}
	seen := make(map[string]bool, len(updates))
	for _, u := range updates {
		if u.ID == "" {
			return &ValidationError{Field: "id", Message: "every order update needs an id"}
		}
		if seen[u.ID] {
			return &ValidationError{Field: "id", Message: "duplicate id in reorder batch: " + u.ID}
		}
		seen[u.ID] = true
	}
	return nil
}
