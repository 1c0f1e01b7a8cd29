// Package dashboard drives painting edits from the admin dashboard. Every
// action is applied to the local list first and then confirmed with the
// server; a failed call restores the list exactly as it was.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/galerija/internal/catalog"
	"github.com/erazemk/galerija/internal/gallery"
	"github.com/erazemk/galerija/internal/model"
	"github.com/erazemk/galerija/internal/ordering"
)

var (
	// ErrBusy is returned when an action is started while another is in flight.
	ErrBusy = errors.New("another change is still in progress")
	// ErrStale is returned for moves after a failed reorder, until Refresh succeeds.
	ErrStale = errors.New("painting order may be out of sync, refresh first")
)

// PendingPrefix marks the ID of a painting that has not been confirmed yet.
const PendingPrefix = "pending-"

// Phase is the controller's position in an action's lifecycle.
type Phase int

const (
	Idle Phase = iota
	OptimisticallyApplied
	Reconciling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case OptimisticallyApplied:
		return "optimistically-applied"
	case Reconciling:
		return "reconciling"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Backend is the painting API used by the controller.
type Backend interface {
	gallery.Lister
	Create(ctx context.Context, fields model.PaintingFields) (*model.Painting, error)
	Update(ctx context.Context, id string, fields model.PaintingFields) (*model.Painting, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, updates []model.OrderUpdate) ([]model.OrderUpdate, error)
	Normalize(ctx context.Context) ([]model.OrderUpdate, error)
}

// Controller serializes dashboard actions over a gallery.State.
type Controller struct {
	backend Backend
	state   *gallery.State
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	phase   Phase
	stale   bool
	lastErr error
}

// New creates a controller. Each backend call is bounded by timeout when it
// is positive.
func New(backend Backend, state *gallery.State, timeout time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend: backend,
		state:   state,
		timeout: timeout,
		logger:  logger.With("component", "dashboard"),
	}
}

// Paintings returns the list as currently displayed, including optimistic
// changes still being confirmed.
func (c *Controller) Paintings() []model.Painting {
	return c.state.Paintings()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Stale reports whether a failed reorder left the order possibly out of sync.
func (c *Controller) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// LastError returns the error of the most recent failed action, or nil if
// the last action succeeded.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Refresh reloads the list from the server and clears the stale flag.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.begin(false); err != nil {
		return err
	}
	c.setPhase(Reconciling)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.state.Refresh(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = Idle
	c.lastErr = err
	if err == nil {
		c.stale = false
	}
	return err
}

// Add creates a painting. A placeholder is shown at the top of the list until
// the server answers.
func (c *Controller) Add(ctx context.Context, fields model.PaintingFields) (*model.Painting, error) {
	if missing := fields.MissingRequired(); missing != "" {
		err := &catalog.ValidationError{Field: missing}
		c.setLastErr(err)
		return nil, err
	}
	if err := c.begin(false); err != nil {
		return nil, err
	}
	snapshot := c.state.Paintings()

	placeholder := model.Painting{
		ID:        PendingPrefix + uuid.NewString(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	fields.Apply(&placeholder)

	order, shift := ordering.OrderOnInsert(len(snapshot))
	placeholder.Order = order
	optimistic := make([]model.Painting, 0, len(snapshot)+1)
	optimistic = append(optimistic, placeholder)
	for _, p := range snapshot {
		p.Order += shift
		optimistic = append(optimistic, p)
	}
	c.apply(optimistic)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	created, err := c.backend.Create(ctx, fields)
	if err != nil {
		c.rollback(ctx, "add", snapshot, err, false)
		return nil, err
	}

	c.replaceByID(placeholder.ID, *created)
	c.done()
	return created, nil
}

// Edit changes fields of a painting.
func (c *Controller) Edit(ctx context.Context, id string, fields model.PaintingFields) (*model.Painting, error) {
	if emptied := fields.EmptiedRequired(); emptied != "" {
		err := &catalog.ValidationError{Field: emptied, Message: "required field cannot be empty: " + emptied}
		c.setLastErr(err)
		return nil, err
	}
	if err := c.begin(false); err != nil {
		return nil, err
	}
	snapshot := c.state.Paintings()

	i := indexOf(snapshot, id)
	if i < 0 {
		c.endWith(catalog.ErrNotFound)
		return nil, catalog.ErrNotFound
	}
	optimistic := slices.Clone(snapshot)
	fields.Apply(&optimistic[i])
	c.apply(optimistic)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	updated, err := c.backend.Update(ctx, id, fields)
	if err != nil {
		c.rollback(ctx, "edit", snapshot, err, false)
		return nil, err
	}

	c.replaceByID(id, *updated)
	c.done()
	return updated, nil
}

// Delete removes a painting.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.begin(false); err != nil {
		return err
	}
	snapshot := c.state.Paintings()

	i := indexOf(snapshot, id)
	if i < 0 {
		c.endWith(catalog.ErrNotFound)
		return catalog.ErrNotFound
	}
	optimistic := slices.Delete(slices.Clone(snapshot), i, i+1)
	c.apply(optimistic)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.backend.Delete(ctx, id); err != nil {
		c.rollback(ctx, "delete", snapshot, err, false)
		return err
	}

	c.done()
	return nil
}

// MoveUp swaps the painting with the one above it. It reports false without
// doing anything when the painting is already first.
func (c *Controller) MoveUp(ctx context.Context, id string) (bool, error) {
	return c.move(ctx, id, -1)
}

// MoveDown swaps the painting with the one below it. It reports false without
// doing anything when the painting is already last.
func (c *Controller) MoveDown(ctx context.Context, id string) (bool, error) {
	return c.move(ctx, id, 1)
}

func (c *Controller) move(ctx context.Context, id string, delta int) (bool, error) {
	if err := c.begin(true); err != nil {
		return false, err
	}
	snapshot := c.state.Paintings()

	i := indexOf(snapshot, id)
	if i < 0 {
		c.endWith(catalog.ErrNotFound)
		return false, catalog.ErrNotFound
	}
	j := i + delta
	if j < 0 || j >= len(snapshot) {
		c.endWith(nil)
		return false, nil
	}

	optimistic, batch, err := ordering.Swapped(snapshot, min(i, j), max(i, j))
	if err != nil {
		c.endWith(err)
		return false, err
	}
	c.apply(optimistic)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.backend.Reorder(ctx, batch); err != nil {
		c.rollback(ctx, "move", snapshot, err, true)
		return false, err
	}

	c.done()
	return true, nil
}

// Normalize renumbers all paintings 0..n-1 in their displayed order.
func (c *Controller) Normalize(ctx context.Context) error {
	if err := c.begin(false); err != nil {
		return err
	}
	snapshot := c.state.Paintings()

	optimistic := slices.Clone(snapshot)
	for i := range optimistic {
		optimistic[i].Order = i
	}
	c.apply(optimistic)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	updates, err := c.backend.Normalize(ctx)
	if err != nil {
		c.rollback(ctx, "normalize", snapshot, err, false)
		return err
	}

	confirmed := c.state.Paintings()
	orders := make(map[string]int, len(updates))
	for _, u := range updates {
		orders[u.ID] = u.Order
	}
	for i, p := range confirmed {
		if o, ok := orders[p.ID]; ok {
			confirmed[i].Order = o
		}
	}
	ordering.Sort(confirmed)
	c.state.Replace(confirmed)

	c.done()
	return nil
}

// begin moves from Idle to OptimisticallyApplied.
func (c *Controller) begin(isMove bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Idle {
		return ErrBusy
	}
	if isMove && c.stale {
		return ErrStale
	}
	c.phase = OptimisticallyApplied
	return nil
}

// apply shows the optimistic list and marks the backend call as started.
func (c *Controller) apply(list []model.Painting) {
	c.state.Replace(list)
	c.setPhase(Reconciling)
}

func (c *Controller) rollback(ctx context.Context, action string, snapshot []model.Painting, err error, markStale bool) {
	c.state.Replace(snapshot)

	c.mu.Lock()
	c.phase = Idle
	c.lastErr = err
	if markStale {
		c.stale = true
	}
	c.mu.Unlock()

	c.logger.WarnContext(ctx, "change rolled back", "action", action, "stale", markStale, "error", err)
}

func (c *Controller) done() {
	c.endWith(nil)
}

func (c *Controller) endWith(err error) {
	c.mu.Lock()
	c.phase = Idle
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Controller) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) replaceByID(id string, p model.Painting) {
	list := c.state.Paintings()
	if i := indexOf(list, id); i >= 0 {
		list[i] = p
	}
	c.state.Replace(list)
}

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func indexOf(list []model.Painting, id string) int {
	return slices.IndexFunc(list, func(p model.Painting) bool { return p.ID == id })
}
