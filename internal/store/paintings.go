package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/galerija/internal/model"
	"github.com/erazemk/galerija/internal/ordering"
)

// now is the clock used for painting timestamps and token expiry checks.
var now = time.Now

const paintingColumns = `id, title, dimensions, medium, notes, price, image, sort_order, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPainting(row rowScanner) (*model.Painting, error) {
	p := &model.Painting{}
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.Title, &p.Dimensions, &p.Medium, &p.Notes, &p.Price, &p.Image,
		&p.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	p.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return p, nil
}

// CreatePainting inserts a painting at the top of the collection, shifting
// every existing painting down by one in the same transaction. The caller
// validates required fields.
func CreatePainting(ctx context.Context, db *sql.DB, fields model.PaintingFields) (*model.Painting, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM paintings`).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting paintings: %w", err)
	}

	order, shift := ordering.OrderOnInsert(count)
	if shift != 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE paintings SET sort_order = sort_order + ?`, shift,
		); err != nil {
			return nil, fmt.Errorf("shifting painting order: %w", err)
		}
	}

	ts := now().UTC()
	p := &model.Painting{
		ID:        uuid.NewString(),
		Order:     order,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	fields.Apply(p)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO paintings (`+paintingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Dimensions, p.Medium, p.Notes, p.Price, p.Image, p.Order,
		ts.UnixNano(), ts.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating painting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing painting creation: %w", err)
	}
	return p, nil
}

// GetPainting returns a painting by ID, or nil if it does not exist.
func GetPainting(ctx context.Context, db *sql.DB, id string) (*model.Painting, error) {
	p, err := scanPainting(db.QueryRowContext(ctx,
		`SELECT `+paintingColumns+` FROM paintings WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting painting: %w", err)
	}
	return p, nil
}

// FindPaintingByImage returns the first painting whose image equals image,
// or nil.
func FindPaintingByImage(ctx context.Context, db *sql.DB, image string) (*model.Painting, error) {
	p, err := scanPainting(db.QueryRowContext(ctx,
		`SELECT `+paintingColumns+` FROM paintings WHERE image = ? LIMIT 1`, image,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding painting by image: %w", err)
	}
	return p, nil
}

// ListPaintings returns all paintings in display order.
func ListPaintings(ctx context.Context, db *sql.DB) ([]model.Painting, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+paintingColumns+` FROM paintings ORDER BY sort_order ASC, created_at DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing paintings: %w", err)
	}
	defer rows.Close()

	paintings := []model.Painting{}
	for rows.Next() {
		p, err := scanPainting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning painting: %w", err)
		}
		paintings = append(paintings, *p)
	}
	return paintings, rows.Err()
}

// UpdatePainting merges fields into the painting and refreshes its update
// time. Returns nil if the painting does not exist.
func UpdatePainting(ctx context.Context, db *sql.DB, id string, fields model.PaintingFields) (*model.Painting, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPainting(tx.QueryRowContext(ctx,
		`SELECT `+paintingColumns+` FROM paintings WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting painting: %w", err)
	}

	fields.Apply(p)
	p.UpdatedAt = now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE paintings SET title = ?, dimensions = ?, medium = ?, notes = ?, price = ?, image = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, p.Dimensions, p.Medium, p.Notes, p.Price, p.Image, p.UpdatedAt.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating painting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing painting update: %w", err)
	}
	return p, nil
}

// DeletePainting permanently removes a painting. Remaining orders are left
// as they are. Reports whether a painting was removed.
func DeletePainting(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM paintings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting painting: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking deleted rows: %w", err)
	}
	return n > 0, nil
}

// SetPaintingOrders applies all order updates in one transaction. If any ID
// does not exist nothing is changed and the missing IDs are returned.
func SetPaintingOrders(ctx context.Context, db *sql.DB, updates []model.OrderUpdate) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	missing, err := applyOrders(ctx, tx, updates, now().UTC())
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return missing, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order updates: %w", err)
	}
	return nil, nil
}

// NormalizePaintingOrders renumbers all paintings 0..n-1 in display order
// and returns the applied updates.
func NormalizePaintingOrders(ctx context.Context, db *sql.DB) ([]model.OrderUpdate, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+paintingColumns+` FROM paintings ORDER BY sort_order ASC, created_at DESC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing paintings: %w", err)
	}
	var list []model.Painting
	for rows.Next() {
		p, err := scanPainting(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning painting: %w", err)
		}
		list = append(list, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing paintings: %w", err)
	}

	updates := ordering.Normalize(list)
	if _, err := applyOrders(ctx, tx, updates, now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing normalization: %w", err)
	}
	return updates, nil
}

func applyOrders(ctx context.Context, tx *sql.Tx, updates []model.OrderUpdate, ts time.Time) ([]string, error) {
	stmt, err := tx.PrepareContext(ctx,
		`UPDATE paintings SET sort_order = ?, updated_at = ? WHERE id = ?`,
	)
	if err != nil {
		return nil, fmt.Errorf("preparing order update: %w", err)
	}
	defer stmt.Close()

	var missing []string
	for _, u := range updates {
		result, err := stmt.ExecContext(ctx, u.Order, ts.UnixNano(), u.ID)
		if err != nil {
			return nil, fmt.Errorf("updating order of %s: %w", u.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("checking updated rows: %w", err)
		}
		if n == 0 {
			missing = append(missing, u.ID)
		}
	}
	return missing, nil
}
