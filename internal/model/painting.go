package model

import "time"

// Painting is a single artwork in the collection.
type Painting struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Dimensions string    `json:"dimensions"`
	Medium     string    `json:"medium"`
	Notes      string    `json:"notes"`
	Price      string    `json:"price"`
	Image      string    `json:"image"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PaintingFields carries the editable fields of a painting. Nil fields are
// left untouched on update.
type PaintingFields struct {
	Title      *string `json:"title,omitempty"`
	Dimensions *string `json:"dimensions,omitempty"`
	Medium     *string `json:"medium,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Price      *string `json:"price,omitempty"`
	Image      *string `json:"image,omitempty"`
}

// RequiredFields lists the painting fields that must be non-empty, in the
// order they are validated.
var RequiredFields = []string{"title", "dimensions", "medium", "price", "image"}

// MissingRequired returns the first required field that is absent or empty,
// or "" if all are present. Used on create.
func (f PaintingFields) MissingRequired() string {
	for _, name := range RequiredFields {
		v := f.field(name)
		if v == nil || *v == "" {
			return name
		}
	}
	return ""
}

// EmptiedRequired returns the first required field that is present but set
// to the empty string, or "". Used on update, where absent fields are fine.
func (f PaintingFields) EmptiedRequired() string {
	for _, name := range RequiredFields {
		if v := f.field(name); v != nil && *v == "" {
			return name
		}
	}
	return ""
}

// Apply merges the non-nil fields into p.
func (f PaintingFields) Apply(p *Painting) {
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Dimensions != nil {
		p.Dimensions = *f.Dimensions
	}
	if f.Medium != nil {
		p.Medium = *f.Medium
	}
	if f.Notes != nil {
		p.Notes = *f.Notes
	}
	if f.Price != nil {
		p.Price = *f.Price
	}
	if f.Image != nil {
		p.Image = *f.Image
	}
}

func (f PaintingFields) field(name string) *string {
	switch name {
	case "title":
		return f.Title
	case "dimensions":
		return f.Dimensions
	case "medium":
		return f.Medium
	case "notes":
		return f.Notes
	case "price":
		return f.Price
	case "image":
		return f.Image
	}
	return nil
}

// FieldsOf returns fully populated fields for p.
func FieldsOf(p Painting) PaintingFields {
	return PaintingFields{
		Title:      &p.Title,
		Dimensions: &p.Dimensions,
		Medium:     &p.Medium,
		Notes:      &p.Notes,
		Price:      &p.Price,
		Image:      &p.Image,
	}
}

// OrderUpdate assigns a new order value to a painting.
type OrderUpdate struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}
