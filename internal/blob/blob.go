// Package blob stores uploaded painting images and returns their public URLs.
package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// Store persists an object and returns the URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NewImageKey returns a fresh key for a processed painting image.
func NewImageKey() string {
	return "paintings/" + uuid.NewString() + ".jpg"
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
