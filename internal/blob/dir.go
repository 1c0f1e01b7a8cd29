package blob

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// DirStore keeps blobs in a local directory. Objects are served back by
// Handler under PublicBase.
type DirStore struct {
	Root       string
	PublicBase string
}

// NewDirStore creates the root directory if needed.
func NewDirStore(root, publicBase string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &DirStore{Root: root, PublicBase: publicBase}, nil
}

func (d *DirStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	p, err := d.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial image.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing blob: %w", err)
	}
	return joinURL(d.PublicBase, key), nil
}

// Exists reports whether a blob with the given key is stored.
func (d *DirStore) Exists(key string) bool {
	p, err := d.path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// ServeBlob writes the stored blob for key.
func (d *DirStore) ServeBlob(w http.ResponseWriter, r *http.Request, key string) {
	p, err := d.path(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, p)
}

func (d *DirStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(d.Root, filepath.FromSlash(clean)), nil
}
