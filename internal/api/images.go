package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/galerija/internal/blob"
	"github.com/erazemk/galerija/internal/catalog"
)

// ImagesHandler serves /images/ paths. Locally stored blobs are served
// directly. Paintings still pointing at an old /images/ path are redirected
// to the same file name under LegacyBase, where those images were migrated.
type ImagesHandler struct {
	Paintings  *catalog.Service
	Local      *blob.DirStore
	LegacyBase string
}

// Serve handles GET /images/{name...}.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	if h.Local != nil && h.Local.Exists(name) {
		h.Local.ServeBlob(w, r, name)
		return
	}

	if h.LegacyBase == "" {
		http.NotFound(w, r)
		return
	}

	_, err := h.Paintings.FindByImage(r.Context(), "/images/"+name)
	if errors.Is(err, catalog.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to look up image", "name", name, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to retrieve image")
		return
	}

	target := strings.TrimRight(h.LegacyBase, "/") + "/" + name
	slog.Info("redirecting legacy image", "name", name, "target", target)
	http.Redirect(w, r, target, http.StatusFound)
}
