package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/galerija/internal/blob"
	"github.com/erazemk/galerija/internal/imaging"
	"github.com/erazemk/galerija/internal/metrics"
)

// multipartOverhead is allowed on top of the image itself for form framing.
const multipartOverhead = 1 << 20

// UploadHandler processes painting images and stores them in the blob store.
type UploadHandler struct {
	Blobs blob.Store
}

type uploadResponse struct {
	URL    string `json:"url"`
	Size   int64  `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Upload handles POST /api/upload with a multipart "file" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, http.StatusRequestEntityTooLarge, "file too large, maximum size is 30 MB")
			return
		}
		jsonError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	result, err := imaging.Process(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "file too large, maximum size is 30 MB")
		return
	case err != nil:
		slog.Warn("image rejected", "filename", header.Filename, "error", err)
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := blob.NewImageKey()
	url, err := h.Blobs.Put(r.Context(), key, result.Data, result.MIME)
	if err != nil {
		slog.Error("failed to store image", "key", key, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	metrics.UploadBytes.Observe(float64(header.Size))

	claims := GetClaims(r.Context())
	slog.Info("image uploaded", "user", claims.Username, "key", key, "size", header.Size,
		"stored_size", len(result.Data))
	jsonResponse(w, http.StatusOK, uploadResponse{
		URL:    url,
		Size:   header.Size,
		Width:  result.Width,
		Height: result.Height,
	})
}
