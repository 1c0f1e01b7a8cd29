package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/erazemk/galerija/internal/catalog"
	"github.com/erazemk/galerija/internal/model"
)

// PaintingsHandler exposes the painting catalog over HTTP.
type PaintingsHandler struct {
	Service *catalog.Service
}

// orderUpdateRequest keeps the raw order so non-integer values can be
// rejected instead of truncated.
type orderUpdateRequest struct {
	ID    string          `json:"id"`
	Order json.RawMessage `json:"order"`
}

type orderUpdatesResponse struct {
	Updated []model.OrderUpdate `json:"updated"`
}

// List handles GET /api/paintings.
func (h *PaintingsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Get handles GET /api/paintings/{id}.
func (h *PaintingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Create handles POST /api/paintings.
func (h *PaintingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields model.PaintingFields
	if err := decodeJSON(r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.Create(r.Context(), fields, GetClaims(r.Context()))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, p)
}

// Update handles PATCH /api/paintings/{id}.
func (h *PaintingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields model.PaintingFields
	if err := decodeJSON(r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.Update(r.Context(), r.PathValue("id"), fields, GetClaims(r.Context()))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/paintings/{id}.
func (h *PaintingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), r.PathValue("id"), GetClaims(r.Context())); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles PATCH /api/paintings/order. The body is a JSON array of
// {"id", "order"} objects.
func (h *PaintingsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req []orderUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates, err := parseOrderUpdates(req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := h.Service.Reorder(r.Context(), updates, GetClaims(r.Context()))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orderUpdatesResponse{Updated: applied})
}

// Normalize handles POST /api/paintings/normalize.
func (h *PaintingsHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	applied, err := h.Service.Normalize(r.Context(), GetClaims(r.Context()))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orderUpdatesResponse{Updated: applied})
}

func parseOrderUpdates(req []orderUpdateRequest) ([]model.OrderUpdate, error) {
	updates := make([]model.OrderUpdate, 0, len(req))
	for i, u := range req {
		order, err := strconv.Atoi(string(u.Order))
		if err != nil {
			return nil, fmt.Errorf("invalid order for entry %d: must be an integer", i)
		}
		updates = append(updates, model.OrderUpdate{ID: u.ID, Order: order})
	}
	return updates, nil
}
