package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/database"
	"github.com/rs/zerolog/log"
)

// AddonStore defines the database methods needed by add-on handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AddonStore interface {
	CreateAddon(ctx context.Context, arg database.CreateAddonParams) (database.Addon, error)
	GetAddon(ctx context.Context, id uuid.UUID) (database.Addon, error)
	ListAddons(ctx context.Context, activeOnly bool) ([]database.Addon, error)
	UpdateAddon(ctx context.Context, arg database.UpdateAddonParams) (database.Addon, error)
	DeleteAddon(ctx context.Context, id uuid.UUID) (int64, error)
}

// AddonHandler handles the add-on catalog endpoints.
type AddonHandler struct {
	store AddonStore
}

func NewAddonHandler(store AddonStore) *AddonHandler {
	return &AddonHandler{store: store}
}

// RegisterRoutes registers add-on endpoints on the given Chi router.
func (h *AddonHandler) RegisterRoutes(r chi.Router) {
	r.Get("/addons", h.List)
	r.Post("/addons", h.Create)
	r.Patch("/addons/{id}", h.Update)
	r.Delete("/addons/{id}", h.Delete)
}

type addonRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PricePaise  int64  `json:"price_paise"`
	IsActive    *bool  `json:"is_active"`
}

type addonResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	PricePaise  int64     `json:"price_paise"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// List handles GET /addons. ?active=1 limits to customer-selectable entries.
func (h *AddonHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "1"

	addons, err := h.store.ListAddons(r.Context(), activeOnly)
	if err != nil {
		log.Error().Err(err).Msg("list addons")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]addonResponse, len(addons))
	for i, a := range addons {
		resp[i] = dbAddonToResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /addons.
func (h *AddonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req addonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.PricePaise < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price_paise must be >= 0"})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	addon, err := h.store.CreateAddon(r.Context(), database.CreateAddonParams{
		Name:        req.Name,
		Description: textOrNull(req.Description),
		PricePaise:  req.PricePaise,
		IsActive:    active,
	})
	if err != nil {
		log.Error().Err(err).Msg("create addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbAddonToResponse(addon))
}

// Update handles PATCH /addons/{id}. Omitted fields keep their current value.
func (h *AddonHandler) Update(w http.ResponseWriter, r *http.Request) {
	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PricePaise  *int64  `json:"price_paise"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := h.store.GetAddon(r.Context(), addonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
			return
		}
		log.Error().Err(err).Msg("get addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	params := database.UpdateAddonParams{
		ID:          addonID,
		Name:        current.Name,
		Description: current.Description,
		PricePaise:  current.PricePaise,
		IsActive:    current.IsActive,
	}
	if req.Name != nil {
		if *req.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name cannot be empty"})
			return
		}
		params.Name = *req.Name
	}
	if req.Description != nil {
		params.Description = textOrNull(*req.Description)
	}
	if req.PricePaise != nil {
		if *req.PricePaise < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price_paise must be >= 0"})
			return
		}
		params.PricePaise = *req.PricePaise
	}
	if req.IsActive != nil {
		params.IsActive = *req.IsActive
	}

	updated, err := h.store.UpdateAddon(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("update addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbAddonToResponse(updated))
}

// Delete handles DELETE /addons/{id}. Confirmed orders keep their frozen copy
// of the price, so removal is safe.
func (h *AddonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	addonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid addon ID"})
		return
	}

	affected, err := h.store.DeleteAddon(r.Context(), addonID)
	if err != nil {
		log.Error().Err(err).Msg("delete addon")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if affected == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "addon not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func dbAddonToResponse(a database.Addon) addonResponse {
	resp := addonResponse{
		ID:         a.ID,
		Name:       a.Name,
		PricePaise: a.PricePaise,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt,
	}
	if a.Description.Valid {
		resp.Description = &a.Description.String
	}
	return resp
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
