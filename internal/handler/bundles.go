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
	"github.com/pedalpoint/api/internal/database"
	"github.com/rs/zerolog/log"
)

// BundleStore defines the database methods needed by bundle handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type BundleStore interface {
	CreateBundle(ctx context.Context, arg database.CreateBundleParams) (database.ServiceBundle, error)
	GetBundle(ctx context.Context, id uuid.UUID) (database.ServiceBundle, error)
	ListBundles(ctx context.Context, activeOnly bool) ([]database.ServiceBundle, error)
	UpdateBundle(ctx context.Context, arg database.UpdateBundleParams) (database.ServiceBundle, error)
	DeleteBundle(ctx context.Context, id uuid.UUID) (int64, error)
	CreateBundleFeature(ctx context.Context, arg database.CreateBundleFeatureParams) (database.BundleFeature, error)
	ListBundleFeatures(ctx context.Context, bundleID uuid.UUID) ([]database.BundleFeature, error)
	DeleteBundleFeatures(ctx context.Context, bundleID uuid.UUID) error
}

// BundleHandler handles the service-bundle catalog endpoints.
type BundleHandler struct {
	store BundleStore
}

func NewBundleHandler(store BundleStore) *BundleHandler {
	return &BundleHandler{store: store}
}

// RegisterRoutes registers bundle endpoints on the given Chi router.
func (h *BundleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/bundles", h.List)
	r.Post("/bundles", h.Create)
	r.Get("/bundles/{id}", h.Get)
	r.Patch("/bundles/{id}", h.Update)
	r.Delete("/bundles/{id}", h.Delete)
}

type bundleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PricePaise  int64    `json:"price_paise"`
	IsActive    *bool    `json:"is_active"`
	Features    []string `json:"features"`
}

type bundleResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	PricePaise  int64     `json:"price_paise"`
	IsActive    bool      `json:"is_active"`
	Features    []string  `json:"features"`
	CreatedAt   time.Time `json:"created_at"`
}

// List handles GET /bundles with each bundle's ordered feature list.
func (h *BundleHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "1"

	bundles, err := h.store.ListBundles(r.Context(), activeOnly)
	if err != nil {
		log.Error().Err(err).Msg("list bundles")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]bundleResponse, len(bundles))
	for i, b := range bundles {
		features, err := h.store.ListBundleFeatures(r.Context(), b.ID)
		if err != nil {
			log.Error().Err(err).Msg("list bundle features")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i] = dbBundleToResponse(b, features)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /bundles.
func (h *BundleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bundleRequest
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

	bundle, err := h.store.CreateBundle(r.Context(), database.CreateBundleParams{
		Name:        req.Name,
		Description: textOrNull(req.Description),
		PricePaise:  req.PricePaise,
		IsActive:    active,
	})
	if err != nil {
		log.Error().Err(err).Msg("create bundle")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	features := make([]database.BundleFeature, 0, len(req.Features))
	for i, feature := range req.Features {
		f, err := h.store.CreateBundleFeature(r.Context(), database.CreateBundleFeatureParams{
			BundleID:  bundle.ID,
			Feature:   feature,
			SortOrder: int32(i),
		})
		if err != nil {
			log.Error().Err(err).Msg("create bundle feature")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		features = append(features, f)
	}

	writeJSON(w, http.StatusCreated, dbBundleToResponse(bundle, features))
}

// Get handles GET /bundles/{id}.
func (h *BundleHandler) Get(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bundle ID"})
		return
	}

	bundle, err := h.store.GetBundle(r.Context(), bundleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bundle not found"})
			return
		}
		log.Error().Err(err).Msg("get bundle")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	features, err := h.store.ListBundleFeatures(r.Context(), bundleID)
	if err != nil {
		log.Error().Err(err).Msg("list bundle features")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbBundleToResponse(bundle, features))
}

// Update handles PATCH /bundles/{id}. A supplied features array rewrites the
// full ordered list.
func (h *BundleHandler) Update(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bundle ID"})
		return
	}

	var req struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		PricePaise  *int64    `json:"price_paise"`
		IsActive    *bool     `json:"is_active"`
		Features    *[]string `json:"features"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := h.store.GetBundle(r.Context(), bundleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bundle not found"})
			return
		}
		log.Error().Err(err).Msg("get bundle")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	params := database.UpdateBundleParams{
		ID:          bundleID,
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

	updated, err := h.store.UpdateBundle(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("update bundle")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if req.Features != nil {
		if err := h.store.DeleteBundleFeatures(r.Context(), bundleID); err != nil {
			log.Error().Err(err).Msg("clear bundle features")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		for i, feature := range *req.Features {
			if _, err := h.store.CreateBundleFeature(r.Context(), database.CreateBundleFeatureParams{
				BundleID:  bundleID,
				Feature:   feature,
				SortOrder: int32(i),
			}); err != nil {
				log.Error().Err(err).Msg("create bundle feature")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		}
	}

	features, err := h.store.ListBundleFeatures(r.Context(), bundleID)
	if err != nil {
		log.Error().Err(err).Msg("list bundle features")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbBundleToResponse(updated, features))
}

// Delete handles DELETE /bundles/{id}.
func (h *BundleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bundle ID"})
		return
	}

	affected, err := h.store.DeleteBundle(r.Context(), bundleID)
	if err != nil {
		log.Error().Err(err).Msg("delete bundle")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if affected == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "bundle not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func dbBundleToResponse(b database.ServiceBundle, features []database.BundleFeature) bundleResponse {
	resp := bundleResponse{
		ID:         b.ID,
		Name:       b.Name,
		PricePaise: b.PricePaise,
		IsActive:   b.IsActive,
		Features:   make([]string, len(features)),
		CreatedAt:  b.CreatedAt,
	}
	if b.Description.Valid {
		resp.Description = &b.Description.String
	}
	for i, f := range features {
		resp.Features[i] = f.Feature
	}
	return resp
}
