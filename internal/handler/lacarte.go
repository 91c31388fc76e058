package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/rs/zerolog/log"
)

// LaCarteStore defines the database methods needed by the settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type LaCarteStore interface {
	GetLaCarteSettings(ctx context.Context) (database.LaCarteSettings, error)
	UpdateLaCarteSettings(ctx context.Context, arg database.UpdateLaCarteSettingsParams) (database.LaCarteSettings, error)
}

// LaCarteHandler handles the global base-service-charge settings.
type LaCarteHandler struct {
	store LaCarteStore
}

func NewLaCarteHandler(store LaCarteStore) *LaCarteHandler {
	return &LaCarteHandler{store: store}
}

// RegisterRoutes registers the settings endpoints on the given Chi router.
func (h *LaCarteHandler) RegisterRoutes(r chi.Router) {
	r.Get("/lacarte", h.Get)
	r.Put("/lacarte", h.Update)
}

type lacarteRequest struct {
	RealPricePaise    int64  `json:"real_price_paise"`
	CurrentPricePaise int64  `json:"current_price_paise"`
	PromoNote         string `json:"promo_note"`
}

type lacarteResponse struct {
	RealPricePaise    int64     `json:"real_price_paise"`
	CurrentPricePaise int64     `json:"current_price_paise"`
	CurrentDisplay    string    `json:"current_display"`
	PromoNote         *string   `json:"promo_note"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Get handles GET /lacarte.
func (h *LaCarteHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetLaCarteSettings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("get lacarte settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dbLaCarteToResponse(settings))
}

// Update handles PUT /lacarte. New orders pick up the new charge immediately;
// existing orders keep their per-order override if they have one.
func (h *LaCarteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req lacarteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.RealPricePaise < 0 || req.CurrentPricePaise < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prices must be >= 0"})
		return
	}

	updated, err := h.store.UpdateLaCarteSettings(r.Context(), database.UpdateLaCarteSettingsParams{
		RealPricePaise:    req.RealPricePaise,
		CurrentPricePaise: req.CurrentPricePaise,
		PromoNote:         textOrNull(req.PromoNote),
	})
	if err != nil {
		log.Error().Err(err).Msg("update lacarte settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbLaCarteToResponse(updated))
}

func dbLaCarteToResponse(s database.LaCarteSettings) lacarteResponse {
	resp := lacarteResponse{
		RealPricePaise:    s.RealPricePaise,
		CurrentPricePaise: s.CurrentPricePaise,
		CurrentDisplay:    billing.FormatPaise(s.CurrentPricePaise),
		UpdatedAt:         s.UpdatedAt,
	}
	if s.PromoNote.Valid {
		resp.PromoNote = &s.PromoNote.String
	}
	return resp
}
