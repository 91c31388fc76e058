package handler

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/enum"
	"github.com/pedalpoint/api/internal/selection"
	"github.com/pedalpoint/api/internal/service"
	"github.com/rs/zerolog/log"
)

// PublicStore defines the database methods needed by the customer-facing
// handlers. Satisfied by *database.Queries; narrow interface for testability.
type PublicStore interface {
	GetRequestBySlug(ctx context.Context, slug string) (database.ServiceRequest, error)
	MarkRequestViewed(ctx context.Context, id uuid.UUID) (database.ServiceRequest, error)
	ListRequestItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]database.RequestItem, error)
	ListAddons(ctx context.Context, activeOnly bool) ([]database.Addon, error)
	ListBundles(ctx context.Context, activeOnly bool) ([]database.ServiceBundle, error)
	ListBundleFeatures(ctx context.Context, bundleID uuid.UUID) ([]database.BundleFeature, error)
	GetLaCarteSettings(ctx context.Context) (database.LaCarteSettings, error)
	ListConfirmedItemDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedItemDetail, error)
	ListConfirmedAddonDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedAddonDetail, error)
	ListConfirmedBundleDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedBundleDetail, error)
}

// ConfirmServicer defines the service methods needed by the confirm endpoint.
// Satisfied by *service.ConfirmService; narrow interface for testability.
type ConfirmServicer interface {
	Confirm(ctx context.Context, slug string, sel selection.State) (*service.ConfirmResult, error)
}

// PublicHandler serves the slug-addressed customer order-review flow.
// No authentication: possession of the slug is the capability.
type PublicHandler struct {
	store      PublicStore
	confirmSvc ConfirmServicer
	selections selection.Store
	notifier   StatusNotifier
}

// NewPublicHandler creates a new PublicHandler. notifier may be nil.
func NewPublicHandler(store PublicStore, confirmSvc ConfirmServicer, selections selection.Store, notifier StatusNotifier) *PublicHandler {
	return &PublicHandler{
		store:      store,
		confirmSvc: confirmSvc,
		selections: selections,
		notifier:   notifier,
	}
}

// RegisterRoutes registers the public endpoints on the given Chi router.
func (h *PublicHandler) RegisterRoutes(r chi.Router) {
	r.Get("/public/orders/{slug}", h.Get)
	r.Get("/public/orders/{slug}/selection", h.GetSelection)
	r.Put("/public/orders/{slug}/selection", h.PutSelection)
	r.Post("/public/orders/{slug}/confirm", h.Confirm)
	r.Get("/public/orders/{slug}/bill", h.Bill)
}

// --- Response types ---

type publicOrderResponse struct {
	OrderNumber  string                `json:"order_number"`
	CustomerName string                `json:"customer_name"`
	BikeName     string                `json:"bike_name"`
	Status       string                `json:"status"`
	Items        []requestItemResponse `json:"items"`
	Addons       []addonResponse       `json:"addons"`
	Bundles      []bundleResponse      `json:"bundles"`
	Lacarte      publicLacarte         `json:"lacarte"`
	Selection    *selectionResponse    `json:"selection,omitempty"`
	Confirmed    *confirmedView        `json:"confirmed,omitempty"`
	ConfirmedAt  *time.Time            `json:"confirmed_at,omitempty"`
}

type publicLacarte struct {
	RealPricePaise int64   `json:"real_price_paise"`
	PricePaise     int64   `json:"price_paise"`
	PromoNote      *string `json:"promo_note"`
}

type selectionResponse struct {
	ItemIDs  []uuid.UUID      `json:"item_ids"`
	AddonIDs []uuid.UUID      `json:"addon_ids"`
	BundleID *uuid.UUID       `json:"bundle_id"`
	Totals   selection.Totals `json:"totals"`
}

type confirmedView struct {
	Items        []confirmedItemResponse   `json:"items"`
	Addons       []confirmedAddonResponse  `json:"addons"`
	Bundles      []confirmedBundleResponse `json:"bundles"`
	LacartePaise int64                     `json:"lacarte_paise"`
	TotalPaise   int64                     `json:"total_paise"`
	TotalDisplay string                    `json:"total_display"`
}

type selectionRequest struct {
	ItemIDs  []uuid.UUID `json:"item_ids"`
	AddonIDs []uuid.UUID `json:"addon_ids"`
	BundleID *uuid.UUID  `json:"bundle_id"`
}

type cancelledNotice struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// --- Handlers ---

// Get handles GET /public/orders/{slug}: the customer's order review page
// payload. The first view moves a pending/sent order to viewed; that marking
// is best-effort and never blocks the page.
func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	request, err := h.store.GetRequestBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("get request by slug")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if request.Status == enum.RequestStatusCancelled {
		writeJSON(w, http.StatusOK, cancelledNotice{
			OrderNumber: request.OrderNumber,
			Status:      request.Status,
			Message:     "This service request was cancelled. Please contact the workshop for details.",
		})
		return
	}

	if request.Status == enum.RequestStatusPending || request.Status == enum.RequestStatusSent {
		viewed, err := h.store.MarkRequestViewed(r.Context(), request.ID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				// Tracking failure must not break the customer's page.
				log.Warn().Err(err).Str("order_number", request.OrderNumber).Msg("mark viewed failed")
			}
		} else {
			request = viewed
			if h.notifier != nil {
				h.notifier.NotifyStatus(request.ID, request.OrderNumber, request.Status)
			}
		}
	}

	items, err := h.store.ListRequestItemsByRequest(r.Context(), request.ID)
	if err != nil {
		log.Error().Err(err).Msg("list request items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	addons, err := h.store.ListAddons(r.Context(), true)
	if err != nil {
		log.Error().Err(err).Msg("list addons")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	bundles, err := h.store.ListBundles(r.Context(), true)
	if err != nil {
		log.Error().Err(err).Msg("list bundles")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	settings, err := h.store.GetLaCarteSettings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("get lacarte settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := publicOrderResponse{
		OrderNumber:  request.OrderNumber,
		CustomerName: request.CustomerName,
		BikeName:     request.BikeName,
		Status:       request.Status,
		Items:        make([]requestItemResponse, len(items)),
		Addons:       make([]addonResponse, len(addons)),
		Bundles:      make([]bundleResponse, len(bundles)),
		Lacarte: publicLacarte{
			RealPricePaise: settings.RealPricePaise,
			PricePaise:     billing.EffectiveLaCarte(lacarteOverride(request), settings.CurrentPricePaise),
		},
	}
	if settings.PromoNote.Valid {
		resp.Lacarte.PromoNote = &settings.PromoNote.String
	}
	for i, item := range items {
		resp.Items[i] = dbRequestItemToResponse(item)
	}
	for i, a := range addons {
		resp.Addons[i] = dbAddonToResponse(a)
	}
	for i, b := range bundles {
		features, err := h.store.ListBundleFeatures(r.Context(), b.ID)
		if err != nil {
			log.Error().Err(err).Msg("list bundle features")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Bundles[i] = dbBundleToResponse(b, features)
	}

	if request.Status == enum.RequestStatusConfirmed {
		view, err := h.confirmedView(r.Context(), request)
		if err != nil {
			log.Error().Err(err).Msg("load confirmed selection")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.Confirmed = view
		if request.ConfirmedAt.Valid {
			resp.ConfirmedAt = &request.ConfirmedAt.Time
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	state := h.loadOrDefaultSelection(slug, items)
	catalog := service.BuildCatalog(items, addons, bundles)
	state = state.Sanitize(catalog)
	sel := toSelectionResponse(state, catalog, resp.Lacarte.PricePaise)
	resp.Selection = &sel

	writeJSON(w, http.StatusOK, resp)
}

// GetSelection handles GET /public/orders/{slug}/selection.
func (h *PublicHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	request, items, catalog, lacarte, ok := h.loadSelectionContext(w, r, slug)
	if !ok {
		return
	}
	if enum.IsTerminalStatus(request.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is no longer editable"})
		return
	}

	state := h.loadOrDefaultSelection(slug, items).Sanitize(catalog)

	writeJSON(w, http.StatusOK, toSelectionResponse(state, catalog, lacarte))
}

// PutSelection handles PUT /public/orders/{slug}/selection: replaces the
// staged selection wholesale. Unknown IDs are dropped and the bundle rule is
// enforced by the State shape itself (a single nullable bundle).
func (h *PublicHandler) PutSelection(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	request, _, catalog, lacarte, ok := h.loadSelectionContext(w, r, slug)
	if !ok {
		return
	}
	if enum.IsTerminalStatus(request.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is no longer editable"})
		return
	}

	state := selection.State{
		ItemIDs:  req.ItemIDs,
		AddonIDs: req.AddonIDs,
		BundleID: req.BundleID,
	}.Sanitize(catalog)

	h.selections.Save(slug, state)

	writeJSON(w, http.StatusOK, toSelectionResponse(state, catalog, lacarte))
}

// Confirm handles POST /public/orders/{slug}/confirm. The full selection
// arrives in the body (single atomic call); an empty body falls back to the
// staged selection so older clients keep working.
func (h *PublicHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	// An entirely empty body is fine (fall back to staged); malformed JSON is not.
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	state := selection.State{
		ItemIDs:  req.ItemIDs,
		AddonIDs: req.AddonIDs,
		BundleID: req.BundleID,
	}
	if len(state.ItemIDs) == 0 && len(state.AddonIDs) == 0 && state.BundleID == nil {
		if staged, ok := h.selections.Load(slug); ok {
			state = staged
		}
	}

	result, err := h.confirmSvc.Confirm(r.Context(), slug, state)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrAlreadyConfirmed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already confirmed"})
		case errors.Is(err, service.ErrOrderCancelled):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is cancelled"})
		case errors.Is(err, service.ErrMinimumSelection):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "select at least one service before confirming"})
		default:
			log.Error().Err(err).Msg("confirm order")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	// The staged selection is spent.
	h.selections.Delete(slug)

	if h.notifier != nil {
		h.notifier.NotifyStatus(result.Request.ID, result.Request.OrderNumber, result.Request.Status)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_number":  result.Request.OrderNumber,
		"status":        result.Request.Status,
		"total_paise":   result.Totals.TotalPaise,
		"total_display": billing.FormatPaise(result.Totals.TotalPaise),
	})
}

// billTemplate renders the printable bill. Kept inline: it is one page and
// has no assets.
var billTemplate = template.Must(template.New("bill").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Bill {{.OrderNumber}}</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 2rem auto; color: #111; }
table { width: 100%; border-collapse: collapse; }
td, th { padding: 6px 4px; text-align: left; border-bottom: 1px solid #ddd; }
td.amount, th.amount { text-align: right; }
tfoot td { font-weight: bold; border-top: 2px solid #111; }
.muted { color: #666; font-size: 0.9em; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>{{.OrderNumber}}</h1>
<p>{{.CustomerName}} &mdash; {{.BikeName}}</p>
<p class="muted">Confirmed {{.ConfirmedAt}}</p>
<table>
<thead><tr><th>Service</th><th class="amount">Amount (Rs.)</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.Label}}</td><td class="amount">{{.Amount}}</td></tr>
{{end}}</tbody>
<tfoot><tr><td>Total</td><td class="amount">{{.Total}}</td></tr></tfoot>
</table>
</body>
</html>
`))

type billLine struct {
	Label  string
	Amount string
}

type billData struct {
	OrderNumber  string
	CustomerName string
	BikeName     string
	ConfirmedAt  string
	Lines        []billLine
	Total        string
}

// Bill handles GET /public/orders/{slug}/bill: a printable HTML bill for a
// confirmed order.
func (h *PublicHandler) Bill(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	request, err := h.store.GetRequestBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("get request by slug")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if request.Status != enum.RequestStatusConfirmed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "bill is available once the order is confirmed"})
		return
	}

	view, err := h.confirmedView(r.Context(), request)
	if err != nil {
		log.Error().Err(err).Msg("load confirmed selection")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data := billData{
		OrderNumber:  request.OrderNumber,
		CustomerName: request.CustomerName,
		BikeName:     request.BikeName,
		Total:        view.TotalDisplay,
	}
	if request.ConfirmedAt.Valid {
		data.ConfirmedAt = request.ConfirmedAt.Time.Format("2 Jan 2006, 15:04")
	}
	for _, item := range view.Items {
		data.Lines = append(data.Lines, billLine{Label: item.Label, Amount: billing.FormatPaise(item.PricePaise)})
	}
	for _, a := range view.Addons {
		data.Lines = append(data.Lines, billLine{Label: a.Name, Amount: billing.FormatPaise(a.PricePaise)})
	}
	for _, b := range view.Bundles {
		data.Lines = append(data.Lines, billLine{Label: b.Name, Amount: billing.FormatPaise(b.PricePaise)})
	}
	data.Lines = append(data.Lines, billLine{Label: "La Carte service", Amount: billing.FormatPaise(view.LacartePaise)})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := billTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render bill")
	}
}

// --- Helpers ---

// loadSelectionContext fetches the request, its items, and the active catalog;
// it writes the error response itself and reports success via ok.
func (h *PublicHandler) loadSelectionContext(w http.ResponseWriter, r *http.Request, slug string) (database.ServiceRequest, []database.RequestItem, selection.Catalog, int64, bool) {
	var zero selection.Catalog

	request, err := h.store.GetRequestBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return database.ServiceRequest{}, nil, zero, 0, false
		}
		log.Error().Err(err).Msg("get request by slug")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.ServiceRequest{}, nil, zero, 0, false
	}

	items, err := h.store.ListRequestItemsByRequest(r.Context(), request.ID)
	if err != nil {
		log.Error().Err(err).Msg("list request items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.ServiceRequest{}, nil, zero, 0, false
	}
	addons, err := h.store.ListAddons(r.Context(), true)
	if err != nil {
		log.Error().Err(err).Msg("list addons")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.ServiceRequest{}, nil, zero, 0, false
	}
	bundles, err := h.store.ListBundles(r.Context(), true)
	if err != nil {
		log.Error().Err(err).Msg("list bundles")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.ServiceRequest{}, nil, zero, 0, false
	}
	settings, err := h.store.GetLaCarteSettings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("get lacarte settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.ServiceRequest{}, nil, zero, 0, false
	}

	catalog := service.BuildCatalog(items, addons, bundles)
	lacarte := billing.EffectiveLaCarte(lacarteOverride(request), settings.CurrentPricePaise)
	return request, items, catalog, lacarte, true
}

// loadOrDefaultSelection returns the staged selection, falling back to the
// suggested items for a fresh order.
func (h *PublicHandler) loadOrDefaultSelection(slug string, items []database.RequestItem) selection.State {
	if state, ok := h.selections.Load(slug); ok {
		return state
	}
	return service.DefaultSelection(items)
}

func (h *PublicHandler) confirmedView(ctx context.Context, request database.ServiceRequest) (*confirmedView, error) {
	items, err := h.store.ListConfirmedItemDetails(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	addons, err := h.store.ListConfirmedAddonDetails(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	bundles, err := h.store.ListConfirmedBundleDetails(ctx, request.ID)
	if err != nil {
		return nil, err
	}

	view := &confirmedView{
		Items:        make([]confirmedItemResponse, len(items)),
		Addons:       make([]confirmedAddonResponse, len(addons)),
		Bundles:      make([]confirmedBundleResponse, len(bundles)),
		TotalPaise:   request.TotalPaise,
		TotalDisplay: billing.FormatPaise(request.TotalPaise),
	}
	var frozen int64
	for i, d := range items {
		view.Items[i] = confirmedItemResponse(d)
		frozen += d.PricePaise
	}
	for i, d := range addons {
		view.Addons[i] = confirmedAddonResponse(d)
		frozen += d.PricePaise
	}
	for i, d := range bundles {
		view.Bundles[i] = confirmedBundleResponse(d)
		frozen += d.PricePaise
	}
	view.LacartePaise = request.TotalPaise - frozen
	return view, nil
}

func toSelectionResponse(state selection.State, catalog selection.Catalog, lacarte int64) selectionResponse {
	resp := selectionResponse{
		ItemIDs:  state.ItemIDs,
		AddonIDs: state.AddonIDs,
		BundleID: state.BundleID,
		Totals:   state.ComputeTotals(catalog, lacarte),
	}
	if resp.ItemIDs == nil {
		resp.ItemIDs = []uuid.UUID{}
	}
	if resp.AddonIDs == nil {
		resp.AddonIDs = []uuid.UUID{}
	}
	return resp
}

func lacarteOverride(r database.ServiceRequest) *int64 {
	if r.LacartePaise.Valid {
		return &r.LacartePaise.Int64
	}
	return nil
}
