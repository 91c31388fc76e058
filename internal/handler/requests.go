package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/enum"
	"github.com/pedalpoint/api/internal/service"
	"github.com/rs/zerolog/log"
)

// RequestServicer defines the service methods needed by request handlers.
// Satisfied by *service.RequestService; narrow interface for testability.
type RequestServicer interface {
	CreateRequest(ctx context.Context, input service.CreateRequestInput) (*service.CreateRequestResult, error)
}

// RequestStore defines the database methods needed by request read/update
// handlers. Satisfied by *database.Queries; narrow interface for testability.
type RequestStore interface {
	GetRequest(ctx context.Context, id uuid.UUID) (database.ServiceRequest, error)
	ListRequests(ctx context.Context, arg database.ListRequestsParams) ([]database.ServiceRequest, error)
	CountRequests(ctx context.Context, arg database.CountRequestsParams) (int64, error)
	ListRequestItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]database.RequestItem, error)
	UpdateRequestStatus(ctx context.Context, arg database.UpdateRequestStatusParams) (database.ServiceRequest, error)
	DeleteRequest(ctx context.Context, id uuid.UUID) (int64, error)
	GetLaCarteSettings(ctx context.Context) (database.LaCarteSettings, error)
	ListConfirmedItemDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedItemDetail, error)
	ListConfirmedAddonDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedAddonDetail, error)
	ListConfirmedBundleDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedBundleDetail, error)
}

// StatusNotifier broadcasts request status changes to connected admin clients.
type StatusNotifier interface {
	NotifyStatus(requestID uuid.UUID, orderNumber, status string)
}

// RequestHandler handles the admin request endpoints.
type RequestHandler struct {
	svc      RequestServicer
	store    RequestStore
	notifier StatusNotifier
}

// NewRequestHandler creates a new RequestHandler. notifier may be nil.
func NewRequestHandler(svc RequestServicer, store RequestStore, notifier StatusNotifier) *RequestHandler {
	return &RequestHandler{svc: svc, store: store, notifier: notifier}
}

// RegisterRoutes registers request endpoints on the given Chi router.
func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.Create)
	r.Get("/requests", h.List)
	r.Get("/requests/{id}", h.Get)
	r.Patch("/requests/{id}/status", h.UpdateStatus)
	r.Delete("/requests/{id}", h.Delete)
}

// --- Request / Response types ---

type createRequestRequest struct {
	CustomerName  string                   `json:"customer_name"`
	CustomerPhone string                   `json:"customer_phone"`
	BikeName      string                   `json:"bike_name"`
	LacartePaise  *int64                   `json:"lacarte_paise"`
	Items         []createRequestItemInput `json:"items"`
}

type createRequestItemInput struct {
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	PricePaise  int64  `json:"price_paise"`
	IsSuggested bool   `json:"is_suggested"`
}

type requestResponse struct {
	ID            uuid.UUID             `json:"id"`
	OrderNumber   string                `json:"order_number"`
	ShortSlug     string                `json:"short_slug"`
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	BikeName      string                `json:"bike_name"`
	Status        string                `json:"status"`
	SubtotalPaise int64                 `json:"subtotal_paise"`
	LacartePaise  *int64                `json:"lacarte_paise"`
	TotalPaise    int64                 `json:"total_paise"`
	TotalDisplay  string                `json:"total_display"`
	WaMessageID   *string               `json:"wa_message_id"`
	WaSentAt      *time.Time            `json:"wa_sent_at"`
	WaError       *string               `json:"wa_error"`
	ViewedAt      *time.Time            `json:"viewed_at"`
	ConfirmedAt   *time.Time            `json:"confirmed_at"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	Items         []requestItemResponse `json:"items,omitempty"`
}

type requestItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Label       string    `json:"label"`
	Kind        string    `json:"kind"`
	PricePaise  int64     `json:"price_paise"`
	IsSuggested bool      `json:"is_suggested"`
	SortOrder   int32     `json:"sort_order"`
}

// requestDetailResponse extends requestResponse with the frozen selection for
// confirmed orders.
type requestDetailResponse struct {
	requestResponse
	ConfirmedItems   []confirmedItemResponse   `json:"confirmed_items,omitempty"`
	ConfirmedAddons  []confirmedAddonResponse  `json:"confirmed_addons,omitempty"`
	ConfirmedBundles []confirmedBundleResponse `json:"confirmed_bundles,omitempty"`
}

type confirmedItemResponse struct {
	ItemID     uuid.UUID `json:"item_id"`
	Label      string    `json:"label"`
	Kind       string    `json:"kind"`
	PricePaise int64     `json:"price_paise"`
}

type confirmedAddonResponse struct {
	AddonID    uuid.UUID `json:"addon_id"`
	Name       string    `json:"name"`
	PricePaise int64     `json:"price_paise"`
}

type confirmedBundleResponse struct {
	BundleID   uuid.UUID `json:"bundle_id"`
	Name       string    `json:"name"`
	PricePaise int64     `json:"price_paise"`
}

// requestListResponse wraps a page of requests with pagination metadata.
type requestListResponse struct {
	Requests []requestResponse `json:"requests"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /requests.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.CreateRequestItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateRequestItemInput{
			Label:       item.Label,
			Kind:        item.Kind,
			PricePaise:  item.PricePaise,
			IsSuggested: item.IsSuggested,
		}
	}

	result, err := h.svc.CreateRequest(r.Context(), service.CreateRequestInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		BikeName:      req.BikeName,
		LacartePaise:  req.LacartePaise,
		Items:         items,
	})
	if err != nil {
		if isRequestValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("create request")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbRequestToResponse(result.Request)
	resp.Items = make([]requestItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbRequestItemToResponse(item)
	}

	if h.notifier != nil {
		h.notifier.NotifyStatus(result.Request.ID, result.Request.OrderNumber, result.Request.Status)
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /requests with status filter, free-text search, and
// limit/offset pagination.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	var status, search pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidRequestStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}
	if q := r.URL.Query().Get("q"); q != "" {
		search = pgtype.Text{String: q, Valid: true}
	}

	requests, err := h.store.ListRequests(r.Context(), database.ListRequestsParams{
		Status: status,
		Search: search,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Error().Err(err).Msg("list requests")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountRequests(r.Context(), database.CountRequestsParams{
		Status: status,
		Search: search,
	})
	if err != nil {
		log.Error().Err(err).Msg("count requests")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]requestResponse, len(requests))
	for i, req := range requests {
		resp[i] = dbRequestToResponse(req)
	}

	writeJSON(w, http.StatusOK, requestListResponse{
		Requests: resp,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// Get handles GET /requests/{id}.
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	request, err := h.store.GetRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found"})
			return
		}
		log.Error().Err(err).Msg("get request")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListRequestItemsByRequest(r.Context(), requestID)
	if err != nil {
		log.Error().Err(err).Msg("list request items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	settings, err := h.store.GetLaCarteSettings(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("get lacarte settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := requestDetailResponse{
		requestResponse: reconciledRequestResponse(request, items, settings.CurrentPricePaise),
	}
	resp.Items = make([]requestItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbRequestItemToResponse(item)
	}

	if request.Status == enum.RequestStatusConfirmed {
		confirmedItems, err := h.store.ListConfirmedItemDetails(r.Context(), requestID)
		if err != nil {
			log.Error().Err(err).Msg("list confirmed items")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		confirmedAddons, err := h.store.ListConfirmedAddonDetails(r.Context(), requestID)
		if err != nil {
			log.Error().Err(err).Msg("list confirmed addons")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		confirmedBundles, err := h.store.ListConfirmedBundleDetails(r.Context(), requestID)
		if err != nil {
			log.Error().Err(err).Msg("list confirmed bundles")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		resp.ConfirmedItems = make([]confirmedItemResponse, len(confirmedItems))
		for i, d := range confirmedItems {
			resp.ConfirmedItems[i] = confirmedItemResponse(d)
		}
		resp.ConfirmedAddons = make([]confirmedAddonResponse, len(confirmedAddons))
		for i, d := range confirmedAddons {
			resp.ConfirmedAddons[i] = confirmedAddonResponse(d)
		}
		resp.ConfirmedBundles = make([]confirmedBundleResponse, len(confirmedBundles))
		for i, d := range confirmedBundles {
			resp.ConfirmedBundles[i] = confirmedBundleResponse(d)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /requests/{id}/status.
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !isValidRequestStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	current, err := h.store.GetRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found"})
			return
		}
		log.Error().Err(err).Msg("get request for status update")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateStatusTransition(current.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateRequestStatus(r.Context(), database.UpdateRequestStatusParams{
		ID:         requestID,
		Status:     req.Status,
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status changed between our read and write.
			writeJSON(w, http.StatusConflict, map[string]string{"error": "request status changed, please retry"})
			return
		}
		log.Error().Err(err).Msg("update request status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyStatus(updated.ID, updated.OrderNumber, updated.Status)
	}

	writeJSON(w, http.StatusOK, dbRequestToResponse(updated))
}

// Delete handles DELETE /requests/{id}. Hard delete is only allowed once the
// request is cancelled; anything else is a conflict.
func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request ID"})
		return
	}

	affected, err := h.store.DeleteRequest(r.Context(), requestID)
	if err != nil {
		log.Error().Err(err).Msg("delete request")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if affected == 0 {
		// Either the request doesn't exist or it isn't cancelled yet.
		// Fetch to give a better error message.
		_, fetchErr := h.store.GetRequest(r.Context(), requestID)
		if fetchErr != nil {
			if errors.Is(fetchErr, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found"})
				return
			}
			log.Error().Err(fetchErr).Msg("get request for delete")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{"error": "only cancelled requests can be deleted"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// isRequestValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isRequestValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidItemKind) ||
		errors.Is(err, service.ErrInvalidItemPrice) ||
		errors.Is(err, service.ErrMissingItemLabel) ||
		errors.Is(err, service.ErrMissingCustomerName) ||
		errors.Is(err, service.ErrMissingPhone) ||
		errors.Is(err, service.ErrMissingBikeName) ||
		errors.Is(err, service.ErrInvalidLacarte)
}

func dbRequestToResponse(r database.ServiceRequest) requestResponse {
	resp := requestResponse{
		ID:            r.ID,
		OrderNumber:   r.OrderNumber,
		ShortSlug:     r.ShortSlug,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		BikeName:      r.BikeName,
		Status:        r.Status,
		SubtotalPaise: r.SubtotalPaise,
		TotalPaise:    r.TotalPaise,
		TotalDisplay:  billing.FormatPaise(r.TotalPaise),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.LacartePaise.Valid {
		v := r.LacartePaise.Int64
		resp.LacartePaise = &v
	}
	if r.WaMessageID.Valid {
		resp.WaMessageID = &r.WaMessageID.String
	}
	if r.WaSentAt.Valid {
		resp.WaSentAt = &r.WaSentAt.Time
	}
	if r.WaError.Valid {
		resp.WaError = &r.WaError.String
	}
	if r.ViewedAt.Valid {
		resp.ViewedAt = &r.ViewedAt.Time
	}
	if r.ConfirmedAt.Valid {
		resp.ConfirmedAt = &r.ConfirmedAt.Time
	}
	return resp
}

// reconciledRequestResponse is dbRequestToResponse with the stored aggregates
// run through the reconciliation floor against the live item list.
func reconciledRequestResponse(r database.ServiceRequest, items []database.RequestItem, globalLacarte int64) requestResponse {
	var override *int64
	if r.LacartePaise.Valid {
		override = &r.LacartePaise.Int64
	}
	prices := make([]int64, len(items))
	for i, item := range items {
		prices[i] = item.PricePaise
	}
	totals := billing.CalculateRequestTotals(billing.TotalsSource{
		SubtotalPaise: r.SubtotalPaise,
		TotalPaise:    r.TotalPaise,
		LacartePaise:  override,
	}, prices, globalLacarte)

	resp := dbRequestToResponse(r)
	resp.SubtotalPaise = totals.SubtotalPaise
	resp.TotalPaise = totals.TotalPaise
	resp.TotalDisplay = billing.FormatPaise(totals.TotalPaise)
	return resp
}

func dbRequestItemToResponse(item database.RequestItem) requestItemResponse {
	return requestItemResponse{
		ID:          item.ID,
		Label:       item.Label,
		Kind:        item.Kind,
		PricePaise:  item.PricePaise,
		IsSuggested: item.IsSuggested,
		SortOrder:   item.SortOrder,
	}
}

func isValidRequestStatus(s string) bool {
	switch s {
	case enum.RequestStatusPending,
		enum.RequestStatusSent,
		enum.RequestStatusViewed,
		enum.RequestStatusConfirmed,
		enum.RequestStatusCancelled:
		return true
	}
	return false
}

// allowedTransitions defines valid admin-side status transitions.
// Key is current status, value is the set of statuses it can transition to.
// Confirmation itself only happens through the customer confirm flow, never
// through this map.
var allowedTransitions = map[string][]string{
	enum.RequestStatusPending: {enum.RequestStatusSent, enum.RequestStatusCancelled},
	enum.RequestStatusSent:    {enum.RequestStatusViewed, enum.RequestStatusCancelled},
	enum.RequestStatusViewed:  {enum.RequestStatusCancelled},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
