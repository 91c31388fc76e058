package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/enum"
	"github.com/pedalpoint/api/pkg/waflow"
	"github.com/rs/zerolog/log"
)

// WaSender posts the order link to the WhatsApp automation webhook.
// Satisfied by *waflow.Client.
type WaSender interface {
	Send(ctx context.Context, req waflow.SendRequest) (*waflow.SendResult, error)
}

// SendStore defines the database methods needed by the send handler.
// Satisfied by *database.Queries; narrow interface for testability.
type SendStore interface {
	GetRequest(ctx context.Context, id uuid.UUID) (database.ServiceRequest, error)
	MarkRequestSent(ctx context.Context, arg database.MarkRequestSentParams) (database.ServiceRequest, error)
	MarkRequestSendFailed(ctx context.Context, arg database.MarkRequestSendFailedParams) (database.ServiceRequest, error)
}

// SendHandler pushes the order link to the customer over WhatsApp.
type SendHandler struct {
	store         SendStore
	sender        WaSender
	publicBaseURL string
	notifier      StatusNotifier
}

// NewSendHandler creates a new SendHandler. notifier may be nil.
func NewSendHandler(store SendStore, sender WaSender, publicBaseURL string, notifier StatusNotifier) *SendHandler {
	return &SendHandler{
		store:         store,
		sender:        sender,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		notifier:      notifier,
	}
}

// RegisterRoutes registers the send endpoint on the given Chi router.
func (h *SendHandler) RegisterRoutes(r chi.Router) {
	r.Post("/requests/{id}/send", h.Send)
}

type sendResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	WaMessageID *string `json:"wa_message_id,omitempty"`
	Ambiguous   bool    `json:"ambiguous,omitempty"`
}

// Send handles POST /requests/{id}/send. On delivery the request is marked
// sent with the upstream message id; on failure it drops back to pending with
// the error recorded so the operator can retry manually. Each failure class
// gets its own operator-facing message.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
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
		log.Error().Err(err).Msg("get request for send")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if enum.IsTerminalStatus(request.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": fmt.Sprintf("cannot send a %s order", request.Status)})
		return
	}

	result, err := h.sender.Send(r.Context(), waflow.SendRequest{
		Phone:        request.CustomerPhone,
		CustomerName: request.CustomerName,
		BikeName:     request.BikeName,
		OrderNumber:  request.OrderNumber,
		OrderURL:     fmt.Sprintf("%s/o/%s", h.publicBaseURL, request.ShortSlug),
		TotalDisplay: billing.FormatPaise(request.TotalPaise),
	})
	if err != nil {
		var operatorMsg string
		switch {
		case errors.Is(err, waflow.ErrTimeout):
			operatorMsg = "WhatsApp service timed out, try again"
		default:
			operatorMsg = "could not reach the WhatsApp service, check the integration"
		}
		h.recordFailure(r.Context(), request, operatorMsg, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": operatorMsg})
		return
	}

	if !result.OK {
		operatorMsg := "WhatsApp service rejected the message"
		if result.Message != "" {
			operatorMsg = fmt.Sprintf("WhatsApp service rejected the message: %s", result.Message)
		}
		h.recordFailure(r.Context(), request, operatorMsg, nil)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": operatorMsg})
		return
	}

	updated, err := h.store.MarkRequestSent(r.Context(), database.MarkRequestSentParams{
		ID:          requestID,
		WaMessageID: textOrNull(result.MessageID),
	})
	if err != nil {
		log.Error().Err(err).Msg("mark request sent")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyStatus(updated.ID, updated.OrderNumber, updated.Status)
	}

	resp := sendResponse{
		Status:    updated.Status,
		Message:   "message delivered to WhatsApp service",
		Ambiguous: result.Ambiguous,
	}
	if result.Ambiguous {
		resp.Message = "WhatsApp service accepted the request but gave no delivery signal"
	}
	if updated.WaMessageID.Valid {
		resp.WaMessageID = &updated.WaMessageID.String
	}
	writeJSON(w, http.StatusOK, resp)
}

// recordFailure is best-effort: the operator already gets the error in the
// response, so a bookkeeping failure is only logged.
func (h *SendHandler) recordFailure(ctx context.Context, request database.ServiceRequest, msg string, cause error) {
	log.Warn().
		Err(cause).
		Str("order_number", request.OrderNumber).
		Str("reason", msg).
		Msg("whatsapp send failed")

	if _, err := h.store.MarkRequestSendFailed(ctx, database.MarkRequestSendFailedParams{
		ID:      request.ID,
		WaError: msg,
	}); err != nil {
		log.Error().Err(err).Str("order_number", request.OrderNumber).Msg("record send failure")
	}
	if h.notifier != nil {
		h.notifier.NotifyStatus(request.ID, request.OrderNumber, enum.RequestStatusPending)
	}
}
