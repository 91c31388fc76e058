package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/handler"
	"github.com/pedalpoint/api/pkg/waflow"
)

func pgtypeText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// --- Mocks ---

type mockSendStore struct {
	requests map[uuid.UUID]database.ServiceRequest
}

func newMockSendStore() *mockSendStore {
	return &mockSendStore{requests: make(map[uuid.UUID]database.ServiceRequest)}
}

func (m *mockSendStore) GetRequest(_ context.Context, id uuid.UUID) (database.ServiceRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return database.ServiceRequest{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockSendStore) MarkRequestSent(_ context.Context, arg database.MarkRequestSentParams) (database.ServiceRequest, error) {
	r, ok := m.requests[arg.ID]
	if !ok {
		return database.ServiceRequest{}, pgx.ErrNoRows
	}
	r.Status = "sent"
	r.WaMessageID = arg.WaMessageID
	r.WaError = pgtypeText("")
	r.UpdatedAt = time.Now()
	m.requests[arg.ID] = r
	return r, nil
}

func (m *mockSendStore) MarkRequestSendFailed(_ context.Context, arg database.MarkRequestSendFailedParams) (database.ServiceRequest, error) {
	r, ok := m.requests[arg.ID]
	if !ok {
		return database.ServiceRequest{}, pgx.ErrNoRows
	}
	r.Status = "pending"
	r.WaError = pgtypeText(arg.WaError)
	r.UpdatedAt = time.Now()
	m.requests[arg.ID] = r
	return r, nil
}

type mockSender struct {
	lastReq waflow.SendRequest
	result  *waflow.SendResult
	err     error
}

func (m *mockSender) Send(_ context.Context, req waflow.SendRequest) (*waflow.SendResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func setupSendRouter(store *mockSendStore, sender *mockSender, notifier *mockNotifier) *chi.Mux {
	var n handler.StatusNotifier
	if notifier != nil {
		n = notifier
	}
	h := handler.NewSendHandler(store, sender, "https://orders.example.com/", n)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func seedSendRequest(store *mockSendStore, status string) database.ServiceRequest {
	now := time.Now()
	r := database.ServiceRequest{
		ID:            uuid.New(),
		OrderNumber:   "PDL-042",
		ShortSlug:     "k3jf8a2bqx",
		CustomerName:  "Ravi",
		CustomerPhone: "+919876543210",
		BikeName:      "Trek Marlin 7",
		Status:        status,
		SubtotalPaise: 20000,
		TotalPaise:    29900,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	store.requests[r.ID] = r
	return r
}

// --- Tests ---

func TestSend_Success(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "pending")
	sender := &mockSender{result: &waflow.SendResult{OK: true, MessageID: "wamid.123"}}
	notifier := &mockNotifier{}
	router := setupSendRouter(store, sender, notifier)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != "sent" {
		t.Errorf("status: got %v, want sent", resp["status"])
	}
	if resp["wa_message_id"] != "wamid.123" {
		t.Errorf("wa_message_id: got %v, want wamid.123", resp["wa_message_id"])
	}

	// The order link embeds the short slug under the public origin.
	if sender.lastReq.OrderURL != "https://orders.example.com/o/k3jf8a2bqx" {
		t.Errorf("order url: got %s", sender.lastReq.OrderURL)
	}
	if sender.lastReq.TotalDisplay != "299.00" {
		t.Errorf("total display: got %s, want 299.00", sender.lastReq.TotalDisplay)
	}

	stored := store.requests[req.ID]
	if stored.Status != "sent" {
		t.Errorf("stored status: got %s, want sent", stored.Status)
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Status != "sent" {
		t.Errorf("expected one 'sent' notification, got %+v", notifier.calls)
	}
}

func TestSend_Resend(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "sent")
	sender := &mockSender{result: &waflow.SendResult{OK: true, MessageID: "wamid.456"}}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestSend_Timeout(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "pending")
	sender := &mockSender{err: waflow.ErrTimeout}
	notifier := &mockNotifier{}
	router := setupSendRouter(store, sender, notifier)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "WhatsApp service timed out, try again" {
		t.Errorf("error: got %v", resp["error"])
	}

	stored := store.requests[req.ID]
	if stored.Status != "pending" {
		t.Errorf("stored status: got %s, want pending", stored.Status)
	}
	if !stored.WaError.Valid {
		t.Error("expected the send error to be recorded")
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Status != "pending" {
		t.Errorf("expected one 'pending' notification, got %+v", notifier.calls)
	}
}

func TestSend_TransportError(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "pending")
	sender := &mockSender{err: errors.New("connection refused")}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "could not reach the WhatsApp service, check the integration" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestSend_UpstreamRejection(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "pending")
	sender := &mockSender{result: &waflow.SendResult{OK: false, Message: "invalid phone number"}}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "WhatsApp service rejected the message: invalid phone number" {
		t.Errorf("error: got %v", resp["error"])
	}
	if store.requests[req.ID].Status != "pending" {
		t.Errorf("stored status: got %s, want pending", store.requests[req.ID].Status)
	}
}

func TestSend_AmbiguousResponse(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "pending")
	sender := &mockSender{result: &waflow.SendResult{OK: true, Ambiguous: true}}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeJSON(t, rr)
	if resp["ambiguous"] != true {
		t.Errorf("ambiguous: got %v, want true", resp["ambiguous"])
	}
	if resp["message"] != "WhatsApp service accepted the request but gave no delivery signal" {
		t.Errorf("message: got %v", resp["message"])
	}
}

func TestSend_TerminalStatus(t *testing.T) {
	store := newMockSendStore()
	req := seedSendRequest(store, "confirmed")
	sender := &mockSender{result: &waflow.SendResult{OK: true}}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/"+req.ID.String()+"/send", nil)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestSend_NotFound(t *testing.T) {
	store := newMockSendStore()
	sender := &mockSender{result: &waflow.SendResult{OK: true}}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/"+uuid.New().String()+"/send", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSend_InvalidID(t *testing.T) {
	store := newMockSendStore()
	sender := &mockSender{result: &waflow.SendResult{OK: true}}
	router := setupSendRouter(store, sender, nil)

	rr := doRequest(t, router, "POST", "/requests/not-a-uuid/send", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
