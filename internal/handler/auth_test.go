package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedalpoint/api/internal/auth"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/handler"
	"github.com/pedalpoint/api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

// --- Shared helpers ---

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeJSONList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// mockNotifier records status broadcasts.
type mockNotifier struct {
	calls []notifyCall
}

type notifyCall struct {
	RequestID   uuid.UUID
	OrderNumber string
	Status      string
}

func (m *mockNotifier) NotifyStatus(requestID uuid.UUID, orderNumber, status string) {
	m.calls = append(m.calls, notifyCall{RequestID: requestID, OrderNumber: orderNumber, Status: status})
}

// --- Mock store ---

type mockAuthStore struct {
	users map[uuid.UUID]database.AdminUser
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{users: make(map[uuid.UUID]database.AdminUser)}
}

func (m *mockAuthStore) addUser(t *testing.T, username, password string) database.AdminUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := database.AdminUser{
		ID:             uuid.New(),
		Username:       username,
		HashedPassword: string(hash),
		FullName:       "Test Admin",
		CreatedAt:      time.Now(),
	}
	m.users[u.ID] = u
	return u
}

func (m *mockAuthStore) GetAdminByUsername(_ context.Context, username string) (database.AdminUser, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return database.AdminUser{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetAdminByID(_ context.Context, id uuid.UUID) (database.AdminUser, error) {
	u, ok := m.users[id]
	if !ok {
		return database.AdminUser{}, pgx.ErrNoRows
	}
	return u, nil
}

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret, false)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Authenticate(testJWTSecret))
		h.RegisterAuthenticatedRoutes(gr)
	})
	return r
}

// --- Login tests ---

func TestLogin_Valid(t *testing.T) {
	store := newMockAuthStore()
	user := store.addUser(t, "admin", "hunter2")
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"username": "admin",
		"password": "hunter2",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected a token in the response")
	}
	u, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", resp["user"])
	}
	if u["id"] != user.ID.String() {
		t.Errorf("user id: got %v, want %s", u["id"], user.ID)
	}
	if u["username"] != "admin" {
		t.Errorf("username: got %v, want admin", u["username"])
	}
	if u["role"] != "ADMIN" {
		t.Errorf("role: got %v, want ADMIN", u["role"])
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(t, "admin", "hunter2")
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"username": "admin",
		"password": "hunter2",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("session cookie not set")
	}
	if session.Value == "" {
		t.Error("session cookie is empty")
	}
	if !session.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if session.MaxAge != int(auth.TokenTTL.Seconds()) {
		t.Errorf("cookie max-age: got %d, want %d", session.MaxAge, int(auth.TokenTTL.Seconds()))
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(t, "admin", "hunter2")
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"username": "admin",
		"password": "wrong",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v, want 'invalid credentials'", resp["error"])
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"username": "ghost",
		"password": "whatever",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	// Same message as a wrong password so usernames cannot be probed.
	resp := decodeJSON(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v, want 'invalid credentials'", resp["error"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"username": "admin",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", "not json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Logout tests ---

func TestLogout_ClearsCookie(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/logout", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("expected an expiring session cookie")
	}
	if session.MaxAge >= 0 {
		t.Errorf("cookie max-age: got %d, want < 0", session.MaxAge)
	}
}

// --- Me tests ---

func TestMe_Valid(t *testing.T) {
	store := newMockAuthStore()
	user := store.addUser(t, "admin", "hunter2")
	router := setupAuthRouter(store)

	token, err := auth.GenerateToken(testJWTSecret, user.ID, user.Username, "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["username"] != "admin" {
		t.Errorf("username: got %v, want admin", resp["username"])
	}
	if resp["full_name"] != "Test Admin" {
		t.Errorf("full_name: got %v, want 'Test Admin'", resp["full_name"])
	}
}

func TestMe_SessionCookie(t *testing.T) {
	store := newMockAuthStore()
	user := store.addUser(t, "admin", "hunter2")
	router := setupAuthRouter(store)

	token, err := auth.GenerateToken(testJWTSecret, user.ID, user.Username, "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestMe_NoToken(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "GET", "/auth/me", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMe_InvalidToken(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMe_DeletedUser(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	token, err := auth.GenerateToken(testJWTSecret, uuid.New(), "gone", "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
