package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/handler"
)

// --- Mock store ---

type mockBundleStore struct {
	bundles  map[uuid.UUID]database.ServiceBundle
	features map[uuid.UUID][]database.BundleFeature
}

func newMockBundleStore() *mockBundleStore {
	return &mockBundleStore{
		bundles:  make(map[uuid.UUID]database.ServiceBundle),
		features: make(map[uuid.UUID][]database.BundleFeature),
	}
}

func (m *mockBundleStore) CreateBundle(_ context.Context, arg database.CreateBundleParams) (database.ServiceBundle, error) {
	b := database.ServiceBundle{
		ID:          uuid.New(),
		Name:        arg.Name,
		Description: arg.Description,
		PricePaise:  arg.PricePaise,
		IsActive:    arg.IsActive,
		CreatedAt:   time.Now(),
	}
	m.bundles[b.ID] = b
	return b, nil
}

func (m *mockBundleStore) GetBundle(_ context.Context, id uuid.UUID) (database.ServiceBundle, error) {
	b, ok := m.bundles[id]
	if !ok {
		return database.ServiceBundle{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *mockBundleStore) ListBundles(_ context.Context, activeOnly bool) ([]database.ServiceBundle, error) {
	var result []database.ServiceBundle
	for _, b := range m.bundles {
		if activeOnly && !b.IsActive {
			continue
		}
		result = append(result, b)
	}
	return result, nil
}

func (m *mockBundleStore) UpdateBundle(_ context.Context, arg database.UpdateBundleParams) (database.ServiceBundle, error) {
	b, ok := m.bundles[arg.ID]
	if !ok {
		return database.ServiceBundle{}, pgx.ErrNoRows
	}
	b.Name = arg.Name
	b.Description = arg.Description
	b.PricePaise = arg.PricePaise
	b.IsActive = arg.IsActive
	m.bundles[b.ID] = b
	return b, nil
}

func (m *mockBundleStore) DeleteBundle(_ context.Context, id uuid.UUID) (int64, error) {
	if _, ok := m.bundles[id]; !ok {
		return 0, nil
	}
	delete(m.bundles, id)
	delete(m.features, id)
	return 1, nil
}

func (m *mockBundleStore) CreateBundleFeature(_ context.Context, arg database.CreateBundleFeatureParams) (database.BundleFeature, error) {
	f := database.BundleFeature{
		ID:        uuid.New(),
		BundleID:  arg.BundleID,
		Feature:   arg.Feature,
		SortOrder: arg.SortOrder,
	}
	m.features[arg.BundleID] = append(m.features[arg.BundleID], f)
	return f, nil
}

func (m *mockBundleStore) ListBundleFeatures(_ context.Context, bundleID uuid.UUID) ([]database.BundleFeature, error) {
	return m.features[bundleID], nil
}

func (m *mockBundleStore) DeleteBundleFeatures(_ context.Context, bundleID uuid.UUID) error {
	delete(m.features, bundleID)
	return nil
}

func setupBundleRouter(store *mockBundleStore) *chi.Mux {
	h := handler.NewBundleHandler(store)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func seedBundle(store *mockBundleStore, name string, price int64, active bool, features ...string) database.ServiceBundle {
	b := database.ServiceBundle{
		ID:         uuid.New(),
		Name:       name,
		PricePaise: price,
		IsActive:   active,
		CreatedAt:  time.Now(),
	}
	store.bundles[b.ID] = b
	for i, f := range features {
		store.features[b.ID] = append(store.features[b.ID], database.BundleFeature{
			ID: uuid.New(), BundleID: b.ID, Feature: f, SortOrder: int32(i),
		})
	}
	return b
}

// --- Create tests ---

func TestBundleCreate_WithFeatures(t *testing.T) {
	store := newMockBundleStore()
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "POST", "/bundles", map[string]interface{}{
		"name":        "Complete Care",
		"description": "The whole bike, top to bottom",
		"price_paise": 49900,
		"features":    []string{"Full strip-down", "Bearing service", "Gear tune"},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["name"] != "Complete Care" {
		t.Errorf("name: got %v, want 'Complete Care'", resp["name"])
	}
	features, _ := resp["features"].([]interface{})
	if len(features) != 3 {
		t.Fatalf("expected 3 features, got %v", resp["features"])
	}
	if features[0] != "Full strip-down" {
		t.Errorf("features[0]: got %v, want 'Full strip-down'", features[0])
	}
}

func TestBundleCreate_MissingName(t *testing.T) {
	store := newMockBundleStore()
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "POST", "/bundles", map[string]interface{}{
		"price_paise": 49900,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestBundleCreate_NegativePrice(t *testing.T) {
	store := newMockBundleStore()
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "POST", "/bundles", map[string]interface{}{
		"name":        "Complete Care",
		"price_paise": -1,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- List / Get tests ---

func TestBundleList_ActiveFilter(t *testing.T) {
	store := newMockBundleStore()
	seedBundle(store, "Complete Care", 49900, true, "Full strip-down")
	seedBundle(store, "Old Promo", 29900, false)
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "GET", "/bundles?active=1", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeJSONList(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(resp))
	}
	features, _ := resp[0]["features"].([]interface{})
	if len(features) != 1 {
		t.Errorf("expected 1 feature, got %v", resp[0]["features"])
	}
}

func TestBundleGet_Valid(t *testing.T) {
	store := newMockBundleStore()
	bundle := seedBundle(store, "Complete Care", 49900, true, "Full strip-down", "Gear tune")
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "GET", "/bundles/"+bundle.ID.String(), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeJSON(t, rr)
	if resp["price_paise"] != float64(49900) {
		t.Errorf("price_paise: got %v, want 49900", resp["price_paise"])
	}
	features, _ := resp["features"].([]interface{})
	if len(features) != 2 {
		t.Errorf("expected 2 features, got %v", resp["features"])
	}
}

func TestBundleGet_NotFound(t *testing.T) {
	store := newMockBundleStore()
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "GET", "/bundles/"+uuid.New().String(), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Update tests ---

func TestBundleUpdate_RewritesFeatures(t *testing.T) {
	store := newMockBundleStore()
	bundle := seedBundle(store, "Complete Care", 49900, true, "Old feature one", "Old feature two")
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "PATCH", "/bundles/"+bundle.ID.String(), map[string]interface{}{
		"features": []string{"New feature"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	features, _ := resp["features"].([]interface{})
	if len(features) != 1 {
		t.Fatalf("expected 1 feature after rewrite, got %v", resp["features"])
	}
	if features[0] != "New feature" {
		t.Errorf("features[0]: got %v, want 'New feature'", features[0])
	}
}

func TestBundleUpdate_OmittedFeaturesKept(t *testing.T) {
	store := newMockBundleStore()
	bundle := seedBundle(store, "Complete Care", 49900, true, "Full strip-down")
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "PATCH", "/bundles/"+bundle.ID.String(), map[string]interface{}{
		"price_paise": 52900,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeJSON(t, rr)
	if resp["price_paise"] != float64(52900) {
		t.Errorf("price_paise: got %v, want 52900", resp["price_paise"])
	}
	features, _ := resp["features"].([]interface{})
	if len(features) != 1 {
		t.Errorf("features should be untouched, got %v", resp["features"])
	}
}

func TestBundleUpdate_NotFound(t *testing.T) {
	store := newMockBundleStore()
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "PATCH", "/bundles/"+uuid.New().String(), map[string]interface{}{
		"price_paise": 52900,
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Delete tests ---

func TestBundleDelete_Valid(t *testing.T) {
	store := newMockBundleStore()
	bundle := seedBundle(store, "Complete Care", 49900, true, "Full strip-down")
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "DELETE", "/bundles/"+bundle.ID.String(), nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if _, ok := store.bundles[bundle.ID]; ok {
		t.Error("bundle should have been deleted")
	}
}

func TestBundleDelete_NotFound(t *testing.T) {
	store := newMockBundleStore()
	router := setupBundleRouter(store)

	rr := doRequest(t, router, "DELETE", "/bundles/"+uuid.New().String(), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
