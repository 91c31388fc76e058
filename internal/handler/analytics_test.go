package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/handler"
)

type mockAnalyticsStore struct {
	daily     []database.GetDailyRequestStatsRow
	statuses  []database.GetStatusSummaryRow
	lastStart pgtype.Timestamptz
	lastEnd   pgtype.Timestamptz
}

func (m *mockAnalyticsStore) GetDailyRequestStats(_ context.Context, arg database.GetDailyRequestStatsParams) ([]database.GetDailyRequestStatsRow, error) {
	m.lastStart = arg.StartDate
	m.lastEnd = arg.EndDate
	return m.daily, nil
}

func (m *mockAnalyticsStore) GetStatusSummary(_ context.Context, _ database.GetStatusSummaryParams) ([]database.GetStatusSummaryRow, error) {
	return m.statuses, nil
}

func setupAnalyticsRouter(store *mockAnalyticsStore) *chi.Mux {
	h := handler.NewAnalyticsHandler(store)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestAnalytics_ResponseMapping(t *testing.T) {
	store := &mockAnalyticsStore{
		daily: []database.GetDailyRequestStatsRow{
			{
				Day:            pgtype.Date{Time: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), Valid: true},
				RequestCount:   4,
				ConfirmedCount: 2,
				RevenuePaise:   59800,
			},
		},
		statuses: []database.GetStatusSummaryRow{
			{Status: "confirmed", RequestCount: 2, TotalPaise: 59800},
			{Status: "sent", RequestCount: 2, TotalPaise: 40000},
		},
	}
	router := setupAnalyticsRouter(store)

	rr := doRequest(t, router, "GET", "/analytics?start_date=2026-08-01&end_date=2026-08-31", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["start_date"] != "2026-08-01" {
		t.Errorf("start_date: got %v, want 2026-08-01", resp["start_date"])
	}
	if resp["end_date"] != "2026-08-31" {
		t.Errorf("end_date: got %v, want 2026-08-31", resp["end_date"])
	}

	daily, _ := resp["daily"].([]interface{})
	if len(daily) != 1 {
		t.Fatalf("expected 1 daily row, got %v", resp["daily"])
	}
	row := daily[0].(map[string]interface{})
	if row["day"] != "2026-08-15" {
		t.Errorf("day: got %v, want 2026-08-15", row["day"])
	}
	if row["revenue_paise"] != float64(59800) {
		t.Errorf("revenue_paise: got %v, want 59800", row["revenue_paise"])
	}
	if row["revenue_display"] != "598.00" {
		t.Errorf("revenue_display: got %v, want 598.00", row["revenue_display"])
	}

	statuses, _ := resp["statuses"].([]interface{})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 status rows, got %v", resp["statuses"])
	}
	first := statuses[0].(map[string]interface{})
	if first["status"] != "confirmed" || first["request_count"] != float64(2) {
		t.Errorf("status row: %v", first)
	}
}

func TestAnalytics_EndDateIsInclusive(t *testing.T) {
	store := &mockAnalyticsStore{}
	router := setupAnalyticsRouter(store)

	rr := doRequest(t, router, "GET", "/analytics?start_date=2026-08-01&end_date=2026-08-31", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	// The query upper bound is the midnight after the requested end date.
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !store.lastEnd.Time.Equal(want) {
		t.Errorf("query end: got %v, want %v", store.lastEnd.Time, want)
	}
}

func TestAnalytics_DefaultsToTrailing30Days(t *testing.T) {
	store := &mockAnalyticsStore{}
	router := setupAnalyticsRouter(store)

	rr := doRequest(t, router, "GET", "/analytics", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	span := store.lastEnd.Time.Sub(store.lastStart.Time)
	if span < 30*24*time.Hour || span > 32*24*time.Hour {
		t.Errorf("default span: got %v, want about 31 days", span)
	}
}

func TestAnalytics_InvalidStartDate(t *testing.T) {
	router := setupAnalyticsRouter(&mockAnalyticsStore{})

	rr := doRequest(t, router, "GET", "/analytics?start_date=15-08-2026", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "invalid start_date format, use YYYY-MM-DD" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestAnalytics_InvalidEndDate(t *testing.T) {
	router := setupAnalyticsRouter(&mockAnalyticsStore{})

	rr := doRequest(t, router, "GET", "/analytics?end_date=soon", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAnalytics_InvertedRange(t *testing.T) {
	router := setupAnalyticsRouter(&mockAnalyticsStore{})

	rr := doRequest(t, router, "GET", "/analytics?start_date=2026-08-31&end_date=2026-08-01", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "end_date must not be before start_date" {
		t.Errorf("error: got %v", resp["error"])
	}
}
