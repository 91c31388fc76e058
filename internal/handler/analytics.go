package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/rs/zerolog/log"
)

// AnalyticsStore defines the database methods needed by the analytics handler.
// Satisfied by *database.Queries; narrow interface for testability.
type AnalyticsStore interface {
	GetDailyRequestStats(ctx context.Context, arg database.GetDailyRequestStatsParams) ([]database.GetDailyRequestStatsRow, error)
	GetStatusSummary(ctx context.Context, arg database.GetStatusSummaryParams) ([]database.GetStatusSummaryRow, error)
}

// AnalyticsHandler serves the dashboard summary figures.
type AnalyticsHandler struct {
	store AnalyticsStore
}

func NewAnalyticsHandler(store AnalyticsStore) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// RegisterRoutes registers the analytics endpoint on the given Chi router.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics", h.Get)
}

type dailyStatResponse struct {
	Day            string `json:"day"`
	RequestCount   int64  `json:"request_count"`
	ConfirmedCount int64  `json:"confirmed_count"`
	RevenuePaise   int64  `json:"revenue_paise"`
	RevenueDisplay string `json:"revenue_display"`
}

type statusSummaryResponse struct {
	Status       string `json:"status"`
	RequestCount int64  `json:"request_count"`
	TotalPaise   int64  `json:"total_paise"`
}

type analyticsResponse struct {
	StartDate string                  `json:"start_date"`
	EndDate   string                  `json:"end_date"`
	Daily     []dailyStatResponse     `json:"daily"`
	Statuses  []statusSummaryResponse `json:"statuses"`
}

// Get handles GET /analytics. Defaults to the trailing 30 days; start_date and
// end_date narrow the range (end_date is inclusive, so the query runs to the
// following midnight).
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
	end := now.Truncate(24 * time.Hour).AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		start = parsed
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		end = parsed.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must not be before start_date"})
		return
	}

	startTs := pgtype.Timestamptz{Time: start, Valid: true}
	endTs := pgtype.Timestamptz{Time: end, Valid: true}

	daily, err := h.store.GetDailyRequestStats(r.Context(), database.GetDailyRequestStatsParams{
		StartDate: startTs,
		EndDate:   endTs,
	})
	if err != nil {
		log.Error().Err(err).Msg("get daily request stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	statuses, err := h.store.GetStatusSummary(r.Context(), database.GetStatusSummaryParams{
		StartDate: startTs,
		EndDate:   endTs,
	})
	if err != nil {
		log.Error().Err(err).Msg("get status summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := analyticsResponse{
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.AddDate(0, 0, -1).Format("2006-01-02"),
		Daily:     make([]dailyStatResponse, 0, len(daily)),
		Statuses:  make([]statusSummaryResponse, 0, len(statuses)),
	}
	for _, d := range daily {
		resp.Daily = append(resp.Daily, dailyStatResponse{
			Day:            d.Day.Time.Format("2006-01-02"),
			RequestCount:   d.RequestCount,
			ConfirmedCount: d.ConfirmedCount,
			RevenuePaise:   d.RevenuePaise,
			RevenueDisplay: billing.FormatPaise(d.RevenuePaise),
		})
	}
	for _, s := range statuses {
		resp.Statuses = append(resp.Statuses, statusSummaryResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}
