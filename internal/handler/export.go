package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/rs/zerolog/log"
)

// ExportStore defines the database methods needed by the CSV export.
// Satisfied by *database.Queries; narrow interface for testability.
type ExportStore interface {
	ListRequests(ctx context.Context, arg database.ListRequestsParams) ([]database.ServiceRequest, error)
	ListConfirmedItemDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedItemDetail, error)
	ListConfirmedAddonDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedAddonDetail, error)
	ListConfirmedBundleDetails(ctx context.Context, requestID uuid.UUID) ([]database.ConfirmedBundleDetail, error)
}

// ExportHandler streams the request ledger as CSV.
type ExportHandler struct {
	store ExportStore
}

func NewExportHandler(store ExportStore) *ExportHandler {
	return &ExportHandler{store: store}
}

// RegisterRoutes registers the export endpoint on the given Chi router.
func (h *ExportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/requests/export", h.Export)
}

// exportPageSize bounds memory per page while walking the full table.
const exportPageSize = 500

// Export handles GET /requests/export. The file opens with a UTF-8 BOM so
// spreadsheet apps detect the encoding; quoting is RFC 4180 via encoding/csv.
// ?expand=1 adds the confirmed selection detail columns, ?status= filters.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	expand := r.URL.Query().Get("expand") == "1"

	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidRequestStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="service-requests-%s.csv"`, time.Now().Format("2006-01-02")))

	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		log.Error().Err(err).Msg("write csv bom")
		return
	}

	cw := csv.NewWriter(w)
	header := []string{
		"order_number", "customer_name", "customer_phone", "bike_name",
		"status", "subtotal_rupees", "lacarte_rupees", "total_rupees",
		"created_at", "confirmed_at",
	}
	if expand {
		header = append(header, "services", "addons", "bundle")
	}
	if err := cw.Write(header); err != nil {
		log.Error().Err(err).Msg("write csv header")
		return
	}

	for offset := 0; ; offset += exportPageSize {
		requests, err := h.store.ListRequests(r.Context(), database.ListRequestsParams{
			Status: status,
			Limit:  exportPageSize,
			Offset: int32(offset),
		})
		if err != nil {
			// Headers are gone; all we can do is log and stop the stream.
			log.Error().Err(err).Msg("list requests for export")
			return
		}
		if len(requests) == 0 {
			break
		}

		for _, req := range requests {
			record, err := h.exportRecord(r.Context(), req, expand)
			if err != nil {
				log.Error().Err(err).Str("order_number", req.OrderNumber).Msg("build export record")
				return
			}
			if err := cw.Write(record); err != nil {
				log.Error().Err(err).Msg("write csv record")
				return
			}
		}

		if len(requests) < exportPageSize {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Error().Err(err).Msg("flush csv")
	}
}

func (h *ExportHandler) exportRecord(ctx context.Context, req database.ServiceRequest, expand bool) ([]string, error) {
	lacarte := ""
	if req.LacartePaise.Valid {
		lacarte = billing.FormatPaise(req.LacartePaise.Int64)
	}
	confirmedAt := ""
	if req.ConfirmedAt.Valid {
		confirmedAt = req.ConfirmedAt.Time.Format(time.RFC3339)
	}

	record := []string{
		req.OrderNumber,
		req.CustomerName,
		req.CustomerPhone,
		req.BikeName,
		req.Status,
		billing.FormatPaise(req.SubtotalPaise),
		lacarte,
		billing.FormatPaise(req.TotalPaise),
		req.CreatedAt.Format(time.RFC3339),
		confirmedAt,
	}
	if !expand {
		return record, nil
	}

	var services, addons, bundle []string
	items, err := h.store.ListConfirmedItemDetails(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range items {
		services = append(services, fmt.Sprintf("%s (%s)", d.Label, billing.FormatPaise(d.PricePaise)))
	}
	addonDetails, err := h.store.ListConfirmedAddonDetails(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range addonDetails {
		addons = append(addons, fmt.Sprintf("%s (%s)", d.Name, billing.FormatPaise(d.PricePaise)))
	}
	bundleDetails, err := h.store.ListConfirmedBundleDetails(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range bundleDetails {
		bundle = append(bundle, fmt.Sprintf("%s (%s)", d.Name, billing.FormatPaise(d.PricePaise)))
	}

	return append(record,
		strings.Join(services, "; "),
		strings.Join(addons, "; "),
		strings.Join(bundle, "; "),
	), nil
}
