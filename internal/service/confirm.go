package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/enum"
	"github.com/pedalpoint/api/internal/selection"
)

// Errors returned by the confirm service.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyConfirmed = errors.New("order is already confirmed")
	ErrOrderCancelled   = errors.New("order is cancelled")
	ErrMinimumSelection = errors.New("at least one billable selection is required")
)

// ConfirmStore defines the DB methods needed to confirm an order.
// Satisfied by *database.Queries (and its WithTx variant).
type ConfirmStore interface {
	GetRequestBySlug(ctx context.Context, slug string) (database.ServiceRequest, error)
	ListRequestItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]database.RequestItem, error)
	ListAddons(ctx context.Context, activeOnly bool) ([]database.Addon, error)
	ListBundles(ctx context.Context, activeOnly bool) ([]database.ServiceBundle, error)
	GetLaCarteSettings(ctx context.Context) (database.LaCarteSettings, error)
	ConfirmRequest(ctx context.Context, arg database.ConfirmRequestParams) (database.ServiceRequest, error)
	CreateConfirmedItem(ctx context.Context, arg database.CreateConfirmedItemParams) error
	CreateConfirmedAddon(ctx context.Context, arg database.CreateConfirmedAddonParams) error
	CreateConfirmedBundle(ctx context.Context, arg database.CreateConfirmedBundleParams) error
}

// NewConfirmStore creates a ConfirmStore from a DBTX (pool or tx).
type NewConfirmStore func(db database.DBTX) ConfirmStore

// ConfirmResult is the confirmed request with its frozen selection value.
type ConfirmResult struct {
	Request database.ServiceRequest
	Totals  selection.Totals
}

// ConfirmService freezes a customer's selection into an order.
type ConfirmService struct {
	pool     TxBeginner
	newStore NewConfirmStore
}

func NewConfirmService(pool TxBeginner, newStore NewConfirmStore) *ConfirmService {
	return &ConfirmService{pool: pool, newStore: newStore}
}

// Confirm atomically moves the order to confirmed and writes the frozen
// selection (items, add-ons, bundle) with prices captured at this moment.
// Either everything commits or the order stays exactly as it was; there is
// no partial confirmation.
func (s *ConfirmService) Confirm(ctx context.Context, slug string, sel selection.State) (*ConfirmResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	request, err := store.GetRequestBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}

	switch request.Status {
	case enum.RequestStatusConfirmed:
		return nil, ErrAlreadyConfirmed
	case enum.RequestStatusCancelled:
		return nil, ErrOrderCancelled
	}

	items, err := store.ListRequestItemsByRequest(ctx, request.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	addons, err := store.ListAddons(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list addons: %w", err)
	}
	bundles, err := store.ListBundles(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	settings, err := store.GetLaCarteSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lacarte settings: %w", err)
	}

	catalog := BuildCatalog(items, addons, bundles)
	sel = sel.Sanitize(catalog)

	var lacarteOverride *int64
	if request.LacartePaise.Valid {
		lacarteOverride = &request.LacartePaise.Int64
	}
	lacarte := billing.EffectiveLaCarte(lacarteOverride, settings.CurrentPricePaise)

	if !sel.CanConfirm(catalog, lacarte) {
		return nil, ErrMinimumSelection
	}
	totals := sel.ComputeTotals(catalog, lacarte)

	confirmed, err := store.ConfirmRequest(ctx, database.ConfirmRequestParams{
		ID:            request.ID,
		SubtotalPaise: totals.SubtotalPaise,
		TotalPaise:    totals.TotalPaise,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to another confirmation or a cancel.
			return nil, ErrAlreadyConfirmed
		}
		return nil, fmt.Errorf("confirm request: %w", err)
	}

	for _, id := range sel.ItemIDs {
		err := store.CreateConfirmedItem(ctx, database.CreateConfirmedItemParams{
			RequestID:  request.ID,
			ItemID:     id,
			PricePaise: catalog.ItemPrices[id],
		})
		if err != nil {
			return nil, fmt.Errorf("freeze item: %w", err)
		}
	}
	for _, id := range sel.AddonIDs {
		err := store.CreateConfirmedAddon(ctx, database.CreateConfirmedAddonParams{
			RequestID:  request.ID,
			AddonID:    id,
			PricePaise: catalog.AddonPrices[id],
		})
		if err != nil {
			return nil, fmt.Errorf("freeze addon: %w", err)
		}
	}
	if sel.BundleID != nil {
		err := store.CreateConfirmedBundle(ctx, database.CreateConfirmedBundleParams{
			RequestID:  request.ID,
			BundleID:   *sel.BundleID,
			PricePaise: catalog.BundlePrices[*sel.BundleID],
		})
		if err != nil {
			return nil, fmt.Errorf("freeze bundle: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ConfirmResult{Request: confirmed, Totals: totals}, nil
}

// BuildCatalog maps live catalog rows into the price lookup a selection is
// valued against.
func BuildCatalog(items []database.RequestItem, addons []database.Addon, bundles []database.ServiceBundle) selection.Catalog {
	cat := selection.Catalog{
		ItemPrices:   make(map[uuid.UUID]int64, len(items)),
		AddonPrices:  make(map[uuid.UUID]int64, len(addons)),
		BundlePrices: make(map[uuid.UUID]int64, len(bundles)),
	}
	for _, it := range items {
		cat.ItemPrices[it.ID] = it.PricePaise
	}
	for _, a := range addons {
		cat.AddonPrices[a.ID] = a.PricePaise
	}
	for _, b := range bundles {
		cat.BundlePrices[b.ID] = b.PricePaise
	}
	return cat
}

// DefaultSelection is the initial selection for a fresh order: exactly the
// items the admin flagged as suggested.
func DefaultSelection(items []database.RequestItem) selection.State {
	var st selection.State
	for _, it := range items {
		if it.IsSuggested {
			st.ItemIDs = append(st.ItemIDs, it.ID)
		}
	}
	return st
}
