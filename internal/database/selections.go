package database

import (
	"context"

	"github.com/google/uuid"
)

const createConfirmedItem = `
INSERT INTO confirmed_items (request_id, item_id, price_paise)
VALUES ($1, $2, $3)`

type CreateConfirmedItemParams struct {
	RequestID  uuid.UUID
	ItemID     uuid.UUID
	PricePaise int64
}

func (q *Queries) CreateConfirmedItem(ctx context.Context, arg CreateConfirmedItemParams) error {
	_, err := q.db.Exec(ctx, createConfirmedItem, arg.RequestID, arg.ItemID, arg.PricePaise)
	return err
}

const createConfirmedAddon = `
INSERT INTO confirmed_addons (request_id, addon_id, price_paise)
VALUES ($1, $2, $3)`

type CreateConfirmedAddonParams struct {
	RequestID  uuid.UUID
	AddonID    uuid.UUID
	PricePaise int64
}

func (q *Queries) CreateConfirmedAddon(ctx context.Context, arg CreateConfirmedAddonParams) error {
	_, err := q.db.Exec(ctx, createConfirmedAddon, arg.RequestID, arg.AddonID, arg.PricePaise)
	return err
}

const createConfirmedBundle = `
INSERT INTO confirmed_bundles (request_id, bundle_id, price_paise)
VALUES ($1, $2, $3)`

type CreateConfirmedBundleParams struct {
	RequestID  uuid.UUID
	BundleID   uuid.UUID
	PricePaise int64
}

func (q *Queries) CreateConfirmedBundle(ctx context.Context, arg CreateConfirmedBundleParams) error {
	_, err := q.db.Exec(ctx, createConfirmedBundle, arg.RequestID, arg.BundleID, arg.PricePaise)
	return err
}

// ConfirmedItemDetail is a frozen line item joined with its label for display.
type ConfirmedItemDetail struct {
	ItemID     uuid.UUID
	Label      string
	Kind       string
	PricePaise int64
}

const listConfirmedItemDetails = `
SELECT ci.item_id, ri.label, ri.kind, ci.price_paise
FROM confirmed_items ci
JOIN request_items ri ON ri.id = ci.item_id
WHERE ci.request_id = $1
ORDER BY ri.sort_order, ri.label`

func (q *Queries) ListConfirmedItemDetails(ctx context.Context, requestID uuid.UUID) ([]ConfirmedItemDetail, error) {
	rows, err := q.db.Query(ctx, listConfirmedItemDetails, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConfirmedItemDetail
	for rows.Next() {
		var d ConfirmedItemDetail
		if err := rows.Scan(&d.ItemID, &d.Label, &d.Kind, &d.PricePaise); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// ConfirmedAddonDetail is a frozen add-on joined with its name for display.
type ConfirmedAddonDetail struct {
	AddonID    uuid.UUID
	Name       string
	PricePaise int64
}

const listConfirmedAddonDetails = `
SELECT ca.addon_id, a.name, ca.price_paise
FROM confirmed_addons ca
JOIN addons a ON a.id = ca.addon_id
WHERE ca.request_id = $1
ORDER BY a.name`

func (q *Queries) ListConfirmedAddonDetails(ctx context.Context, requestID uuid.UUID) ([]ConfirmedAddonDetail, error) {
	rows, err := q.db.Query(ctx, listConfirmedAddonDetails, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConfirmedAddonDetail
	for rows.Next() {
		var d ConfirmedAddonDetail
		if err := rows.Scan(&d.AddonID, &d.Name, &d.PricePaise); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// ConfirmedBundleDetail is the frozen bundle joined with its name for display.
type ConfirmedBundleDetail struct {
	BundleID   uuid.UUID
	Name       string
	PricePaise int64
}

const listConfirmedBundleDetails = `
SELECT cb.bundle_id, b.name, cb.price_paise
FROM confirmed_bundles cb
JOIN service_bundles b ON b.id = cb.bundle_id
WHERE cb.request_id = $1`

func (q *Queries) ListConfirmedBundleDetails(ctx context.Context, requestID uuid.UUID) ([]ConfirmedBundleDetail, error) {
	rows, err := q.db.Query(ctx, listConfirmedBundleDetails, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConfirmedBundleDetail
	for rows.Next() {
		var d ConfirmedBundleDetail
		if err := rows.Scan(&d.BundleID, &d.Name, &d.PricePaise); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
