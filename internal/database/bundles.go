package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createBundle = `
INSERT INTO service_bundles (name, description, price_paise, is_active)
VALUES ($1, $2, $3, $4)
RETURNING id, name, description, price_paise, is_active, created_at`

type CreateBundleParams struct {
	Name        string
	Description pgtype.Text
	PricePaise  int64
	IsActive    bool
}

func (q *Queries) CreateBundle(ctx context.Context, arg CreateBundleParams) (ServiceBundle, error) {
	row := q.db.QueryRow(ctx, createBundle, arg.Name, arg.Description, arg.PricePaise, arg.IsActive)
	var b ServiceBundle
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.PricePaise, &b.IsActive, &b.CreatedAt)
	return b, err
}

const getBundle = `
SELECT id, name, description, price_paise, is_active, created_at
FROM service_bundles WHERE id = $1`

func (q *Queries) GetBundle(ctx context.Context, id uuid.UUID) (ServiceBundle, error) {
	var b ServiceBundle
	err := q.db.QueryRow(ctx, getBundle, id).Scan(&b.ID, &b.Name, &b.Description, &b.PricePaise, &b.IsActive, &b.CreatedAt)
	return b, err
}

const listBundles = `
SELECT id, name, description, price_paise, is_active, created_at
FROM service_bundles
WHERE NOT $1::bool OR is_active
ORDER BY name`

func (q *Queries) ListBundles(ctx context.Context, activeOnly bool) ([]ServiceBundle, error) {
	rows, err := q.db.Query(ctx, listBundles, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ServiceBundle
	for rows.Next() {
		var b ServiceBundle
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.PricePaise, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

const updateBundle = `
UPDATE service_bundles
SET name = $2, description = $3, price_paise = $4, is_active = $5
WHERE id = $1
RETURNING id, name, description, price_paise, is_active, created_at`

type UpdateBundleParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	PricePaise  int64
	IsActive    bool
}

func (q *Queries) UpdateBundle(ctx context.Context, arg UpdateBundleParams) (ServiceBundle, error) {
	row := q.db.QueryRow(ctx, updateBundle, arg.ID, arg.Name, arg.Description, arg.PricePaise, arg.IsActive)
	var b ServiceBundle
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.PricePaise, &b.IsActive, &b.CreatedAt)
	return b, err
}

const deleteBundle = `DELETE FROM service_bundles WHERE id = $1`

func (q *Queries) DeleteBundle(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteBundle, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const createBundleFeature = `
INSERT INTO bundle_features (bundle_id, feature, sort_order)
VALUES ($1, $2, $3)
RETURNING id, bundle_id, feature, sort_order`

type CreateBundleFeatureParams struct {
	BundleID  uuid.UUID
	Feature   string
	SortOrder int32
}

func (q *Queries) CreateBundleFeature(ctx context.Context, arg CreateBundleFeatureParams) (BundleFeature, error) {
	row := q.db.QueryRow(ctx, createBundleFeature, arg.BundleID, arg.Feature, arg.SortOrder)
	var f BundleFeature
	err := row.Scan(&f.ID, &f.BundleID, &f.Feature, &f.SortOrder)
	return f, err
}

const listBundleFeatures = `
SELECT id, bundle_id, feature, sort_order
FROM bundle_features
WHERE bundle_id = $1
ORDER BY sort_order`

func (q *Queries) ListBundleFeatures(ctx context.Context, bundleID uuid.UUID) ([]BundleFeature, error) {
	rows, err := q.db.Query(ctx, listBundleFeatures, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BundleFeature
	for rows.Next() {
		var f BundleFeature
		if err := rows.Scan(&f.ID, &f.BundleID, &f.Feature, &f.SortOrder); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

const deleteBundleFeatures = `DELETE FROM bundle_features WHERE bundle_id = $1`

// DeleteBundleFeatures clears all features for a bundle; updates rewrite the
// full ordered list.
func (q *Queries) DeleteBundleFeatures(ctx context.Context, bundleID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteBundleFeatures, bundleID)
	return err
}
