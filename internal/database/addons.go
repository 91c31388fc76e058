package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createAddon = `
INSERT INTO addons (name, description, price_paise, is_active)
VALUES ($1, $2, $3, $4)
RETURNING id, name, description, price_paise, is_active, created_at`

type CreateAddonParams struct {
	Name        string
	Description pgtype.Text
	PricePaise  int64
	IsActive    bool
}

func (q *Queries) CreateAddon(ctx context.Context, arg CreateAddonParams) (Addon, error) {
	row := q.db.QueryRow(ctx, createAddon, arg.Name, arg.Description, arg.PricePaise, arg.IsActive)
	var a Addon
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.PricePaise, &a.IsActive, &a.CreatedAt)
	return a, err
}

const getAddon = `
SELECT id, name, description, price_paise, is_active, created_at
FROM addons WHERE id = $1`

func (q *Queries) GetAddon(ctx context.Context, id uuid.UUID) (Addon, error) {
	var a Addon
	err := q.db.QueryRow(ctx, getAddon, id).Scan(&a.ID, &a.Name, &a.Description, &a.PricePaise, &a.IsActive, &a.CreatedAt)
	return a, err
}

const listAddons = `
SELECT id, name, description, price_paise, is_active, created_at
FROM addons
WHERE NOT $1::bool OR is_active
ORDER BY name`

// ListAddons returns the add-on catalog; activeOnly limits it to what
// customers may select.
func (q *Queries) ListAddons(ctx context.Context, activeOnly bool) ([]Addon, error) {
	rows, err := q.db.Query(ctx, listAddons, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Addon
	for rows.Next() {
		var a Addon
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.PricePaise, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

const updateAddon = `
UPDATE addons
SET name = $2, description = $3, price_paise = $4, is_active = $5
WHERE id = $1
RETURNING id, name, description, price_paise, is_active, created_at`

type UpdateAddonParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	PricePaise  int64
	IsActive    bool
}

func (q *Queries) UpdateAddon(ctx context.Context, arg UpdateAddonParams) (Addon, error) {
	row := q.db.QueryRow(ctx, updateAddon, arg.ID, arg.Name, arg.Description, arg.PricePaise, arg.IsActive)
	var a Addon
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.PricePaise, &a.IsActive, &a.CreatedAt)
	return a, err
}

const deleteAddon = `DELETE FROM addons WHERE id = $1`

func (q *Queries) DeleteAddon(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAddon, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
