package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getLaCarteSettings = `
SELECT id, real_price_paise, current_price_paise, promo_note, updated_at
FROM lacarte_settings WHERE id = 1`

func (q *Queries) GetLaCarteSettings(ctx context.Context) (LaCarteSettings, error) {
	var s LaCarteSettings
	err := q.db.QueryRow(ctx, getLaCarteSettings).Scan(
		&s.ID, &s.RealPricePaise, &s.CurrentPricePaise, &s.PromoNote, &s.UpdatedAt,
	)
	return s, err
}

const updateLaCarteSettings = `
UPDATE lacarte_settings
SET real_price_paise = $1, current_price_paise = $2, promo_note = $3, updated_at = now()
WHERE id = 1
RETURNING id, real_price_paise, current_price_paise, promo_note, updated_at`

type UpdateLaCarteSettingsParams struct {
	RealPricePaise    int64
	CurrentPricePaise int64
	PromoNote         pgtype.Text
}

func (q *Queries) UpdateLaCarteSettings(ctx context.Context, arg UpdateLaCarteSettingsParams) (LaCarteSettings, error) {
	var s LaCarteSettings
	err := q.db.QueryRow(ctx, updateLaCarteSettings, arg.RealPricePaise, arg.CurrentPricePaise, arg.PromoNote).Scan(
		&s.ID, &s.RealPricePaise, &s.CurrentPricePaise, &s.PromoNote, &s.UpdatedAt,
	)
	return s, err
}
