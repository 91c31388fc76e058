package database

import (
	"context"

	"github.com/google/uuid"
)

const createRequestItem = `
INSERT INTO request_items (request_id, label, kind, price_paise, is_suggested, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, request_id, label, kind, price_paise, is_suggested, sort_order`

type CreateRequestItemParams struct {
	RequestID   uuid.UUID
	Label       string
	Kind        string
	PricePaise  int64
	IsSuggested bool
	SortOrder   int32
}

func (q *Queries) CreateRequestItem(ctx context.Context, arg CreateRequestItemParams) (RequestItem, error) {
	row := q.db.QueryRow(ctx, createRequestItem,
		arg.RequestID, arg.Label, arg.Kind, arg.PricePaise, arg.IsSuggested, arg.SortOrder,
	)
	var it RequestItem
	err := row.Scan(&it.ID, &it.RequestID, &it.Label, &it.Kind, &it.PricePaise, &it.IsSuggested, &it.SortOrder)
	return it, err
}

const listRequestItemsByRequest = `
SELECT id, request_id, label, kind, price_paise, is_suggested, sort_order
FROM request_items
WHERE request_id = $1
ORDER BY sort_order, label`

func (q *Queries) ListRequestItemsByRequest(ctx context.Context, requestID uuid.UUID) ([]RequestItem, error) {
	rows, err := q.db.Query(ctx, listRequestItemsByRequest, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RequestItem
	for rows.Next() {
		var it RequestItem
		if err := rows.Scan(&it.ID, &it.RequestID, &it.Label, &it.Kind, &it.PricePaise, &it.IsSuggested, &it.SortOrder); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}
