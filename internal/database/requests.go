package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const requestColumns = `id, order_seq, order_number, short_slug, customer_name, customer_phone,
	bike_name, status, subtotal_paise, lacarte_paise, total_paise,
	wa_message_id, wa_sent_at, wa_error, viewed_at, confirmed_at, created_at, updated_at`

func scanRequest(row interface{ Scan(...interface{}) error }) (ServiceRequest, error) {
	var r ServiceRequest
	err := row.Scan(
		&r.ID, &r.OrderSeq, &r.OrderNumber, &r.ShortSlug, &r.CustomerName, &r.CustomerPhone,
		&r.BikeName, &r.Status, &r.SubtotalPaise, &r.LacartePaise, &r.TotalPaise,
		&r.WaMessageID, &r.WaSentAt, &r.WaError, &r.ViewedAt, &r.ConfirmedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const getNextOrderSeq = `SELECT COALESCE(MAX(order_seq), 0) + 1 FROM service_requests`

// GetNextOrderSeq returns the next sequential order number. A unique
// constraint on order_seq catches the race between concurrent reads; callers
// retry on conflict.
func (q *Queries) GetNextOrderSeq(ctx context.Context) (int32, error) {
	var seq int32
	err := q.db.QueryRow(ctx, getNextOrderSeq).Scan(&seq)
	return seq, err
}

const createRequest = `
INSERT INTO service_requests (
	order_seq, order_number, short_slug, customer_name, customer_phone, bike_name,
	status, subtotal_paise, lacarte_paise, total_paise
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + requestColumns

type CreateRequestParams struct {
	OrderSeq      int32
	OrderNumber   string
	ShortSlug     string
	CustomerName  string
	CustomerPhone string
	BikeName      string
	Status        string
	SubtotalPaise int64
	LacartePaise  pgtype.Int8
	TotalPaise    int64
}

func (q *Queries) CreateRequest(ctx context.Context, arg CreateRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, createRequest,
		arg.OrderSeq, arg.OrderNumber, arg.ShortSlug, arg.CustomerName, arg.CustomerPhone,
		arg.BikeName, arg.Status, arg.SubtotalPaise, arg.LacartePaise, arg.TotalPaise,
	)
	return scanRequest(row)
}

const getRequest = `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`

func (q *Queries) GetRequest(ctx context.Context, id uuid.UUID) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, getRequest, id))
}

const getRequestBySlug = `SELECT ` + requestColumns + ` FROM service_requests WHERE short_slug = $1`

func (q *Queries) GetRequestBySlug(ctx context.Context, slug string) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, getRequestBySlug, slug))
}

const listRequests = `
SELECT ` + requestColumns + `
FROM service_requests
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR
       customer_name ILIKE '%' || $2 || '%' OR
       customer_phone ILIKE '%' || $2 || '%' OR
       bike_name ILIKE '%' || $2 || '%' OR
       order_number ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListRequestsParams struct {
	Status pgtype.Text
	Search pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListRequests(ctx context.Context, arg ListRequestsParams) ([]ServiceRequest, error) {
	rows, err := q.db.Query(ctx, listRequests, arg.Status, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const countRequests = `
SELECT COUNT(*)
FROM service_requests
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR
       customer_name ILIKE '%' || $2 || '%' OR
       customer_phone ILIKE '%' || $2 || '%' OR
       bike_name ILIKE '%' || $2 || '%' OR
       order_number ILIKE '%' || $2 || '%')`

type CountRequestsParams struct {
	Status pgtype.Text
	Search pgtype.Text
}

func (q *Queries) CountRequests(ctx context.Context, arg CountRequestsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countRequests, arg.Status, arg.Search).Scan(&count)
	return count, err
}

const updateRequestStatus = `
UPDATE service_requests
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + requestColumns

type UpdateRequestStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateRequestStatus is a compare-and-set: it only updates when the stored
// status still matches FromStatus, returning pgx.ErrNoRows on a lost race.
func (q *Queries) UpdateRequestStatus(ctx context.Context, arg UpdateRequestStatusParams) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, updateRequestStatus, arg.ID, arg.Status, arg.FromStatus))
}

const markRequestViewed = `
UPDATE service_requests
SET status = 'viewed', viewed_at = now(), updated_at = now()
WHERE id = $1 AND status IN ('pending', 'sent')
RETURNING ` + requestColumns

// MarkRequestViewed records the first customer view. Already-viewed (or
// terminal) requests are left untouched; callers treat pgx.ErrNoRows as a no-op.
func (q *Queries) MarkRequestViewed(ctx context.Context, id uuid.UUID) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, markRequestViewed, id))
}

const markRequestSent = `
UPDATE service_requests
SET status = 'sent', wa_message_id = $2, wa_sent_at = now(), wa_error = NULL, updated_at = now()
WHERE id = $1
RETURNING ` + requestColumns

type MarkRequestSentParams struct {
	ID          uuid.UUID
	WaMessageID pgtype.Text
}

func (q *Queries) MarkRequestSent(ctx context.Context, arg MarkRequestSentParams) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, markRequestSent, arg.ID, arg.WaMessageID))
}

const markRequestSendFailed = `
UPDATE service_requests
SET status = 'pending', wa_error = $2, updated_at = now()
WHERE id = $1
RETURNING ` + requestColumns

type MarkRequestSendFailedParams struct {
	ID      uuid.UUID
	WaError string
}

// MarkRequestSendFailed drops the request back to pending with the delivery
// error recorded, so an operator can retry the send manually.
func (q *Queries) MarkRequestSendFailed(ctx context.Context, arg MarkRequestSendFailedParams) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, markRequestSendFailed, arg.ID, arg.WaError))
}

const confirmRequest = `
UPDATE service_requests
SET status = 'confirmed', confirmed_at = now(),
    subtotal_paise = $2, total_paise = $3, updated_at = now()
WHERE id = $1 AND status IN ('pending', 'sent', 'viewed')
RETURNING ` + requestColumns

type ConfirmRequestParams struct {
	ID            uuid.UUID
	SubtotalPaise int64
	TotalPaise    int64
}

// ConfirmRequest atomically moves a non-terminal request to confirmed and
// stores the recomputed totals. pgx.ErrNoRows means the request was already
// terminal.
func (q *Queries) ConfirmRequest(ctx context.Context, arg ConfirmRequestParams) (ServiceRequest, error) {
	return scanRequest(q.db.QueryRow(ctx, confirmRequest, arg.ID, arg.SubtotalPaise, arg.TotalPaise))
}

const deleteRequest = `DELETE FROM service_requests WHERE id = $1 AND status = 'cancelled'`

// DeleteRequest hard-deletes a request. The WHERE clause enforces the
// cancelled-only precondition atomically; returns the rows affected.
func (q *Queries) DeleteRequest(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRequest, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
