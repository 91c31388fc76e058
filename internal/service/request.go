package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedalpoint/api/internal/billing"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/enum"
)

const maxCreateRetries = 3

// Errors returned by the request service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidItemKind     = errors.New("invalid item kind")
	ErrInvalidItemPrice    = errors.New("item price must be >= 0")
	ErrMissingItemLabel    = errors.New("item label is required")
	ErrMissingCustomerName = errors.New("customer_name is required")
	ErrMissingPhone        = errors.New("customer_phone is required")
	ErrMissingBikeName     = errors.New("bike_name is required")
	ErrInvalidLacarte      = errors.New("lacarte_paise must be >= 0")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RequestStore defines the DB methods needed to create service requests.
// Satisfied by *database.Queries (and its WithTx variant).
type RequestStore interface {
	GetNextOrderSeq(ctx context.Context) (int32, error)
	GetLaCarteSettings(ctx context.Context) (database.LaCarteSettings, error)
	CreateRequest(ctx context.Context, arg database.CreateRequestParams) (database.ServiceRequest, error)
	CreateRequestItem(ctx context.Context, arg database.CreateRequestItemParams) (database.RequestItem, error)
}

// NewRequestStore creates a RequestStore from a DBTX (pool or tx).
type NewRequestStore func(db database.DBTX) RequestStore

// CreateRequestInput is the validated input for creating a service request.
type CreateRequestInput struct {
	CustomerName  string
	CustomerPhone string
	BikeName      string
	LacartePaise  *int64 // per-order override; nil uses the global setting
	Items         []CreateRequestItemInput
}

// CreateRequestItemInput is a single priced line on the new request.
type CreateRequestItemInput struct {
	Label       string
	Kind        string
	PricePaise  int64
	IsSuggested bool
}

// CreateRequestResult is the full created request with its items.
type CreateRequestResult struct {
	Request database.ServiceRequest
	Items   []database.RequestItem
}

// RequestService handles request creation.
type RequestService struct {
	pool     TxBeginner
	newStore NewRequestStore
}

func NewRequestService(pool TxBeginner, newStore NewRequestStore) *RequestService {
	return &RequestService{pool: pool, newStore: newStore}
}

// CreateRequest validates, computes totals authoritatively, and inserts the
// request plus its items in one transaction — a failed item insert rolls the
// whole order back. Retries on order_seq/short_slug unique conflicts (the
// race where concurrent creates read the same MAX or draw the same slug).
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*CreateRequestResult, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, ErrMissingCustomerName
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, ErrMissingPhone
	}
	if strings.TrimSpace(input.BikeName) == "" {
		return nil, ErrMissingBikeName
	}
	if len(input.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if input.LacartePaise != nil && *input.LacartePaise < 0 {
		return nil, ErrInvalidLacarte
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Label) == "" {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrMissingItemLabel)
		}
		if item.Kind != enum.ItemKindRepair && item.Kind != enum.ItemKindReplacement {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidItemKind)
		}
		if item.PricePaise < 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidItemPrice)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxCreateRetries; attempt++ {
		result, err := s.createRequestTx(ctx, input)
		if err == nil {
			return result, nil
		}
		if isCreateConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isCreateConflict checks for a unique constraint violation on order_seq or
// short_slug (pgconn error code 23505).
func isCreateConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" &&
			(pgErr.ConstraintName == "service_requests_order_seq_key" ||
				pgErr.ConstraintName == "service_requests_short_slug_key")
	}
	return false
}

func (s *RequestService) createRequestTx(ctx context.Context, input CreateRequestInput) (*CreateRequestResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextSeq, err := store.GetNextOrderSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order seq: %w", err)
	}
	orderNumber := fmt.Sprintf("PDL-%03d", nextSeq)

	slug, err := newShortSlug()
	if err != nil {
		return nil, fmt.Errorf("generate slug: %w", err)
	}

	settings, err := store.GetLaCarteSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lacarte settings: %w", err)
	}

	var subtotal int64
	for _, item := range input.Items {
		subtotal += item.PricePaise
	}
	lacarte := billing.EffectiveLaCarte(input.LacartePaise, settings.CurrentPricePaise)
	total := subtotal + lacarte

	lacarteOverride := pgtype.Int8{}
	if input.LacartePaise != nil {
		lacarteOverride = pgtype.Int8{Int64: *input.LacartePaise, Valid: true}
	}

	request, err := store.CreateRequest(ctx, database.CreateRequestParams{
		OrderSeq:      nextSeq,
		OrderNumber:   orderNumber,
		ShortSlug:     slug,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		BikeName:      strings.TrimSpace(input.BikeName),
		Status:        enum.RequestStatusSent,
		SubtotalPaise: subtotal,
		LacartePaise:  lacarteOverride,
		TotalPaise:    total,
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	items := make([]database.RequestItem, 0, len(input.Items))
	for i, item := range input.Items {
		created, err := store.CreateRequestItem(ctx, database.CreateRequestItemParams{
			RequestID:   request.ID,
			Label:       strings.TrimSpace(item.Label),
			Kind:        item.Kind,
			PricePaise:  item.PricePaise,
			IsSuggested: item.IsSuggested,
			SortOrder:   int32(i),
		})
		if err != nil {
			return nil, fmt.Errorf("create request item: %w", err)
		}
		items = append(items, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateRequestResult{Request: request, Items: items}, nil
}

// newShortSlug returns an opaque 10-character public identifier for customer
// URLs. Lowercase base32 keeps it readable over the phone.
func newShortSlug() (string, error) {
	var buf [7]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:])
	return strings.ToLower(encoded)[:10], nil
}
