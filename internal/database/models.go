package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// AdminUser is a dashboard operator account.
type AdminUser struct {
	ID             uuid.UUID
	Username       string
	HashedPassword string
	FullName       string
	CreatedAt      time.Time
}

// ServiceRequest is one service order. All monetary fields are integer paise.
type ServiceRequest struct {
	ID            uuid.UUID
	OrderSeq      int32
	OrderNumber   string
	ShortSlug     string
	CustomerName  string
	CustomerPhone string
	BikeName      string
	Status        string
	SubtotalPaise int64
	LacartePaise  pgtype.Int8 // per-order override of the global La Carte charge
	TotalPaise    int64
	WaMessageID   pgtype.Text
	WaSentAt      pgtype.Timestamptz
	WaError       pgtype.Text
	ViewedAt      pgtype.Timestamptz
	ConfirmedAt   pgtype.Timestamptz
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RequestItem is one priced repair/replacement line owned by a request.
type RequestItem struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	Label       string
	Kind        string
	PricePaise  int64
	IsSuggested bool
	SortOrder   int32
}

// Addon is a global catalog add-on.
type Addon struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	PricePaise  int64
	IsActive    bool
	CreatedAt   time.Time
}

// ServiceBundle is a global catalog bundle; at most one may be selected per order.
type ServiceBundle struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	PricePaise  int64
	IsActive    bool
	CreatedAt   time.Time
}

// BundleFeature is one ordered bullet point on a bundle.
type BundleFeature struct {
	ID        uuid.UUID
	BundleID  uuid.UUID
	Feature   string
	SortOrder int32
}

// ConfirmedItem freezes a selected line item at confirmation time.
type ConfirmedItem struct {
	RequestID  uuid.UUID
	ItemID     uuid.UUID
	PricePaise int64
}

// ConfirmedAddon freezes a selected add-on at confirmation time.
type ConfirmedAddon struct {
	RequestID  uuid.UUID
	AddonID    uuid.UUID
	PricePaise int64
}

// ConfirmedBundle freezes the selected bundle at confirmation time.
type ConfirmedBundle struct {
	RequestID  uuid.UUID
	BundleID   uuid.UUID
	PricePaise int64
}

// LaCarteSettings is the singleton global base-service-charge record.
type LaCarteSettings struct {
	ID                int32
	RealPricePaise    int64
	CurrentPricePaise int64
	PromoNote         pgtype.Text
	UpdatedAt         time.Time
}
