// Package domain contains the Order aggregate and the materializer contract.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusRefunded OrderStatus = "refunded"
	OrderStatusDisputed OrderStatus = "disputed"
)

type OrderType string

const (
	OrderTypeProduct OrderType = "PRODUCT"
	OrderTypeKit     OrderType = "KIT"
)

// Order is the aggregate root of a completed sale. It is created exactly once
// by the materializer and mutated afterwards only by the escrow release.
// amount_total == vendor_amount + fee_amount always holds.
type Order struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	BuyerID  snowflake.ID `json:"buyer_id" gorm:"not null;index"`
	VendorID snowflake.ID `json:"vendor_id" gorm:"not null;index"`

	// CheckoutSessionID is the idempotency key: a duplicate delivery of the
	// same completed-session event collapses onto the existing row.
	CheckoutSessionID string  `json:"checkout_session_id" gorm:"type:text;not null;uniqueIndex"`
	PaymentIntentID   *string `json:"payment_intent_id,omitempty" gorm:"type:text"`

	AmountTotal  int64       `json:"amount_total" gorm:"not null"`
	VendorAmount int64       `json:"vendor_amount" gorm:"not null"`
	FeeAmount    int64       `json:"fee_amount" gorm:"not null"`
	Currency     string      `json:"currency" gorm:"type:text;not null;default:'EUR'"`
	Status       OrderStatus `json:"status" gorm:"type:text;not null;default:'paid'"`
	OrderType    OrderType   `json:"order_type" gorm:"type:text;not null"`

	// Shipping snapshot captured at purchase time, never re-derived from the
	// buyer's live address book.
	ShipRecipientName string  `json:"ship_recipient_name" gorm:"type:text;not null"`
	ShipCountry       string  `json:"ship_country" gorm:"type:text;not null"`
	ShipCity          string  `json:"ship_city" gorm:"type:text;not null"`
	ShipPostalCode    string  `json:"ship_postal_code" gorm:"type:text;not null"`
	ShipLine1         string  `json:"ship_line1" gorm:"type:text;not null"`
	ShipLine2         *string `json:"ship_line2,omitempty" gorm:"type:text"`
	ShipPhone         string  `json:"ship_phone" gorm:"type:text;not null"`

	ReleaseAt        time.Time  `json:"release_at" gorm:"not null"`
	PayoutReleased   bool       `json:"payout_released" gorm:"not null;default:false"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	PayoutTransferID *string    `json:"payout_transfer_id,omitempty" gorm:"type:text"`

	PaidAt    time.Time `json:"paid_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrderID   snowflake.ID  `json:"order_id" gorm:"not null;index"`
	ProductID snowflake.ID  `json:"product_id" gorm:"not null"`
	KitID     *snowflake.ID `json:"kit_id,omitempty"`
	Quantity  int           `json:"quantity" gorm:"not null;default:1"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderItem) TableName() string { return "order_items" }

var (
	ErrOrderNotFound = errors.New("order_not_found")

	// ErrOrderConflict signals the unique checkout-session constraint fired;
	// the materializer resolves it to the existing order.
	ErrOrderConflict = errors.New("order_conflict")
)
