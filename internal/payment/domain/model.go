// Package domain defines the canonical inbound payment events and the closed
// set of purchase payloads they carry.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the insert-first duplicate collapse for inbound webhooks:
// (provider, provider_event_id) is unique, processed_at marks completion.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted   = "checkout.session.completed"
	EventTypeSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is the canonical webhook event parsed at the boundary.
type Event struct {
	ID             string
	Type           string
	Checkout       *CheckoutCompleted
	SubscriptionID string
	RawPayload     []byte
}

// CheckoutCompleted carries the fields of a completed hosted session this
// service consumes. Metadata stays raw until DecodePurchase turns it into a
// typed payload; handlers never re-parse loose strings.
type CheckoutCompleted struct {
	SessionID       string
	PaymentIntentID string
	Mode            string
	CustomerID      string
	SubscriptionID  string
	PriceID         string
	AmountTotal     int64
	Metadata        map[string]string
}

// Purchase type discriminators embedded in session metadata.
const (
	PurchaseTypeProduct   = "COMPRAR"
	PurchaseTypeKit       = "COMPRAR-KIT"
	PurchaseTypePromotion = "DESTACAR"
)

// Purchase is the closed union of non-subscription checkout payloads.
type Purchase interface {
	isPurchase()
}

// ProductPurchase is a single-listing sale.
type ProductPurchase struct {
	BuyerID         snowflake.ID
	VendorID        snowflake.ID
	ProductID       snowflake.ID
	VendorAccountID string
	FeeAmount       int64
	AddressID       snowflake.ID
	Phone           string
	BuyerName       string
}

// KitPurchase is a bundle sale: one order, one item per member product.
type KitPurchase struct {
	BuyerID         snowflake.ID
	VendorID        snowflake.ID
	KitID           snowflake.ID
	ProductIDs      []snowflake.ID
	VendorAccountID string
	FeeAmount       int64
	AddressID       snowflake.ID
	Phone           string
	BuyerName       string
}

// PromotionPurchase is a paid featured-listing boost.
type PromotionPurchase struct {
	ProductID snowflake.ID
	Days      int
}

func (*ProductPurchase) isPurchase()   {}
func (*KitPurchase) isPurchase()       {}
func (*PromotionPurchase) isPurchase() {}

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrEventIgnored     = errors.New("event_ignored")

	// ErrMalformedEvent marks a fatal, non-retryable event: a completed
	// session missing the fields needed to construct a correct record.
	ErrMalformedEvent = errors.New("malformed_event")

	ErrUnknownPurchaseType   = errors.New("unknown_purchase_type")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
