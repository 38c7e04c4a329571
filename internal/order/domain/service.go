package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// MaterializeInput carries the order-construction data echoed back through
// session metadata, already validated and typed at the webhook boundary.
type MaterializeInput struct {
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	FeeAmount       int64

	BuyerID         snowflake.ID
	VendorID        snowflake.ID
	VendorAccountID string
	AddressID       snowflake.ID
	Phone           string
	BuyerName       string

	// Single-product path.
	ProductID snowflake.ID

	// Kit path.
	KitID      snowflake.ID
	ProductIDs []snowflake.ID
}

type Service interface {
	// MaterializeProduct turns a completed single-listing payment into an
	// Order plus one OrderItem, exactly once per session id.
	MaterializeProduct(ctx context.Context, in MaterializeInput) (*Order, error)

	// MaterializeKit does the same for a bundle: one Order, one item per
	// member product, every member flipped to vendido.
	MaterializeKit(ctx context.Context, in MaterializeInput) (*Order, error)

	GetByID(ctx context.Context, id snowflake.ID) (*Order, error)
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)
	FindItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)

	// InsertOrder inserts unless checkout_session_id already exists; the bool
	// reports whether this insert won.
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) (bool, error)
	InsertItem(ctx context.Context, db *gorm.DB, item *OrderItem) error
}
