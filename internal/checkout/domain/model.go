// Package domain defines the checkout-session contract: purchase intents in,
// a hosted-payment redirect URL out, with every precondition failure a
// distinct sentinel.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
)

// ProductIntent is a buyer's request to purchase a single listing.
type ProductIntent struct {
	ProductID snowflake.ID
	AddressID snowflake.ID
	Phone     string
}

// KitIntent is a buyer's request to purchase a bundle as one line item.
type KitIntent struct {
	KitID     snowflake.ID
	AddressID snowflake.ID
	Phone     string
}

// PromotionIntent is a vendor's request to feature their own listing.
type PromotionIntent struct {
	ProductID snowflake.ID
	Days      int
}

type Service interface {
	// Each builder validates its preconditions, requests a hosted payment
	// session from the provider and returns the redirect URL. Nothing is
	// persisted locally; the completed-session webhook carries the embedded
	// metadata back.
	BuildProductSession(ctx context.Context, buyer *userdomain.User, in ProductIntent) (string, error)
	BuildKitSession(ctx context.Context, buyer *userdomain.User, in KitIntent) (string, error)
	BuildPromotionSession(ctx context.Context, buyer *userdomain.User, in PromotionIntent) (string, error)
}

var (
	ErrNotAuthenticated = errors.New("not_authenticated")

	// ErrSelfPurchase rejects a buyer purchasing their own listing.
	ErrSelfPurchase = errors.New("self_purchase")

	// ErrNotOwner rejects a promotion request from anyone but the listing's
	// vendor.
	ErrNotOwner = errors.New("not_listing_owner")

	ErrVendorNoPayoutAccount = errors.New("vendor_missing_payout_account")
	ErrInvalidPromotionDays  = errors.New("invalid_promotion_days")
)
