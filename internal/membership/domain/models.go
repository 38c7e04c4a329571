// Package domain defines the pro-membership plans and sync contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"gorm.io/gorm"
)

// Plan is a purchasable membership tier, recognized by its provider price
// reference.
type Plan struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	Name          string       `json:"name" gorm:"type:text;not null"`
	StripePriceID string       `json:"stripe_price_id" gorm:"type:text;not null;uniqueIndex"`
	Interval      string       `json:"interval" gorm:"type:text;not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "membership_plans" }

type Service interface {
	// FindPlanByPriceID reports whether a completed subscription session
	// bought a known plan. Nil without error means no match.
	FindPlanByPriceID(ctx context.Context, priceID string) (*Plan, error)

	// Activate resolves the provider customer to a local user and stores the
	// membership refs. An unknown customer is an orphan event: logged,
	// nil result, no error.
	Activate(ctx context.Context, customerID, subscriptionID, priceID string) (*userdomain.User, error)

	// Teardown clears the membership of the user holding the subscription
	// ref; unknown refs are a no-op.
	Teardown(ctx context.Context, subscriptionID string) error
}

type Repository interface {
	FindPlanByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*Plan, error)
}
