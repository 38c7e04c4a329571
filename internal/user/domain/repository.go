package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// MembershipRefs are the provider references stored on a pro member.
type MembershipRefs struct {
	CustomerID     string
	SubscriptionID string
	PriceID        string
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindBySessionToken(ctx context.Context, db *gorm.DB, token string) (*User, error)
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*User, error)

	FindAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Address, error)

	ActivateMembership(ctx context.Context, db *gorm.DB, userID snowflake.ID, refs MembershipRefs, now time.Time) error
	ClearMembership(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) error
}
