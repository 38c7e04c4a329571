// Package domain defines the escrow release contract: the held vendor share of
// a paid order is transferred exactly once, either on confirmed delivery or
// when the hold period elapses.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ReleaseReason tags what triggered a payout, for logs and metrics only; both
// paths share the same release semantics.
type ReleaseReason string

const (
	ReasonDelivered   ReleaseReason = "delivered"
	ReasonHoldElapsed ReleaseReason = "hold_elapsed"
)

type Service interface {
	// Release transfers the vendor share of one order. The bool reports
	// whether this call issued the transfer; an already-released or
	// non-releasable order returns (false, nil).
	Release(ctx context.Context, orderID snowflake.ID, reason ReleaseReason) (bool, error)

	// ReleaseDue releases every paid order whose hold period has elapsed and
	// returns how many transfers were issued.
	ReleaseDue(ctx context.Context) (int, error)
}

type Repository interface {
	FindDueOrderIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)

	// ClaimRelease flips payout_released false to true for a paid order; the
	// bool reports whether this call won the flip.
	ClaimRelease(ctx context.Context, db *gorm.DB, orderID snowflake.ID, now time.Time) (bool, error)

	SetTransferID(ctx context.Context, db *gorm.DB, orderID snowflake.ID, transferID string) error
}

// ErrNoPayoutAccount means the vendor has no connected payout account on file.
// The claim is rolled back so the order stays eligible once the account exists.
var ErrNoPayoutAccount = errors.New("vendor_missing_payout_account")
