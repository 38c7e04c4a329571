package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/clock"
	"github.com/despiezo/marketplace/internal/escrow/domain"
	obsmetrics "github.com/despiezo/marketplace/internal/observability/metrics"
	orderdomain "github.com/despiezo/marketplace/internal/order/domain"
	"github.com/despiezo/marketplace/internal/providers/stripe"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatchSize = 100

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	OrderRepo  orderdomain.Repository
	UserRepo   userdomain.Repository
	Stripe     stripe.Client
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	orderRepo  orderdomain.Repository
	userRepo   userdomain.Repository
	stripe     stripe.Client
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("escrow.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		orderRepo:  p.OrderRepo,
		userRepo:   p.UserRepo,
		stripe:     p.Stripe,
		obsMetrics: p.ObsMetrics,
	}
}

// Release claims the payout flag and issues the provider transfer inside one
// transaction. A transfer failure rolls the claim back, so payout_released is
// never persisted without a transfer id and the order stays eligible for the
// next attempt. The conditional claim update makes concurrent releases safe:
// exactly one caller wins the flip.
func (s *service) Release(ctx context.Context, orderID snowflake.ID, reason domain.ReleaseReason) (bool, error) {
	now := s.clock.Now().UTC()
	released := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}

		claimed, err := s.repo.ClaimRelease(ctx, tx, orderID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		vendor, err := s.userRepo.FindByID(ctx, tx, order.VendorID)
		if err != nil {
			return err
		}
		if vendor == nil || vendor.StripeAccountID == nil || *vendor.StripeAccountID == "" {
			return domain.ErrNoPayoutAccount
		}

		transfer, err := s.stripe.CreateTransfer(ctx, stripe.TransferParams{
			Amount:      order.VendorAmount,
			Currency:    order.Currency,
			Destination: *vendor.StripeAccountID,
			Metadata: map[string]string{
				"orderId": order.ID.String(),
				"reason":  string(reason),
			},
			IdempotencyKey: "payout-" + order.ID.String(),
		})
		if err != nil {
			return err
		}

		if err := s.repo.SetTransferID(ctx, tx, orderID, transfer.ID); err != nil {
			return err
		}

		released = true
		s.log.Info("escrow released",
			zap.String("order_id", order.ID.String()),
			zap.String("transfer_id", transfer.ID),
			zap.Int64("vendor_amount", order.VendorAmount),
			zap.String("reason", string(reason)),
		)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoPayoutAccount) {
			s.log.Warn("vendor has no payout account, keeping order held",
				zap.String("order_id", orderID.String()),
			)
			return false, nil
		}
		return false, err
	}

	if released && s.obsMetrics != nil {
		s.obsMetrics.RecordEscrowTransfer(ctx, string(reason))
	}
	return released, nil
}

func (s *service) ReleaseDue(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	ids, err := s.repo.FindDueOrderIDs(ctx, s.db, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	var lastErr error
	for _, id := range ids {
		released, err := s.Release(ctx, id, domain.ReasonHoldElapsed)
		if err != nil {
			// One stuck order must not block the rest of the batch.
			s.log.Warn("escrow release failed", zap.String("order_id", id.String()), zap.Error(err))
			lastErr = err
			continue
		}
		if released {
			count++
		}
	}
	return count, lastErr
}
