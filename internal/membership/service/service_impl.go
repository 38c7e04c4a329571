package service

import (
	"context"

	"github.com/despiezo/marketplace/internal/clock"
	membershipdomain "github.com/despiezo/marketplace/internal/membership/domain"
	"github.com/despiezo/marketplace/internal/providers/stripe"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     membershipdomain.Repository
	UserRepo userdomain.Repository
	Stripe   stripe.Client
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     membershipdomain.Repository
	userRepo userdomain.Repository
	stripe   stripe.Client
}

func NewService(p Params) membershipdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("membership.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		stripe:   p.Stripe,
	}
}

func (s *Service) FindPlanByPriceID(ctx context.Context, priceID string) (*membershipdomain.Plan, error) {
	return s.repo.FindPlanByPriceID(ctx, s.db, priceID)
}

func (s *Service) Activate(ctx context.Context, customerID, subscriptionID, priceID string) (*userdomain.User, error) {
	customer, err := s.stripe.RetrieveCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	found, err := s.userRepo.FindByEmail(ctx, s.db, customer.Email)
	if err != nil {
		return nil, err
	}
	if found == nil {
		// Orphan event: not retryable into a different outcome.
		s.log.Warn("subscription completed for unknown customer",
			zap.String("customer_id", customerID),
			zap.String("email", customer.Email),
		)
		return nil, nil
	}

	refs := userdomain.MembershipRefs{
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		PriceID:        priceID,
	}
	if err := s.userRepo.ActivateMembership(ctx, s.db, found.ID, refs, s.clock.Now()); err != nil {
		return nil, err
	}

	s.log.Info("membership activated",
		zap.String("user_id", found.ID.String()),
		zap.String("subscription_id", subscriptionID),
	)

	found.Pro = true
	found.StripeCustomerID = &refs.CustomerID
	found.StripeSubscriptionID = &refs.SubscriptionID
	found.StripePriceID = &refs.PriceID
	return found, nil
}

func (s *Service) Teardown(ctx context.Context, subscriptionID string) error {
	found, err := s.userRepo.FindBySubscriptionID(ctx, s.db, subscriptionID)
	if err != nil {
		return err
	}
	if found == nil {
		s.log.Info("subscription deleted for unknown user",
			zap.String("subscription_id", subscriptionID),
		)
		return nil
	}

	if err := s.userRepo.ClearMembership(ctx, s.db, found.ID, s.clock.Now()); err != nil {
		return err
	}

	s.log.Info("membership cleared",
		zap.String("user_id", found.ID.String()),
		zap.String("subscription_id", subscriptionID),
	)
	return nil
}
