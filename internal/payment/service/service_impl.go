package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/clock"
	"github.com/despiezo/marketplace/internal/config"
	featuredservice "github.com/despiezo/marketplace/internal/featured/service"
	membershipdomain "github.com/despiezo/marketplace/internal/membership/domain"
	obsmetrics "github.com/despiezo/marketplace/internal/observability/metrics"
	orderdomain "github.com/despiezo/marketplace/internal/order/domain"
	paymentdomain "github.com/despiezo/marketplace/internal/payment/domain"
	"github.com/despiezo/marketplace/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const provider = "stripe"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Repo          paymentdomain.Repository
	OrderSvc      orderdomain.Service
	MembershipSvc membershipdomain.Service
	FeaturedSvc   *featuredservice.Service
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

// Service routes verified provider events to their handlers. The router holds
// no state of its own; handlers stay idempotent on their natural keys because
// the provider delivers at least once.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	verifier      *webhook.Verifier
	repo          paymentdomain.Repository
	orderSvc      orderdomain.Service
	membershipSvc membershipdomain.Service
	featuredSvc   *featuredservice.Service
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.router"),
		genID:         p.GenID,
		clock:         p.Clock,
		verifier:      webhook.NewVerifier(p.Cfg.StripeWebhookSecret, p.Clock),
		repo:          p.Repo,
		orderSvc:      p.OrderSvc,
		membershipSvc: p.MembershipSvc,
		featuredSvc:   p.FeaturedSvc,
		obsMetrics:    p.ObsMetrics,
	}
}

// IngestWebhook verifies, records and dispatches one provider delivery.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.verifier.Verify(ctx, payload, headers); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	event, err := webhook.Parse(ctx, payload)
	if err != nil {
		if err == paymentdomain.ErrEventIgnored {
			return nil
		}
		return err
	}

	now := s.clock.Now()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidPayload
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.dispatch(ctx, event); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *paymentdomain.Event) error {
	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted:
		return s.dispatchCheckout(ctx, event.Checkout)
	case paymentdomain.EventTypeSubscriptionDeleted:
		return s.membershipSvc.Teardown(ctx, event.SubscriptionID)
	default:
		return paymentdomain.ErrEventIgnored
	}
}

func (s *Service) dispatchCheckout(ctx context.Context, checkout *paymentdomain.CheckoutCompleted) error {
	if checkout == nil {
		return paymentdomain.ErrInvalidPayload
	}

	if checkout.Mode == "subscription" && checkout.CustomerID != "" {
		plan, err := s.membershipSvc.FindPlanByPriceID(ctx, checkout.PriceID)
		if err != nil {
			return err
		}
		if plan != nil {
			_, err := s.membershipSvc.Activate(ctx, checkout.CustomerID, checkout.SubscriptionID, checkout.PriceID)
			return err
		}
	}

	purchase, err := paymentdomain.DecodePurchase(checkout.Metadata)
	if err != nil {
		s.log.Error("completed session with unusable metadata",
			zap.String("checkout_session_id", checkout.SessionID),
			zap.Error(err),
		)
		return err
	}

	switch typed := purchase.(type) {
	case *paymentdomain.ProductPurchase:
		_, err := s.orderSvc.MaterializeProduct(ctx, orderdomain.MaterializeInput{
			SessionID:       checkout.SessionID,
			PaymentIntentID: checkout.PaymentIntentID,
			AmountTotal:     checkout.AmountTotal,
			FeeAmount:       typed.FeeAmount,
			BuyerID:         typed.BuyerID,
			VendorID:        typed.VendorID,
			VendorAccountID: typed.VendorAccountID,
			AddressID:       typed.AddressID,
			Phone:           typed.Phone,
			BuyerName:       typed.BuyerName,
			ProductID:       typed.ProductID,
		})
		return err
	case *paymentdomain.KitPurchase:
		_, err := s.orderSvc.MaterializeKit(ctx, orderdomain.MaterializeInput{
			SessionID:       checkout.SessionID,
			PaymentIntentID: checkout.PaymentIntentID,
			AmountTotal:     checkout.AmountTotal,
			FeeAmount:       typed.FeeAmount,
			BuyerID:         typed.BuyerID,
			VendorID:        typed.VendorID,
			VendorAccountID: typed.VendorAccountID,
			AddressID:       typed.AddressID,
			Phone:           typed.Phone,
			BuyerName:       typed.BuyerName,
			KitID:           typed.KitID,
			ProductIDs:      typed.ProductIDs,
		})
		return err
	case *paymentdomain.PromotionPurchase:
		return s.featuredSvc.Activate(ctx, typed.ProductID, typed.Days)
	default:
		return paymentdomain.ErrUnknownPurchaseType
	}
}
