package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/despiezo/marketplace/internal/catalog/domain"
	"github.com/despiezo/marketplace/internal/clock"
	"github.com/despiezo/marketplace/internal/config"
	obsmetrics "github.com/despiezo/marketplace/internal/observability/metrics"
	orderdomain "github.com/despiezo/marketplace/internal/order/domain"
	paymentdomain "github.com/despiezo/marketplace/internal/payment/domain"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        orderdomain.Repository
	CatalogRepo catalogdomain.Repository
	UserRepo    userdomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	holdPeriod  time.Duration
	repo        orderdomain.Repository
	catalogRepo catalogdomain.Repository
	userRepo    userdomain.Repository
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		holdPeriod:  time.Duration(p.Cfg.EscrowHoldDays) * 24 * time.Hour,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		userRepo:    p.UserRepo,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) MaterializeProduct(ctx context.Context, in orderdomain.MaterializeInput) (*orderdomain.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ProductID == 0 {
		return nil, paymentdomain.ErrMalformedEvent
	}

	return s.materialize(ctx, in, orderdomain.OrderTypeProduct, []snowflake.ID{in.ProductID}, nil)
}

func (s *Service) MaterializeKit(ctx context.Context, in orderdomain.MaterializeInput) (*orderdomain.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.KitID == 0 || len(in.ProductIDs) == 0 {
		return nil, paymentdomain.ErrMalformedEvent
	}

	kitID := in.KitID
	return s.materialize(ctx, in, orderdomain.OrderTypeKit, in.ProductIDs, &kitID)
}

func (s *Service) materialize(
	ctx context.Context,
	in orderdomain.MaterializeInput,
	orderType orderdomain.OrderType,
	productIDs []snowflake.ID,
	kitID *snowflake.ID,
) (*orderdomain.Order, error) {

	// Fast path for a redelivered event: the session already materialized.
	existing, err := s.repo.FindBySessionID(ctx, s.db, in.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Info("duplicate completed-session event collapsed",
			zap.String("checkout_session_id", in.SessionID),
			zap.String("order_id", existing.ID.String()),
		)
		return existing, nil
	}

	now := s.clock.Now()
	order := s.buildOrder(in, orderType, now)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := s.userRepo.FindAddress(ctx, tx, in.AddressID)
		if err != nil {
			return err
		}
		if address == nil {
			return userdomain.ErrAddressNotFound
		}
		order.ShipRecipientName = address.RecipientName
		order.ShipCountry = address.Country
		order.ShipCity = address.City
		order.ShipPostalCode = address.PostalCode
		order.ShipLine1 = address.Line1
		order.ShipLine2 = address.Line2

		for _, productID := range productIDs {
			flipped, err := s.catalogRepo.MarkSold(ctx, tx, productID, now)
			if err != nil {
				return err
			}
			if !flipped {
				return catalogdomain.ErrProductUnavailable
			}
		}

		inserted, err := s.repo.InsertOrder(ctx, tx, order)
		if err != nil {
			return err
		}
		if !inserted {
			return orderdomain.ErrOrderConflict
		}

		for _, productID := range productIDs {
			item := &orderdomain.OrderItem{
				ID:        s.genID.Generate(),
				OrderID:   order.ID,
				ProductID: productID,
				KitID:     kitID,
				Quantity:  1,
				CreatedAt: now,
			}
			if err := s.repo.InsertItem(ctx, tx, item); err != nil {
				return err
			}
		}

		return nil
	})
	if txErr != nil {
		// A concurrent delivery inserted the order first; return its result
		// instead of failing the redelivery.
		if errors.Is(txErr, orderdomain.ErrOrderConflict) {
			winner, err := s.repo.FindBySessionID(ctx, s.db, in.SessionID)
			if err != nil {
				return nil, err
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, txErr
	}

	s.log.Info("order materialized",
		zap.String("order_id", order.ID.String()),
		zap.String("order_type", string(orderType)),
		zap.String("checkout_session_id", in.SessionID),
		zap.Int64("amount_total", order.AmountTotal),
		zap.Int64("vendor_amount", order.VendorAmount),
		zap.Int64("fee_amount", order.FeeAmount),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordOrderMaterialized(ctx, string(orderType))
	}
	return order, nil
}

func (s *Service) buildOrder(in orderdomain.MaterializeInput, orderType orderdomain.OrderType, now time.Time) *orderdomain.Order {
	var paymentIntent *string
	if in.PaymentIntentID != "" {
		value := in.PaymentIntentID
		paymentIntent = &value
	}

	return &orderdomain.Order{
		ID:                s.genID.Generate(),
		BuyerID:           in.BuyerID,
		VendorID:          in.VendorID,
		CheckoutSessionID: in.SessionID,
		PaymentIntentID:   paymentIntent,
		AmountTotal:       in.AmountTotal,
		VendorAmount:      in.AmountTotal - in.FeeAmount,
		FeeAmount:         in.FeeAmount,
		Currency:          "EUR",
		Status:            orderdomain.OrderStatusPaid,
		OrderType:         orderType,
		ShipPhone:         in.Phone,
		ShipRecipientName: in.BuyerName,
		ReleaseAt:         now.Add(s.holdPeriod),
		PaidAt:            now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func validateInput(in orderdomain.MaterializeInput) error {
	if in.SessionID == "" ||
		in.BuyerID == 0 ||
		in.VendorID == 0 ||
		in.VendorAccountID == "" ||
		in.AddressID == 0 ||
		in.Phone == "" ||
		in.BuyerName == "" {
		return paymentdomain.ErrMalformedEvent
	}
	if in.AmountTotal <= 0 || in.FeeAmount < 0 || in.FeeAmount > in.AmountTotal {
		return paymentdomain.ErrMalformedEvent
	}
	return nil
}
