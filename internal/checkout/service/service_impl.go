package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/despiezo/marketplace/internal/catalog/domain"
	"github.com/despiezo/marketplace/internal/checkout/domain"
	"github.com/despiezo/marketplace/internal/config"
	obsmetrics "github.com/despiezo/marketplace/internal/observability/metrics"
	paymentdomain "github.com/despiezo/marketplace/internal/payment/domain"
	"github.com/despiezo/marketplace/internal/providers/stripe"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const checkoutCurrency = "eur"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	CatalogRepo catalogdomain.Repository
	UserRepo    userdomain.Repository
	Stripe      stripe.Client
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	catalogRepo catalogdomain.Repository
	userRepo    userdomain.Repository
	stripe      stripe.Client
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("checkout.service"),
		cfg:         p.Cfg,
		catalogRepo: p.CatalogRepo,
		userRepo:    p.UserRepo,
		stripe:      p.Stripe,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *service) BuildProductSession(ctx context.Context, buyer *userdomain.User, in domain.ProductIntent) (string, error) {
	if buyer == nil {
		return "", domain.ErrNotAuthenticated
	}

	product, err := s.catalogRepo.FindProduct(ctx, s.db, in.ProductID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", catalogdomain.ErrProductNotFound
	}
	if product.VendorID == buyer.ID {
		return "", domain.ErrSelfPurchase
	}
	if product.Status != catalogdomain.ProductStatusPublished {
		return "", catalogdomain.ErrProductUnavailable
	}

	payoutAccount, err := s.vendorPayoutAccount(ctx, product.VendorID)
	if err != nil {
		return "", err
	}
	if err := s.checkAddress(ctx, buyer, in.AddressID); err != nil {
		return "", err
	}

	charge := product.ChargeAmount()
	fee := applicationFee(charge, s.cfg.MarketplaceFeePercent)

	metadata := map[string]string{
		paymentdomain.MetaTypeOfBuy:       paymentdomain.PurchaseTypeProduct,
		paymentdomain.MetaBuyerID:         buyer.ID.String(),
		paymentdomain.MetaVendorID:        product.VendorID.String(),
		paymentdomain.MetaProductID:       product.ID.String(),
		paymentdomain.MetaVendorAccountID: payoutAccount,
		paymentdomain.MetaApplicationFee:  strconv.FormatInt(fee, 10),
		paymentdomain.MetaAddressID:       in.AddressID.String(),
		paymentdomain.MetaPhone:           strings.TrimSpace(in.Phone),
		paymentdomain.MetaUserName:        buyer.Name,
	}

	item := stripe.LineItem{
		Name:       product.Title,
		UnitAmount: charge,
		Quantity:   1,
	}
	if product.Description != nil {
		item.Description = *product.Description
	}
	if product.ImageURL != nil {
		item.ImageURL = *product.ImageURL
	}

	return s.createSession(ctx, paymentdomain.PurchaseTypeProduct, item, metadata)
}

func (s *service) BuildKitSession(ctx context.Context, buyer *userdomain.User, in domain.KitIntent) (string, error) {
	if buyer == nil {
		return "", domain.ErrNotAuthenticated
	}

	kit, err := s.catalogRepo.FindKit(ctx, s.db, in.KitID)
	if err != nil {
		return "", err
	}
	if kit == nil {
		return "", catalogdomain.ErrKitNotFound
	}
	if kit.VendorID == buyer.ID {
		return "", domain.ErrSelfPurchase
	}

	memberIDs, err := s.catalogRepo.FindKitProductIDs(ctx, s.db, kit.ID)
	if err != nil {
		return "", err
	}
	if len(memberIDs) == 0 {
		return "", catalogdomain.ErrProductNotFound
	}
	for _, id := range memberIDs {
		member, err := s.catalogRepo.FindProduct(ctx, s.db, id)
		if err != nil {
			return "", err
		}
		if member == nil {
			return "", catalogdomain.ErrProductNotFound
		}
		if member.Status != catalogdomain.ProductStatusPublished {
			return "", catalogdomain.ErrProductUnavailable
		}
	}

	payoutAccount, err := s.vendorPayoutAccount(ctx, kit.VendorID)
	if err != nil {
		return "", err
	}
	if err := s.checkAddress(ctx, buyer, in.AddressID); err != nil {
		return "", err
	}

	// The kit total is the vendor's pre-discounted bundle price; the fee is
	// taken from that total, not from the sum of member list prices.
	charge := kit.TotalAmount
	fee := applicationFee(charge, s.cfg.MarketplaceFeePercent)

	productIDs := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		productIDs = append(productIDs, id.String())
	}
	encodedIDs, err := json.Marshal(productIDs)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{
		paymentdomain.MetaTypeOfBuy:       paymentdomain.PurchaseTypeKit,
		paymentdomain.MetaBuyerID:         buyer.ID.String(),
		paymentdomain.MetaVendorID:        kit.VendorID.String(),
		paymentdomain.MetaKitID:           kit.ID.String(),
		paymentdomain.MetaProductIDs:      string(encodedIDs),
		paymentdomain.MetaVendorAccountID: payoutAccount,
		paymentdomain.MetaApplicationFee:  strconv.FormatInt(fee, 10),
		paymentdomain.MetaAddressID:       in.AddressID.String(),
		paymentdomain.MetaPhone:           strings.TrimSpace(in.Phone),
		paymentdomain.MetaUserName:        buyer.Name,
	}

	item := stripe.LineItem{
		Name:       kit.Title,
		UnitAmount: charge,
		Quantity:   1,
	}

	return s.createSession(ctx, paymentdomain.PurchaseTypeKit, item, metadata)
}

func (s *service) BuildPromotionSession(ctx context.Context, buyer *userdomain.User, in domain.PromotionIntent) (string, error) {
	if buyer == nil {
		return "", domain.ErrNotAuthenticated
	}

	product, err := s.catalogRepo.FindProduct(ctx, s.db, in.ProductID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", catalogdomain.ErrProductNotFound
	}
	if product.VendorID != buyer.ID {
		return "", domain.ErrNotOwner
	}
	if product.Status != catalogdomain.ProductStatusPublished {
		return "", catalogdomain.ErrProductUnavailable
	}

	price, ok := s.cfg.PromotionTiers[in.Days]
	if !ok {
		return "", domain.ErrInvalidPromotionDays
	}

	metadata := map[string]string{
		paymentdomain.MetaTypeOfBuy: paymentdomain.PurchaseTypePromotion,
		paymentdomain.MetaBuyerID:   buyer.ID.String(),
		paymentdomain.MetaProductID: product.ID.String(),
		paymentdomain.MetaDays:      strconv.Itoa(in.Days),
	}

	item := stripe.LineItem{
		Name:       "Destacar: " + product.Title,
		UnitAmount: price,
		Quantity:   1,
	}

	return s.createSession(ctx, paymentdomain.PurchaseTypePromotion, item, metadata)
}

func (s *service) createSession(ctx context.Context, purchaseType string, item stripe.LineItem, metadata map[string]string) (string, error) {
	session, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		Mode:       "payment",
		Currency:   checkoutCurrency,
		LineItem:   item,
		Metadata:   metadata,
		SuccessURL: s.cfg.CheckoutSuccessURL,
		CancelURL:  s.cfg.CheckoutCancelURL,
	})
	if err != nil {
		return "", err
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("type_of_buy", purchaseType),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, purchaseType)
	}
	return session.URL, nil
}

func (s *service) vendorPayoutAccount(ctx context.Context, vendorID snowflake.ID) (string, error) {
	vendor, err := s.userRepo.FindByID(ctx, s.db, vendorID)
	if err != nil {
		return "", err
	}
	if vendor == nil || vendor.StripeAccountID == nil || strings.TrimSpace(*vendor.StripeAccountID) == "" {
		return "", domain.ErrVendorNoPayoutAccount
	}
	return *vendor.StripeAccountID, nil
}

func (s *service) checkAddress(ctx context.Context, buyer *userdomain.User, addressID snowflake.ID) error {
	address, err := s.userRepo.FindAddress(ctx, s.db, addressID)
	if err != nil {
		return err
	}
	if address == nil || address.UserID != buyer.ID {
		return userdomain.ErrAddressNotFound
	}
	return nil
}

// applicationFee is the marketplace cut in minor units, rounded down.
func applicationFee(amount, percent int64) int64 {
	return amount * percent / 100
}
