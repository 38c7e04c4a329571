package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/despiezo/marketplace/internal/catalog/domain"
	catalogrepo "github.com/despiezo/marketplace/internal/catalog/repository"
	checkoutdomain "github.com/despiezo/marketplace/internal/checkout/domain"
	checkoutservice "github.com/despiezo/marketplace/internal/checkout/service"
	"github.com/despiezo/marketplace/internal/config"
	"github.com/despiezo/marketplace/internal/providers/stripe"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	userrepo "github.com/despiezo/marketplace/internal/user/repository"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeStripe struct {
	sessions []stripe.CheckoutSessionParams
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (stripe.CheckoutSession, error) {
	f.sessions = append(f.sessions, params)
	return stripe.CheckoutSession{
		ID:  fmt.Sprintf("cs_%d", len(f.sessions)),
		URL: fmt.Sprintf("https://checkout.stripe.com/pay/cs_%d", len(f.sessions)),
	}, nil
}

func (f *fakeStripe) RetrieveCustomer(ctx context.Context, customerID string) (stripe.Customer, error) {
	return stripe.Customer{}, errors.New("not implemented")
}

func (f *fakeStripe) CreateTransfer(ctx context.Context, params stripe.TransferParams) (stripe.Transfer, error) {
	return stripe.Transfer{}, errors.New("not implemented")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.AutoMigrate(
		&userdomain.User{},
		&userdomain.Address{},
		&catalogdomain.Product{},
		&catalogdomain.Kit{},
		&catalogdomain.KitProduct{},
	); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	stripe   *fakeStripe
	svc      checkoutdomain.Service
	buyer    *userdomain.User
	vendorID snowflake.ID
	addrID   snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(22)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fakeStripe := &fakeStripe{}

	cfg := config.Config{
		MarketplaceFeePercent: 10,
		CheckoutSuccessURL:    "https://despiezo.com/compra/exito",
		CheckoutCancelURL:     "https://despiezo.com/compra/cancelado",
		PromotionTiers:        map[int]int64{7: 500, 15: 900, 30: 1500},
	}

	svc := checkoutservice.NewService(checkoutservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		Cfg:         cfg,
		CatalogRepo: catalogrepo.Provide(),
		UserRepo:    userrepo.Provide(),
		Stripe:      fakeStripe,
	})

	buyerID := node.Generate()
	vendorID := node.Generate()
	addrID := node.Generate()

	if err := db.Exec(
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`,
		buyerID, "buyer@example.com", "Ana Comprador",
	).Error; err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO users (id, email, name, stripe_account_id) VALUES (?, ?, ?, ?)`,
		vendorID, "vendor@example.com", "Pepe Vendedor", "acct_vendor",
	).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO user_addresses (id, user_id, recipient_name, country, city, postal_code, line1)
		 VALUES (?, ?, 'Ana Comprador', 'ES', 'Madrid', '28001', 'Calle Mayor 1')`,
		addrID, buyerID,
	).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}

	return &fixture{
		db:     db,
		node:   node,
		stripe: fakeStripe,
		svc:    svc,
		buyer: &userdomain.User{
			ID:    buyerID,
			Email: "buyer@example.com",
			Name:  "Ana Comprador",
		},
		vendorID: vendorID,
		addrID:   addrID,
	}
}

func (f *fixture) seedProduct(t *testing.T, vendorID snowflake.ID, status string, price int64, offer *int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO products (id, vendor_id, title, status, price_amount, offer_amount)
		 VALUES (?, ?, 'Alternador Bosch', ?, ?, ?)`,
		id, vendorID, status, price, offer,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func TestBuildProductSessionEmbedsMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := f.seedProduct(t, f.vendorID, "publicado", 10000, nil)

	url, err := f.svc.BuildProductSession(ctx, f.buyer, checkoutdomain.ProductIntent{
		ProductID: productID,
		AddressID: f.addrID,
		Phone:     "+34600111222",
	})
	if err != nil {
		t.Fatalf("build session: %v", err)
	}
	if url == "" {
		t.Fatalf("expected a redirect url")
	}
	if len(f.stripe.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(f.stripe.sessions))
	}

	params := f.stripe.sessions[0]
	if params.Mode != "payment" || params.Currency != "eur" {
		t.Fatalf("unexpected session params: %+v", params)
	}
	if params.LineItem.UnitAmount != 10000 {
		t.Fatalf("expected charge 10000, got %d", params.LineItem.UnitAmount)
	}

	meta := params.Metadata
	if meta["typeOfBuy"] != "COMPRAR" {
		t.Fatalf("expected typeOfBuy COMPRAR, got %q", meta["typeOfBuy"])
	}
	if meta["applicationFee"] != "1000" {
		t.Fatalf("expected 10%% fee of 1000, got %q", meta["applicationFee"])
	}
	if meta["buyerId"] != f.buyer.ID.String() || meta["vendedorId"] != f.vendorID.String() {
		t.Fatalf("party ids missing from metadata: %v", meta)
	}
	if meta["vendedorConnectedAccountId"] != "acct_vendor" {
		t.Fatalf("expected payout account in metadata, got %q", meta["vendedorConnectedAccountId"])
	}
	if meta["userAddressId"] != f.addrID.String() || meta["userPhoneNumber"] != "+34600111222" {
		t.Fatalf("shipping refs missing from metadata: %v", meta)
	}
}

func TestBuildProductSessionUsesActiveOffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	offer := int64(7500)
	productID := f.seedProduct(t, f.vendorID, "publicado", 10000, &offer)

	if _, err := f.svc.BuildProductSession(ctx, f.buyer, checkoutdomain.ProductIntent{
		ProductID: productID,
		AddressID: f.addrID,
		Phone:     "+34600111222",
	}); err != nil {
		t.Fatalf("build session: %v", err)
	}

	params := f.stripe.sessions[0]
	if params.LineItem.UnitAmount != 7500 {
		t.Fatalf("expected offer price 7500, got %d", params.LineItem.UnitAmount)
	}
	if params.Metadata["applicationFee"] != "750" {
		t.Fatalf("fee must follow the offer price, got %q", params.Metadata["applicationFee"])
	}
}

func TestBuildProductSessionRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ownID := f.seedProduct(t, f.buyer.ID, "publicado", 5000, nil)
	if _, err := f.svc.BuildProductSession(ctx, f.buyer, checkoutdomain.ProductIntent{
		ProductID: ownID, AddressID: f.addrID, Phone: "+34600111222",
	}); !errors.Is(err, checkoutdomain.ErrSelfPurchase) {
		t.Fatalf("expected ErrSelfPurchase, got %v", err)
	}

	soldID := f.seedProduct(t, f.vendorID, "vendido", 5000, nil)
	if _, err := f.svc.BuildProductSession(ctx, f.buyer, checkoutdomain.ProductIntent{
		ProductID: soldID, AddressID: f.addrID, Phone: "+34600111222",
	}); !errors.Is(err, catalogdomain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}

	if _, err := f.svc.BuildProductSession(ctx, nil, checkoutdomain.ProductIntent{
		ProductID: soldID, AddressID: f.addrID, Phone: "+34600111222",
	}); !errors.Is(err, checkoutdomain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	if _, err := f.svc.BuildProductSession(ctx, f.buyer, checkoutdomain.ProductIntent{
		ProductID: f.node.Generate(), AddressID: f.addrID, Phone: "+34600111222",
	}); !errors.Is(err, catalogdomain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	if len(f.stripe.sessions) != 0 {
		t.Fatalf("no session may be created on rejection, got %d", len(f.stripe.sessions))
	}
}

func TestBuildProductSessionVendorWithoutPayoutAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bareVendorID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO users (id, email, name) VALUES (?, 'bare@example.com', 'Sin Cuenta')`,
		bareVendorID,
	).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	productID := f.seedProduct(t, bareVendorID, "publicado", 5000, nil)

	if _, err := f.svc.BuildProductSession(ctx, f.buyer, checkoutdomain.ProductIntent{
		ProductID: productID, AddressID: f.addrID, Phone: "+34600111222",
	}); !errors.Is(err, checkoutdomain.ErrVendorNoPayoutAccount) {
		t.Fatalf("expected ErrVendorNoPayoutAccount, got %v", err)
	}
}

func TestBuildKitSessionEncodesMemberIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	members := []snowflake.ID{
		f.seedProduct(t, f.vendorID, "publicado", 3000, nil),
		f.seedProduct(t, f.vendorID, "publicado", 4000, nil),
	}
	kitID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO kits (id, vendor_id, title, total_amount) VALUES (?, ?, 'Kit frenos', 6000)`,
		kitID, f.vendorID,
	).Error; err != nil {
		t.Fatalf("seed kit: %v", err)
	}
	for _, memberID := range members {
		if err := f.db.Exec(
			`INSERT INTO kit_products (kit_id, product_id) VALUES (?, ?)`,
			kitID, memberID,
		).Error; err != nil {
			t.Fatalf("seed kit member: %v", err)
		}
	}

	if _, err := f.svc.BuildKitSession(ctx, f.buyer, checkoutdomain.KitIntent{
		KitID: kitID, AddressID: f.addrID, Phone: "+34600111222",
	}); err != nil {
		t.Fatalf("build kit session: %v", err)
	}

	params := f.stripe.sessions[0]
	// The kit charges its pre-discounted bundle total, not the member sum.
	if params.LineItem.UnitAmount != 6000 {
		t.Fatalf("expected kit total 6000, got %d", params.LineItem.UnitAmount)
	}
	if params.Metadata["typeOfBuy"] != "COMPRAR-KIT" {
		t.Fatalf("expected typeOfBuy COMPRAR-KIT, got %q", params.Metadata["typeOfBuy"])
	}
	if params.Metadata["applicationFee"] != "600" {
		t.Fatalf("expected fee 600, got %q", params.Metadata["applicationFee"])
	}

	var ids []string
	if err := json.Unmarshal([]byte(params.Metadata["productIds"]), &ids); err != nil {
		t.Fatalf("productIds must be a JSON list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 member ids, got %v", ids)
	}
}

func TestBuildKitSessionMemberSoldRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	kitID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO kits (id, vendor_id, title, total_amount) VALUES (?, ?, 'Kit frenos', 6000)`,
		kitID, f.vendorID,
	).Error; err != nil {
		t.Fatalf("seed kit: %v", err)
	}
	soldID := f.seedProduct(t, f.vendorID, "vendido", 3000, nil)
	if err := f.db.Exec(
		`INSERT INTO kit_products (kit_id, product_id) VALUES (?, ?)`, kitID, soldID,
	).Error; err != nil {
		t.Fatalf("seed kit member: %v", err)
	}

	if _, err := f.svc.BuildKitSession(ctx, f.buyer, checkoutdomain.KitIntent{
		KitID: kitID, AddressID: f.addrID, Phone: "+34600111222",
	}); !errors.Is(err, catalogdomain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestBuildPromotionSessionTiers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	vendor := &userdomain.User{ID: f.vendorID, Email: "vendor@example.com", Name: "Pepe Vendedor"}
	productID := f.seedProduct(t, f.vendorID, "publicado", 5000, nil)

	if _, err := f.svc.BuildPromotionSession(ctx, vendor, checkoutdomain.PromotionIntent{
		ProductID: productID, Days: 15,
	}); err != nil {
		t.Fatalf("build promotion session: %v", err)
	}

	params := f.stripe.sessions[0]
	if params.LineItem.UnitAmount != 900 {
		t.Fatalf("expected 15-day tier price 900, got %d", params.LineItem.UnitAmount)
	}
	if params.Metadata["typeOfBuy"] != "DESTACAR" || params.Metadata["days"] != "15" {
		t.Fatalf("unexpected promotion metadata: %v", params.Metadata)
	}

	if _, err := f.svc.BuildPromotionSession(ctx, vendor, checkoutdomain.PromotionIntent{
		ProductID: productID, Days: 9,
	}); !errors.Is(err, checkoutdomain.ErrInvalidPromotionDays) {
		t.Fatalf("expected ErrInvalidPromotionDays, got %v", err)
	}

	// Only the listing's vendor may feature it.
	if _, err := f.svc.BuildPromotionSession(ctx, f.buyer, checkoutdomain.PromotionIntent{
		ProductID: productID, Days: 7,
	}); !errors.Is(err, checkoutdomain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestBuildPromotionSessionUnavailableListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	vendor := &userdomain.User{ID: f.vendorID, Email: "vendor@example.com", Name: "Pepe Vendedor"}
	soldID := f.seedProduct(t, f.vendorID, "vendido", 5000, nil)
	canceledID := f.seedProduct(t, f.vendorID, "cancelado", 5000, nil)

	if _, err := f.svc.BuildPromotionSession(ctx, vendor, checkoutdomain.PromotionIntent{
		ProductID: soldID, Days: 7,
	}); !errors.Is(err, catalogdomain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable for sold listing, got %v", err)
	}
	if _, err := f.svc.BuildPromotionSession(ctx, vendor, checkoutdomain.PromotionIntent{
		ProductID: canceledID, Days: 7,
	}); !errors.Is(err, catalogdomain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable for canceled listing, got %v", err)
	}
	if len(f.stripe.sessions) != 0 {
		t.Fatalf("expected no sessions created, got %d", len(f.stripe.sessions))
	}
}
