package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/despiezo/marketplace/internal/catalog/domain"
	catalogrepo "github.com/despiezo/marketplace/internal/catalog/repository"
	"github.com/despiezo/marketplace/internal/clock"
	"github.com/despiezo/marketplace/internal/config"
	orderdomain "github.com/despiezo/marketplace/internal/order/domain"
	orderrepo "github.com/despiezo/marketplace/internal/order/repository"
	orderservice "github.com/despiezo/marketplace/internal/order/service"
	paymentdomain "github.com/despiezo/marketplace/internal/payment/domain"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	userrepo "github.com/despiezo/marketplace/internal/user/repository"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
	); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      orderdomain.Service
	buyerID  snowflake.ID
	vendorID snowflake.ID
	addrID   snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(20)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := orderservice.NewService(orderservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClock,
		Cfg:         config.Config{EscrowHoldDays: 20},
		Repo:        orderrepo.Provide(),
		CatalogRepo: catalogrepo.Provide(),
		UserRepo:    userrepo.Provide(),
	})

	f := &fixture{
		db:       db,
		node:     node,
		clock:    fakeClock,
		svc:      svc,
		buyerID:  node.Generate(),
		vendorID: node.Generate(),
		addrID:   node.Generate(),
	}

	f.seedUser(t, f.buyerID, "buyer@example.com", "Ana Comprador")
	f.seedUser(t, f.vendorID, "vendor@example.com", "Pepe Vendedor")
	if err := db.Exec(
		`INSERT INTO user_addresses (id, user_id, recipient_name, country, city, postal_code, line1, line2)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.addrID, f.buyerID, "Ana Comprador", "ES", "Madrid", "28001", "Calle Mayor 1", nil,
	).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return f
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, email, name string) {
	t.Helper()
	if err := f.db.Exec(
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`,
		id, email, name,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (f *fixture) seedProduct(t *testing.T, status string, price int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO products (id, vendor_id, title, status, price_amount)
		 VALUES (?, ?, ?, ?, ?)`,
		id, f.vendorID, "Alternador Bosch", status, price,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func (f *fixture) input(sessionID string, productID snowflake.ID, total, fee int64) orderdomain.MaterializeInput {
	return orderdomain.MaterializeInput{
		SessionID:       sessionID,
		PaymentIntentID: "pi_123",
		AmountTotal:     total,
		FeeAmount:       fee,
		BuyerID:         f.buyerID,
		VendorID:        f.vendorID,
		VendorAccountID: "acct_vendor",
		AddressID:       f.addrID,
		Phone:           "+34600111222",
		BuyerName:       "Ana Comprador",
		ProductID:       productID,
	}
}

func TestMaterializeProductCreatesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := f.seedProduct(t, "publicado", 10000)

	order, err := f.svc.MaterializeProduct(ctx, f.input("cs_1", productID, 10000, 1000))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if order.AmountTotal != order.VendorAmount+order.FeeAmount {
		t.Fatalf("amount invariant broken: total=%d vendor=%d fee=%d",
			order.AmountTotal, order.VendorAmount, order.FeeAmount)
	}
	if order.VendorAmount != 9000 {
		t.Fatalf("expected vendor amount 9000, got %d", order.VendorAmount)
	}
	if order.Status != orderdomain.OrderStatusPaid {
		t.Fatalf("expected status paid, got %s", order.Status)
	}

	wantRelease := f.clock.Now().Add(20 * 24 * time.Hour)
	if !order.ReleaseAt.Equal(wantRelease) {
		t.Fatalf("expected release_at %v, got %v", wantRelease, order.ReleaseAt)
	}

	if order.ShipRecipientName != "Ana Comprador" || order.ShipCity != "Madrid" {
		t.Fatalf("shipping snapshot not copied: %+v", order)
	}

	var status string
	if err := f.db.Raw(`SELECT status FROM products WHERE id = ?`, productID).Scan(&status).Error; err != nil {
		t.Fatalf("scan product status: %v", err)
	}
	if status != "vendido" {
		t.Fatalf("expected product vendido, got %s", status)
	}

	assertCount(t, f.db, `SELECT COUNT(1) FROM order_items`, 1)
}

func TestMaterializeProductDuplicateSessionCollapses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := f.seedProduct(t, "publicado", 5000)

	first, err := f.svc.MaterializeProduct(ctx, f.input("cs_dup", productID, 5000, 500))
	if err != nil {
		t.Fatalf("first materialize: %v", err)
	}
	second, err := f.svc.MaterializeProduct(ctx, f.input("cs_dup", productID, 5000, 500))
	if err != nil {
		t.Fatalf("second materialize: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("duplicate delivery created a second order: %s vs %s", first.ID, second.ID)
	}
	assertCount(t, f.db, `SELECT COUNT(1) FROM orders`, 1)
	assertCount(t, f.db, `SELECT COUNT(1) FROM order_items`, 1)
}

func TestMaterializeProductAlreadySold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := f.seedProduct(t, "vendido", 5000)

	_, err := f.svc.MaterializeProduct(ctx, f.input("cs_sold", productID, 5000, 500))
	if !errors.Is(err, catalogdomain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
	assertCount(t, f.db, `SELECT COUNT(1) FROM orders`, 0)
}

func TestMaterializeProductMissingFieldsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := f.seedProduct(t, "publicado", 5000)

	in := f.input("cs_bad", productID, 5000, 500)
	in.VendorAccountID = ""
	if _, err := f.svc.MaterializeProduct(ctx, in); !errors.Is(err, paymentdomain.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for missing payout account, got %v", err)
	}

	in = f.input("cs_bad2", productID, 5000, 6000)
	if _, err := f.svc.MaterializeProduct(ctx, in); !errors.Is(err, paymentdomain.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for fee above total, got %v", err)
	}
}

func TestMaterializeKitFlipsEveryMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	members := []snowflake.ID{
		f.seedProduct(t, "publicado", 3000),
		f.seedProduct(t, "publicado", 4000),
		f.seedProduct(t, "publicado", 5000),
	}
	kitID := f.node.Generate()

	in := f.input("cs_kit", 0, 10000, 1000)
	in.ProductID = 0
	in.KitID = kitID
	in.ProductIDs = members

	order, err := f.svc.MaterializeKit(ctx, in)
	if err != nil {
		t.Fatalf("materialize kit: %v", err)
	}
	if order.OrderType != orderdomain.OrderTypeKit {
		t.Fatalf("expected order_type KIT, got %s", order.OrderType)
	}

	assertCount(t, f.db, `SELECT COUNT(1) FROM order_items`, 3)
	assertCount(t, f.db, `SELECT COUNT(1) FROM order_items WHERE kit_id = `+kitID.String(), 3)
	assertCount(t, f.db, `SELECT COUNT(1) FROM products WHERE status = 'vendido'`, 3)
}

func TestMaterializeKitOneMemberSoldRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	members := []snowflake.ID{
		f.seedProduct(t, "publicado", 3000),
		f.seedProduct(t, "vendido", 4000),
	}
	kitID := f.node.Generate()

	in := f.input("cs_kit_bad", 0, 7000, 700)
	in.ProductID = 0
	in.KitID = kitID
	in.ProductIDs = members

	_, err := f.svc.MaterializeKit(ctx, in)
	if !errors.Is(err, catalogdomain.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}

	assertCount(t, f.db, `SELECT COUNT(1) FROM orders`, 0)
	// The rollback must restore the still-available member.
	assertCount(t, f.db, `SELECT COUNT(1) FROM products WHERE status = 'publicado'`, 1)
}

func assertCount(t *testing.T, db *gorm.DB, query string, want int64) {
	t.Helper()
	var got int64
	if err := db.Raw(query).Scan(&got).Error; err != nil {
		t.Fatalf("count query %q: %v", query, err)
	}
	if got != want {
		t.Fatalf("query %q: expected %d, got %d", query, want, got)
	}
}
