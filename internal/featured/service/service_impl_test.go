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
	featuredservice "github.com/despiezo/marketplace/internal/featured/service"
	paymentdomain "github.com/despiezo/marketplace/internal/payment/domain"
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

	if err := db.AutoMigrate(&catalogdomain.Product{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, fakeClock *clock.FakeClock) *featuredservice.Service {
	t.Helper()
	return featuredservice.NewService(featuredservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       fakeClock,
		CatalogRepo: catalogrepo.Provide(),
	})
}

func featuredWindow(t *testing.T, db *gorm.DB, id snowflake.ID) (time.Time, time.Time) {
	t.Helper()
	var row struct {
		FeaturedAt    time.Time
		FeaturedUntil time.Time
	}
	if err := db.Raw(`SELECT featured_at, featured_until FROM products WHERE id = ?`, id).Scan(&row).Error; err != nil {
		t.Fatalf("scan window: %v", err)
	}
	return row.FeaturedAt, row.FeaturedUntil
}

func TestActivateSetsWindowFromPaymentTime(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newService(t, db, fakeClock)

	node, err := snowflake.NewNode(24)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	productID := node.Generate()
	if err := db.Exec(
		`INSERT INTO products (id, vendor_id, title, price_amount) VALUES (?, ?, 'Faro xenon', 4000)`,
		productID, node.Generate(),
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	if err := svc.Activate(ctx, productID, 15); err != nil {
		t.Fatalf("activate: %v", err)
	}

	from, until := featuredWindow(t, db, productID)
	if !from.Equal(fakeClock.Now()) {
		t.Fatalf("expected window start %v, got %v", fakeClock.Now(), from)
	}
	if !until.Equal(fakeClock.Now().Add(15 * 24 * time.Hour)) {
		t.Fatalf("expected window end +15d, got %v", until)
	}
}

func TestActivateOverwritesExistingWindow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newService(t, db, fakeClock)

	node, err := snowflake.NewNode(25)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	productID := node.Generate()
	if err := db.Exec(
		`INSERT INTO products (id, vendor_id, title, price_amount) VALUES (?, ?, 'Faro xenon', 4000)`,
		productID, node.Generate(),
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	if err := svc.Activate(ctx, productID, 30); err != nil {
		t.Fatalf("first activate: %v", err)
	}

	// A second purchase restarts the window; the remaining time of the first
	// one is discarded, not added.
	fakeClock.Advance(24 * time.Hour)
	if err := svc.Activate(ctx, productID, 7); err != nil {
		t.Fatalf("second activate: %v", err)
	}

	from, until := featuredWindow(t, db, productID)
	if !from.Equal(fakeClock.Now()) {
		t.Fatalf("expected restarted window, got start %v", from)
	}
	if !until.Equal(fakeClock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected window end +7d, got %v", until)
	}
}

func TestActivateRejections(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newService(t, db, fakeClock)

	node, err := snowflake.NewNode(26)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	if err := svc.Activate(ctx, node.Generate(), 15); !errors.Is(err, catalogdomain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if err := svc.Activate(ctx, node.Generate(), 0); !errors.Is(err, paymentdomain.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for zero days, got %v", err)
	}
}
