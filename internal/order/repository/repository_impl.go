package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/order/domain"
	pkgdb "github.com/despiezo/marketplace/pkg/db"
	"gorm.io/gorm"
)

const orderColumns = `id, buyer_id, vendor_id, checkout_session_id, payment_intent_id,
	amount_total, vendor_amount, fee_amount, currency, status, order_type,
	ship_recipient_name, ship_country, ship_city, ship_postal_code, ship_line1, ship_line2, ship_phone,
	release_at, payout_released, released_at, payout_transfer_id,
	paid_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`,
		id,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE checkout_session_id = ? LIMIT 1`,
		sessionID,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, kit_id, quantity, created_at
		 FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, buyer_id, vendor_id, checkout_session_id, payment_intent_id,
			amount_total, vendor_amount, fee_amount, currency, status, order_type,
			ship_recipient_name, ship_country, ship_city, ship_postal_code, ship_line1, ship_line2, ship_phone,
			release_at, payout_released, released_at, payout_transfer_id,
			paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (checkout_session_id) DO NOTHING`,
		order.ID,
		order.BuyerID,
		order.VendorID,
		order.CheckoutSessionID,
		order.PaymentIntentID,
		order.AmountTotal,
		order.VendorAmount,
		order.FeeAmount,
		order.Currency,
		order.Status,
		order.OrderType,
		order.ShipRecipientName,
		order.ShipCountry,
		order.ShipCity,
		order.ShipPostalCode,
		order.ShipLine1,
		order.ShipLine2,
		order.ShipPhone,
		order.ReleaseAt,
		order.PayoutReleased,
		order.ReleasedAt,
		order.PayoutTransferID,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if res.Error != nil {
		// Some drivers surface the race as a constraint error instead of a
		// zero-row conflict clause.
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.OrderItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_items (id, order_id, product_id, kit_id, quantity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrderID,
		item.ProductID,
		item.KitID,
		item.Quantity,
		item.CreatedAt,
	).Error
}
