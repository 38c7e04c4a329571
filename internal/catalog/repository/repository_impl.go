package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindProduct(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, title, description, image_url, status, price_amount,
			offer_amount, featured_at, featured_until, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindKit(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Kit, error) {
	var k domain.Kit
	err := db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, title, total_amount, created_at, updated_at
		 FROM kits WHERE id = ?`,
		id,
	).Scan(&k).Error
	if err != nil {
		return nil, err
	}
	if k.ID == 0 {
		return nil, nil
	}
	return &k, nil
}

func (r *repo) FindKitProductIDs(ctx context.Context, db *gorm.DB, kitID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT product_id FROM kit_products WHERE kit_id = ? ORDER BY product_id`,
		kitID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) MarkSold(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.ProductStatusSold,
		now,
		id,
		domain.ProductStatusPublished,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetFeaturedWindow(ctx context.Context, db *gorm.DB, id snowflake.ID, from, until time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET featured_at = ?, featured_until = ?, updated_at = ?
		 WHERE id = ?`,
		from,
		until,
		from,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
