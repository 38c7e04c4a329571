package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/escrow/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindDueOrderIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM orders
		 WHERE status = 'paid' AND payout_released = FALSE AND release_at <= ?
		 ORDER BY release_at
		 LIMIT ?`,
		now, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ClaimRelease(ctx context.Context, db *gorm.DB, orderID snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payout_released = TRUE, released_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'paid' AND payout_released = FALSE`,
		now, now, orderID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetTransferID(ctx context.Context, db *gorm.DB, orderID snowflake.ID, transferID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET payout_transfer_id = ? WHERE id = ?`,
		transferID, orderID,
	).Error
}
