package repository

import (
	"context"
	"strings"

	"github.com/despiezo/marketplace/internal/membership/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindPlanByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*domain.Plan, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return nil, nil
	}
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, stripe_price_id, interval, created_at
		 FROM membership_plans WHERE stripe_price_id = ? LIMIT 1`,
		priceID,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}
