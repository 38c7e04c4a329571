package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/user/domain"
	"gorm.io/gorm"
)

const userColumns = `id, email, name, phone, session_token, stripe_account_id,
	pro, stripe_customer_id, stripe_subscription_id, stripe_price_id,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, `LOWER(email) = ?`, email)
}

func (r *repo) FindBySessionToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, `session_token = ?`, token)
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.User, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, `stripe_subscription_id = ?`, subscriptionID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`,
		arg,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) FindAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Address, error) {
	var a domain.Address
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, recipient_name, country, city, postal_code, line1, line2,
			created_at, updated_at
		 FROM user_addresses WHERE id = ?`,
		id,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) ActivateMembership(ctx context.Context, db *gorm.DB, userID snowflake.ID, refs domain.MembershipRefs, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET pro = ?, stripe_customer_id = ?, stripe_subscription_id = ?, stripe_price_id = ?, updated_at = ?
		 WHERE id = ?`,
		true,
		refs.CustomerID,
		refs.SubscriptionID,
		refs.PriceID,
		now,
		userID,
	).Error
}

func (r *repo) ClearMembership(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET pro = ?, stripe_customer_id = NULL, stripe_subscription_id = NULL, stripe_price_id = NULL, updated_at = ?
		 WHERE id = ?`,
		false,
		now,
		userID,
	).Error
}
