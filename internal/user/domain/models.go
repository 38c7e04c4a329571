// Package domain contains persistence models for marketplace users and their
// address book.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a marketplace account. Vendors additionally carry a connected
// payout account; members carry the subscription references set by the
// membership sync.
type User struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Email        string       `json:"email" gorm:"type:text;not null"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	Phone        *string      `json:"phone,omitempty" gorm:"type:text"`
	SessionToken *string      `json:"-" gorm:"type:text"`

	StripeAccountID *string `json:"stripe_account_id,omitempty" gorm:"type:text"`

	Pro                  bool    `json:"pro" gorm:"not null;default:false"`
	StripeCustomerID     *string `json:"stripe_customer_id,omitempty" gorm:"type:text"`
	StripeSubscriptionID *string `json:"stripe_subscription_id,omitempty" gorm:"type:text"`
	StripePriceID        *string `json:"stripe_price_id,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

// Address is an address-book entry. Orders copy its fields into an immutable
// snapshot at purchase time; they never reference it afterwards.
type Address struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;index"`
	RecipientName string       `json:"recipient_name" gorm:"type:text;not null"`
	Country       string       `json:"country" gorm:"type:text;not null"`
	City          string       `json:"city" gorm:"type:text;not null"`
	PostalCode    string       `json:"postal_code" gorm:"type:text;not null"`
	Line1         string       `json:"line1" gorm:"type:text;not null"`
	Line2         *string      `json:"line2,omitempty" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Address) TableName() string { return "user_addresses" }

var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrAddressNotFound = errors.New("address_not_found")
)
