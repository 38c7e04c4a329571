// Package domain contains persistence models for products and kits.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProductStatus represents the lifecycle states of a listing.
type ProductStatus string

const (
	ProductStatusPublished ProductStatus = "publicado"
	ProductStatusSold      ProductStatus = "vendido"
	ProductStatusCanceled  ProductStatus = "cancelado"
)

// Product is a single auto-part listing.
type Product struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	VendorID      snowflake.ID  `json:"vendor_id" gorm:"not null;index"`
	Title         string        `json:"title" gorm:"type:text;not null"`
	Description   *string       `json:"description,omitempty" gorm:"type:text"`
	ImageURL      *string       `json:"image_url,omitempty" gorm:"type:text"`
	Status        ProductStatus `json:"status" gorm:"type:text;not null;default:'publicado'"`
	PriceAmount   int64         `json:"price_amount" gorm:"not null"`
	OfferAmount   *int64        `json:"offer_amount,omitempty"`
	FeaturedAt    *time.Time    `json:"featured_at,omitempty"`
	FeaturedUntil *time.Time    `json:"featured_until,omitempty"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// ChargeAmount is the price a buyer pays: the active offer if one exists,
// otherwise the list price.
func (p Product) ChargeAmount() int64 {
	if p.OfferAmount != nil && *p.OfferAmount > 0 {
		return *p.OfferAmount
	}
	return p.PriceAmount
}

// Kit is a vendor-defined bundle sold as one line item at a combined,
// discounted price.
type Kit struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	VendorID    snowflake.ID `json:"vendor_id" gorm:"not null;index"`
	Title       string       `json:"title" gorm:"type:text;not null"`
	TotalAmount int64        `json:"total_amount" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Kit) TableName() string { return "kits" }

type KitProduct struct {
	KitID     snowflake.ID `gorm:"primaryKey"`
	ProductID snowflake.ID `gorm:"primaryKey"`
}

func (KitProduct) TableName() string { return "kit_products" }

var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrKitNotFound     = errors.New("kit_not_found")

	// ErrProductUnavailable is returned when a listing is no longer
	// purchasable, including the write-time conditional flip losing a race.
	ErrProductUnavailable = errors.New("product_unavailable")
)
