package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindProduct(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindKit(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Kit, error)
	FindKitProductIDs(ctx context.Context, db *gorm.DB, kitID snowflake.ID) ([]snowflake.ID, error)

	// MarkSold flips publicado to vendido, conditional on the listing still
	// being publicado. Returns false when the flip lost the race.
	MarkSold(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)

	// SetFeaturedWindow overwrites any existing featured window.
	SetFeaturedWindow(ctx context.Context, db *gorm.DB, id snowflake.ID, from, until time.Time) (bool, error)
}
