// Package service activates paid featured-listing windows.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/despiezo/marketplace/internal/catalog/domain"
	"github.com/despiezo/marketplace/internal/clock"
	obsmetrics "github.com/despiezo/marketplace/internal/observability/metrics"
	paymentdomain "github.com/despiezo/marketplace/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	CatalogRepo catalogdomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	catalogRepo catalogdomain.Repository
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("featured.service"),
		clock:       p.Clock,
		catalogRepo: p.CatalogRepo,
		obsMetrics:  p.ObsMetrics,
	}
}

// Activate sets the featured window from the moment of payment. Re-promoting
// a still-featured listing restarts the clock; windows never stack.
func (s *Service) Activate(ctx context.Context, productID snowflake.ID, days int) error {
	if productID == 0 || days <= 0 {
		return paymentdomain.ErrMalformedEvent
	}

	now := s.clock.Now()
	until := now.Add(time.Duration(days) * 24 * time.Hour)

	updated, err := s.catalogRepo.SetFeaturedWindow(ctx, s.db, productID, now, until)
	if err != nil {
		return err
	}
	if !updated {
		return catalogdomain.ErrProductNotFound
	}

	s.log.Info("featured window activated",
		zap.String("product_id", productID.String()),
		zap.Int("days", days),
		zap.Time("featured_until", until),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordFeaturedActivation(ctx)
	}
	return nil
}
