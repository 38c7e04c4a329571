package escrow

import (
	"context"
	"time"

	"github.com/despiezo/marketplace/internal/config"
	"github.com/despiezo/marketplace/internal/escrow/domain"
	"github.com/despiezo/marketplace/internal/escrow/repository"
	"github.com/despiezo/marketplace/internal/escrow/service"
	"github.com/despiezo/marketplace/internal/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("escrow",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Invoke(RunSweeper),
)

func RunSweeper(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, svc domain.Service, locker *lock.Locker) {
	interval := time.Duration(cfg.EscrowSweepInterval) * time.Second
	if interval <= 0 {
		return
	}
	sweeper := NewSweeper(log, svc, locker, interval)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
