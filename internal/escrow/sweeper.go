package escrow

import (
	"context"
	"time"

	"github.com/despiezo/marketplace/internal/escrow/domain"
	"github.com/despiezo/marketplace/internal/lock"
	"go.uber.org/zap"
)

const sweepLockKey = "escrow:sweep"

// Sweeper periodically releases orders whose hold period has elapsed. The
// redis lock only trims duplicate work across instances; correctness comes
// from the conditional claim update, so a lost lock is harmless.
type Sweeper struct {
	log      *zap.Logger
	svc      domain.Service
	locker   *lock.Locker
	interval time.Duration
}

func NewSweeper(log *zap.Logger, svc domain.Service, locker *lock.Locker, interval time.Duration) *Sweeper {
	return &Sweeper{
		log:      log.Named("escrow.sweeper"),
		svc:      svc,
		locker:   locker,
		interval: interval,
	}
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("escrow sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) error {
	token, acquired, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := s.locker.Release(ctx, sweepLockKey, token); err != nil {
			s.log.Warn("escrow sweep lock release failed", zap.Error(err))
		}
	}()

	count, err := s.svc.ReleaseDue(ctx)
	if count > 0 {
		s.log.Info("escrow sweep released orders", zap.Int("count", count))
	}
	return err
}
