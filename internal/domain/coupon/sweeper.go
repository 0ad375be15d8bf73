package coupon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deactivates coupons whose end date has passed. It
// only ever flips isActive from true to false; a redemption racing with the
// sweep re-reads validity under its row lock, so the worst outcome is that
// the redemption fails eligibility, which is correct.
type Sweeper struct {
	repo Repository
	lg   *zap.Logger
}

// NewSweeper creates a Sweeper using the given repository and logger.
func NewSweeper(repo Repository, lg *zap.Logger) *Sweeper {
	return &Sweeper{repo: repo, lg: lg}
}

// Run sweeps once immediately, then at every interval tick until the context
// is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.repo.DeactivateExpired(ctx, time.Now())
	if err != nil {
		s.lg.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.lg.Info("deactivated expired coupons", zap.Int64("count", n))
	}
}
