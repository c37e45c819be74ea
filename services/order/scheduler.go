package order

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradepulse/pkg/config"
)

// Scheduler polls pending orders on a fixed interval and fans each one out
// to the order service. Orders are isolated: one order's failure never
// touches another's processing.
type Scheduler struct {
	svc         *Service
	interval    time.Duration
	parallelism int

	inFlight atomic.Bool
	now      func() time.Time
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	interval := cfg.Engine.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	parallelism := cfg.Engine.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}
	return &Scheduler{
		svc:         svc,
		interval:    interval,
		parallelism: parallelism,
		now:         time.Now,
	}
}

// RunCycle evaluates every pending order once. If a previous cycle is still
// running the call returns immediately; a slow cycle never stacks behind
// itself.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		zap.L().Debug("previous cycle still running, skipping")
		return
	}
	defer s.inFlight.Store(false)

	now := s.now()

	limits, err := s.svc.PendingLimitOrders(ctx)
	if err != nil {
		zap.L().Error("failed to load pending limit orders", zap.Error(err))
		limits = nil
	}
	dcas, err := s.svc.PendingDcaOrders(ctx)
	if err != nil {
		zap.L().Error("failed to load pending dca orders", zap.Error(err))
		dcas = nil
	}
	if len(limits) == 0 && len(dcas) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, o := range limits {
		o := o
		g.Go(func() error {
			s.svc.processLimitOrder(gctx, o, now)
			return nil
		})
	}
	for _, o := range dcas {
		o := o
		g.Go(func() error {
			s.svc.processDcaOrder(gctx, o, now)
			return nil
		})
	}
	_ = g.Wait()
}

// StartScheduler runs the poll loop for the lifetime of the process. The
// loop gets its own cancelable context; the fx start context is only valid
// during startup.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("order scheduler started", zap.Duration("poll_interval", s.interval))
			go func() {
				defer close(done)
				ticker := time.NewTicker(s.interval)
				defer ticker.Stop()
				for {
					select {
					case <-loopCtx.Done():
						return
					case <-ticker.C:
						s.RunCycle(loopCtx)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
