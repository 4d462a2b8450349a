package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the sweeper scans when no
// interval is configured.
const DefaultSweepInterval = 10 * time.Minute

// sweepSource lists transactions due for sweeping.  Satisfied by
// repository.TransactionRepo.
type sweepSource interface {
	ListExpiredPayment(ctx context.Context, now time.Time) ([]uint64, error)
	ListStaleAdmin(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// sweepEngine drives one transaction through its sweep transition.
// Satisfied by TransactionService.
type sweepEngine interface {
	ExpireOne(ctx context.Context, id uint64) error
	CancelStaleOne(ctx context.Context, id uint64) error
}

// Sweeper periodically expires transactions whose payment deadline
// passed and cancels ones stuck in review past StaleAdminTTL.  Each
// record is handled in its own database transaction, so one failure
// never blocks the rest of a pass.
type Sweeper struct {
	source   sweepSource
	engine   sweepEngine
	logger   *zap.Logger
	interval time.Duration

	// Now supplies the current time.  Overridable in tests.
	Now func() time.Time
}

// NewSweeper builds a sweeper.  A non-positive interval falls back to
// DefaultSweepInterval; a nil logger to a no-op one.
func NewSweeper(source sweepSource, engine sweepEngine, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		source:   source,
		engine:   engine,
		logger:   logger,
		interval: interval,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately, then on every tick until ctx is
// canceled.  Intended to run as a goroutine from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs both passes once and returns how many transactions
// were transitioned.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := s.Now()
	swept := 0

	expired, err := s.source.ListExpiredPayment(ctx, now)
	if err != nil {
		s.logger.Error("sweeper: list expired payments", zap.Error(err))
	}
	for _, id := range expired {
		if err := s.engine.ExpireOne(ctx, id); err != nil {
			s.logger.Warn("sweeper: expire failed", zap.Uint64("transaction_id", id), zap.Error(err))
			continue
		}
		swept++
		s.logger.Info("transaction expired", zap.Uint64("transaction_id", id))
	}

	stale, err := s.source.ListStaleAdmin(ctx, now.Add(-StaleAdminTTL))
	if err != nil {
		s.logger.Error("sweeper: list stale reviews", zap.Error(err))
	}
	for _, id := range stale {
		if err := s.engine.CancelStaleOne(ctx, id); err != nil {
			s.logger.Warn("sweeper: stale cancel failed", zap.Uint64("transaction_id", id), zap.Error(err))
			continue
		}
		swept++
		s.logger.Info("stale transaction canceled", zap.Uint64("transaction_id", id))
	}
	return swept
}
