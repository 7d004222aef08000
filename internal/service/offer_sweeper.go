package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vogiaan1904/farm-waitlist/config"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

// OfferSweeper periodically persists lapsed offers as expired. Reads never
// depend on it; it only keeps stored statuses and lifecycle events current.
type OfferSweeper interface {
	Start(ctx context.Context) error
	Stop() error
	RunOnce(ctx context.Context) (int, error)
	GetStatus() SweeperStatus
}

type SweeperStatus struct {
	IsRunning    bool      `json:"is_running"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	LastSweep    time.Time `json:"last_sweep,omitempty"`
	TotalExpired int64     `json:"total_expired"`
	ErrorCount   int64     `json:"error_count"`
}

type OfferExpirer interface {
	ExpireLapsedOffers(ctx context.Context, limit int) (int, error)
}

type sweeperConfig struct {
	Interval        time.Duration
	BatchSize       int
	MaxBatches      int
	RetryAttempts   int
	RetryDelay      time.Duration
	SweepTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type offerSweeper struct {
	svc    OfferExpirer
	logger logger.Logger
	config sweeperConfig

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup

	lastSweep    time.Time
	totalExpired int64
	errorCount   int64
}

func NewOfferSweeper(svc OfferExpirer, l logger.Logger, cfg config.SweepConfig) OfferSweeper {
	return &offerSweeper{
		svc:    svc,
		logger: l,
		config: sweeperConfig{
			Interval:        cfg.Interval,
			BatchSize:       cfg.BatchSize,
			MaxBatches:      10,
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			SweepTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func (sw *offerSweeper) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.isRunning {
		return errors.New("offer sweeper is already running")
	}

	sw.logger.Infof(ctx, "Starting offer sweeper: interval=%s batch_size=%d", sw.config.Interval, sw.config.BatchSize)

	sw.isRunning = true
	sw.startedAt = time.Now()
	sw.stopCh = make(chan struct{})
	sw.ticker = time.NewTicker(sw.config.Interval)

	sw.wg.Add(1)
	go sw.loop(ctx, sw.ticker, sw.stopCh)

	return nil
}

func (sw *offerSweeper) Stop() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.isRunning {
		return errors.New("offer sweeper is not running")
	}

	close(sw.stopCh)
	sw.ticker.Stop()

	done := make(chan struct{})
	go func() {
		sw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		sw.logger.Info(context.Background(), "Offer sweeper stopped gracefully")
	case <-time.After(sw.config.ShutdownTimeout):
		sw.logger.Warn(context.Background(), "Offer sweeper shutdown timeout exceeded")
	}

	sw.isRunning = false
	return nil
}

func (sw *offerSweeper) GetStatus() SweeperStatus {
	sw.mu.RLock()
	defer sw.mu.RUnlock()

	return SweeperStatus{
		IsRunning:    sw.isRunning,
		StartedAt:    sw.startedAt,
		LastSweep:    sw.lastSweep,
		TotalExpired: sw.totalExpired,
		ErrorCount:   sw.errorCount,
	}
}

func (sw *offerSweeper) loop(ctx context.Context, ticker *time.Ticker, stopCh <-chan struct{}) {
	defer sw.wg.Done()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info(ctx, "Offer sweeper stopped due to context cancellation")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := sw.RunOnce(ctx); err != nil {
				sw.logger.Errorf(ctx, "service.offerSweeper.loop: %v", err)
			}
		}
	}
}

// RunOnce drains lapsed offers in batches until a batch comes back short or
// MaxBatches is reached.
func (sw *offerSweeper) RunOnce(ctx context.Context) (int, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, sw.config.SweepTimeout)
	defer cancel()

	total := 0
	var sweepErr error
	for i := 0; i < sw.config.MaxBatches; i++ {
		var n int
		err := sw.withRetry(sweepCtx, func() error {
			var err error
			n, err = sw.svc.ExpireLapsedOffers(sweepCtx, sw.config.BatchSize)
			return err
		})
		total += n
		if err != nil {
			sweepErr = err
			break
		}
		if n < sw.config.BatchSize {
			break
		}
	}

	sw.mu.Lock()
	sw.lastSweep = time.Now()
	sw.totalExpired += int64(total)
	if sweepErr != nil {
		sw.errorCount++
	}
	sw.mu.Unlock()

	return total, sweepErr
}

func (sw *offerSweeper) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < sw.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sw.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := operation(); err != nil {
			lastErr = err
			sw.logger.Warnf(ctx, "Offer sweep failed (attempt %d/%d): %v", attempt+1, sw.config.RetryAttempts, err)
			continue
		}
		return nil
	}

	return lastErr
}
