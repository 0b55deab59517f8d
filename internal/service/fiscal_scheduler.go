package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/models"
)

type fiscalResetter interface {
	ResetAtFiscalBoundary(ctx context.Context, now time.Time, actorID string) (*models.FiscalResetResult, error)
}

// FiscalScheduler periodically triggers the fiscal year reset. The reset is a no-op once the
// current year's marker is complete, so checking often is cheap.
type FiscalScheduler struct {
	Resetter      fiscalResetter
	CheckInterval time.Duration
	Enabled       bool
	Timeout       time.Duration

	logger *zap.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewFiscalScheduler creates a scheduler checking every interval.
func NewFiscalScheduler(resetter fiscalResetter, interval time.Duration, enabled bool, logger *zap.Logger) *FiscalScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &FiscalScheduler{
		Resetter:      resetter,
		CheckInterval: interval,
		Enabled:       enabled,
		Timeout:       10 * time.Minute,
		logger:        logger,
		now:           time.Now,
	}
}

// Start launches the background loop. The first check runs immediately.
func (fs *FiscalScheduler) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		fs.logger.Info("fiscal reset scheduler disabled")
		return
	}
	if fs.ticker != nil {
		return
	}

	fs.ticker = time.NewTicker(fs.CheckInterval)
	fs.stop = make(chan struct{})
	fs.wg.Add(1)
	go fs.run(fs.ticker, fs.stop)

	fs.logger.Info("fiscal reset scheduler started", zap.Duration("interval", fs.CheckInterval))
}

// Stop halts the loop and waits for an in-flight check to return.
func (fs *FiscalScheduler) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.ticker == nil {
		return
	}
	fs.ticker.Stop()
	close(fs.stop)
	fs.wg.Wait()
	fs.ticker = nil
	fs.logger.Info("fiscal reset scheduler stopped")
}

func (fs *FiscalScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer fs.wg.Done()

	fs.check()
	for {
		select {
		case <-ticker.C:
			fs.check()
		case <-stop:
			return
		}
	}
}

func (fs *FiscalScheduler) check() {
	ctx, cancel := context.WithTimeout(context.Background(), fs.Timeout)
	defer cancel()

	result, err := fs.Resetter.ResetAtFiscalBoundary(ctx, fs.now(), "")
	if err != nil {
		fs.logger.Error("scheduled fiscal reset failed", zap.Error(err))
		return
	}
	if result.AlreadyDone {
		fs.logger.Debug("fiscal reset already done", zap.Int("fiscal_year", result.FiscalYear))
		return
	}
	fs.logger.Info("scheduled fiscal reset ran",
		zap.Int("fiscal_year", result.FiscalYear),
		zap.Int("employees_reset", result.EmployeesReset),
		zap.Int("failed", len(result.Errors)))
}
