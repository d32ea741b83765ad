package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bridgeScope/internal/indexer"
	"bridgeScope/internal/provider"
)

// Scanner is the indexer surface the watcher drives.
type Scanner interface {
	Filters() []string
	ScanStep(ctx context.Context, id string, handler indexer.Handler) (indexer.StepResult, error)
}

// Config holds the watcher loop settings.
type Config struct {
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxBackoff caps the retry delay. Defaults to PollInterval.
	MaxBackoff time.Duration
	// Once stops each filter after it has caught up with the safe head.
	Once bool
}

// Watcher scans every registered filter concurrently, one goroutine per
// filter. Transient failures back off per filter and never stop the others.
type Watcher struct {
	scanner Scanner
	handler indexer.Handler
	cfg     Config
	logger  *zap.Logger
}

// New builds a Watcher. handler may be nil.
func New(scanner Scanner, handler indexer.Handler, cfg Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = cfg.PollInterval
	}
	return &Watcher{scanner: scanner, handler: handler, cfg: cfg, logger: logger}
}

// IsPermanent reports whether err must stop the watcher instead of being
// retried.
func IsPermanent(err error) bool {
	return indexer.IsFatal(err) || errors.Is(err, provider.ErrUnrecognizedState)
}

// Run blocks until ctx is cancelled, every filter caught up in Once mode, or a
// filter fails permanently. Cancellation is not an error.
//
// In Once mode a filter whose transient failures outlast MaxRetries gives up
// alone; Run reports those failures after the remaining filters finish.
func (w *Watcher) Run(ctx context.Context) error {
	filters := w.scanner.Filters()
	if len(filters) == 0 {
		return fmt.Errorf("no filters registered")
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	group, ctx := errgroup.WithContext(ctx)
	for _, id := range filters {
		id := id
		group.Go(func() error {
			err := w.watch(ctx, id)
			if err != nil && !IsPermanent(err) && ctx.Err() == nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			}
			return err
		})
	}

	err := group.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return err
	}
	return errors.Join(failures...)
}

func (w *Watcher) watch(ctx context.Context, id string) error {
	logger := w.logger.With(zap.String("filter_id", id))
	logger.Info("watch filter", zap.Duration("poll_interval", w.cfg.PollInterval))

	for {
		var result indexer.StepResult
		err := withRetry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, w.cfg.MaxBackoff, IsPermanent, func(ctx context.Context) error {
			var err error
			result, err = w.scanner.ScanStep(ctx, id, w.handler)
			if err != nil && ctx.Err() == nil && !IsPermanent(err) {
				logger.Warn("scan step failed", zap.Error(err))
			}
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsPermanent(err) {
				logger.Error("filter stopped", zap.Error(err))
				return fmt.Errorf("filter %s: %w", id, err)
			}
			if w.cfg.Once {
				logger.Error("filter gave up", zap.Error(err))
				return fmt.Errorf("filter %s: %w", id, err)
			}
			logger.Warn("retries exhausted, backing off", zap.Error(err), zap.Duration("delay", w.cfg.MaxBackoff))
			if err := sleep(ctx, w.cfg.MaxBackoff); err != nil {
				return err
			}
			continue
		}
		if result.Scanned {
			continue
		}
		if w.cfg.Once {
			logger.Info("filter caught up")
			return nil
		}

		if err := sleep(ctx, w.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
