package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/ratelimit"

	"nodove/auth/internal/lib/logger/sl"
)

type BlockRepository interface {
	ScanBlocks(ctx context.Context, count int64, fn func(userIDs []string) error) error
	DeleteStaleBlock(ctx context.Context, userID string, now time.Time) (bool, error)
}

// BlockSweeper removes block records whose unblock time has passed but whose cache
// TTL has not. The gate never depends on it: stale records already stop blocking.
type BlockSweeper struct {
	log       *slog.Logger
	repo      BlockRepository
	limiter   ratelimit.Limiter
	interval  time.Duration
	batchSize int64
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewBlockSweeper checks at most rate records per second.
func NewBlockSweeper(
	log *slog.Logger,
	repo BlockRepository,
	interval time.Duration,
	rate int,
	batchSize int64,
) *BlockSweeper {
	if rate <= 0 {
		rate = 100
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &BlockSweeper{
		log:       log.With(slog.String("component", "block_sweeper")),
		repo:      repo,
		limiter:   ratelimit.New(rate),
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

func (w *BlockSweeper) Start() {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()

	w.log.Info("block sweeper started",
		slog.Duration("interval", w.interval),
		slog.Int64("batch_size", w.batchSize),
	)
}

func (w *BlockSweeper) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()

	w.mu.Lock()
	w.isRunning = false
	w.mu.Unlock()

	w.log.Info("block sweeper stopped")
}

func (w *BlockSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error("block sweep failed", sl.Err(err))
			}
			cancel()
		}
	}
}

// Sweep walks all block records once and returns how many stale ones it removed.
func (w *BlockSweeper) Sweep(ctx context.Context) (int, error) {
	var removed, failed int

	err := w.repo.ScanBlocks(ctx, w.batchSize, func(userIDs []string) error {
		for _, id := range userIDs {
			select {
			case <-w.stopCh:
				return context.Canceled
			default:
			}
			w.limiter.Take()

			deleted, err := w.repo.DeleteStaleBlock(ctx, id, w.now())
			if err != nil {
				w.log.Error("failed to sweep block record", slog.String("userId", id), sl.Err(err))
				failed++
				continue
			}
			if deleted {
				removed++
			}
		}
		return ctx.Err()
	})

	if removed > 0 || failed > 0 {
		w.log.Info("block sweep completed",
			slog.Int("removed", removed),
			slog.Int("failed", failed),
		)
	}

	return removed, err
}
