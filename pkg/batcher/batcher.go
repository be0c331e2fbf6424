// Package batcher provides a generic buffered batch processor with rate limiting.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

var (
	// ErrStopped is returned by Add once the batcher has been stopped.
	ErrStopped = errors.New("batcher stopped")
	// ErrQueueFull is returned by TryAdd when the buffer has no room left.
	ErrQueueFull = errors.New("batcher queue full")
)

// Options tunes a Batcher.
type Options struct {
	// FlushSize triggers a flush once this many items are buffered.
	FlushSize int
	// FlushInterval triggers a flush of whatever is buffered.
	FlushInterval time.Duration
	// RequestsPerSecond caps flush calls; zero means unlimited.
	RequestsPerSecond int
	// FlushTimeout bounds a single flush call; zero means no bound.
	FlushTimeout time.Duration
	// ShutdownTimeout bounds the final flush on stop.
	ShutdownTimeout time.Duration
}

// Batcher buffers items and flushes them either by size or interval.
type Batcher[T any] struct {
	flushCallback   func(context.Context, []T) error
	itemsCh         chan T
	flushSize       int
	flushInterval   time.Duration
	flushTimeout    time.Duration
	shutdownTimeout time.Duration
	rl              ratelimit.Limiter
	logger          *zap.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs a Batcher.
func New[T any](logger *zap.Logger, flushCallback func(context.Context, []T) error, opts Options) *Batcher[T] {
	if opts.FlushSize <= 0 {
		opts.FlushSize = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := ratelimit.NewUnlimited()
	if opts.RequestsPerSecond > 0 {
		rl = ratelimit.New(opts.RequestsPerSecond)
	}

	return &Batcher[T]{
		logger:          logger,
		flushCallback:   flushCallback,
		itemsCh:         make(chan T, opts.FlushSize*2),
		flushSize:       opts.FlushSize,
		flushInterval:   opts.FlushInterval,
		flushTimeout:    opts.FlushTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		rl:              rl,
		stop:            make(chan struct{}),
	}
}

// Start begins the background flushing loop.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop stops the background loop after flushing everything queued so far.
// It is safe to call more than once.
func (b *Batcher[T]) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
}

// Add queues an item for batching, respecting context cancellation.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	select {
	case <-b.stop:
		return ErrStopped
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stop:
		return ErrStopped
	case b.itemsCh <- item:
		return nil
	}
}

// TryAdd queues an item without waiting for room in the buffer.
func (b *Batcher[T]) TryAdd(item T) error {
	select {
	case <-b.stop:
		return ErrStopped
	default:
	}

	select {
	case <-b.stop:
		return ErrStopped
	case b.itemsCh <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *Batcher[T]) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	buf := make([]T, 0, b.flushSize)

	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}

		b.rl.Take()
		if b.flushTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.flushTimeout)
			defer cancel()
		}
		err := b.flushCallback(ctx, buf)
		if err != nil {
			b.logger.Error("batch not flushed", zap.Int("size", len(buf)), zap.Error(err))
		} else {
			b.logger.Debug("batch flushed", zap.Int("size", len(buf)))
		}
		buf = buf[:0]
	}

	// drain flushes whatever is still queued with a context detached from
	// the canceled parent.
	drain := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.shutdownTimeout)
		defer cancel()
		for {
			select {
			case item := <-b.itemsCh:
				buf = append(buf, item)
				if len(buf) >= b.flushSize {
					flush(shutdownCtx)
				}
			default:
				flush(shutdownCtx)
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return

		case <-b.stop:
			drain()
			return

		case item := <-b.itemsCh:
			buf = append(buf, item)
			if len(buf) >= b.flushSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}
