// Package archive forwards per-height attributions to the ClickHouse archive.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/model"
	"github.com/goodnatureofminers/blockpie/pkg/batcher"
)

const (
	flushSize         = 500
	flushInterval     = 5 * time.Second
	flushTimeout      = 30 * time.Second
	requestsPerSecond = 5
)

// Writer buffers attributions and inserts them in batches. Failures are
// logged by the batcher and never reach the caller's ledger path.
type Writer struct {
	repo    Repository
	logger  *zap.Logger
	batcher *batcher.Batcher[model.Attribution]
}

// NewWriter builds a Writer on top of repo.
func NewWriter(repo Repository, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		repo:   repo,
		logger: logger.Named("archive"),
	}
	w.batcher = batcher.New[model.Attribution](
		w.logger.Named("batcher"),
		w.flush,
		batcher.Options{
			FlushSize:         flushSize,
			FlushInterval:     flushInterval,
			FlushTimeout:      flushTimeout,
			RequestsPerSecond: requestsPerSecond,
		},
	)
	return w
}

// Start launches the background flusher.
func (w *Writer) Start(ctx context.Context) {
	w.batcher.Start(ctx)
}

// Stop flushes everything queued and stops the flusher.
func (w *Writer) Stop() {
	w.batcher.Stop()
}

// Write queues one attribution without waiting. When the archive falls behind
// and the queue is full the attribution is dropped with batcher.ErrQueueFull;
// startup reconciliation reports the resulting gap.
func (w *Writer) Write(ctx context.Context, attr model.Attribution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.batcher.TryAdd(attr); err != nil {
		return fmt.Errorf("queue attribution %d: %w", attr.Height, err)
	}
	return nil
}

func (w *Writer) flush(ctx context.Context, attrs []model.Attribution) error {
	if err := w.repo.InsertAttributions(ctx, attrs); err != nil {
		return err
	}
	w.logger.Debug("attributions archived", zap.Int("count", len(attrs)))
	return nil
}
