package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

type blockProcessor struct {
	client     ChainClient
	attributor Attributor
	store      AggregateStore
	archive    Archive
	metrics    Metrics
	logger     *zap.Logger
}

// Process handles heights strictly in order and stops at the first failure.
// merged is called after each height has been merged into the store.
func (p *blockProcessor) Process(ctx context.Context, heights []uint64, merged func(height uint64)) error {
	for _, height := range heights {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processHeight(ctx, height); err != nil {
			return err
		}
		if merged != nil {
			merged(height)
		}
	}
	return nil
}

func (p *blockProcessor) processHeight(ctx context.Context, height uint64) (err error) {
	started := time.Now()
	defer func() {
		p.observeHeight(err, height, started)
	}()

	block, err := p.client.GetBlock(ctx, model.BlockQuery{Height: height})
	if err != nil {
		p.logger.Warn("fetch block failed", zap.Uint64("height", height), zap.Error(err))
		return fmt.Errorf("fetch block height %d: %w", height, err)
	}

	attr := p.attributor.Attribute(block)
	attr.Height = height
	p.store.Merge(attr)
	p.observeAttribution(attr.Algorithm)

	p.logger.Debug("block attributed",
		zap.Uint64("height", height),
		zap.String("miner", attr.Miner),
		zap.String("algorithm", string(attr.Algorithm)),
	)

	if p.archive != nil {
		if archiveErr := p.archive.Write(ctx, attr); archiveErr != nil {
			p.logger.Warn("archive attribution failed", zap.Uint64("height", height), zap.Error(archiveErr))
		}
	}
	return nil
}

func (p *blockProcessor) observeHeight(err error, height uint64, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveProcessHeight(err, height, started)
}

func (p *blockProcessor) observeAttribution(algorithm model.Algorithm) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveAttribution(algorithm)
}
