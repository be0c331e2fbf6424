package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

const insertAttributionsQuery = `
INSERT INTO block_attributions (
	height,
	block_hash,
	miner,
	algorithm
) VALUES`

// InsertAttributions stores attribution rows. Replays of a height collapse on merge.
func (r *Repository) InsertAttributions(ctx context.Context, attributions []model.Attribution) (err error) {
	start := time.Now()
	defer func() {
		r.observe("insert_attributions", err, start)
	}()

	if len(attributions) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertAttributionsQuery)
	if err != nil {
		return fmt.Errorf("prepare attributions batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = batch.Abort()
		}
	}()

	for _, attr := range attributions {
		if err = batch.Append(
			attr.Height,
			attr.BlockHash,
			attr.Miner,
			string(attr.Algorithm),
		); err != nil {
			return fmt.Errorf("append attribution height %d: %w", attr.Height, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert attributions: %w", err)
	}
	return nil
}
