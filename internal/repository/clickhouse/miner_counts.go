package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

const minerCountsQuery = `
SELECT
	miner,
	count() AS blocks,
	argMax(algorithm, height) AS last_algorithm
FROM block_attributions FINAL
WHERE miner != '' AND algorithm != 'stake'
GROUP BY miner
ORDER BY blocks DESC, miner ASC`

// MinerCounts aggregates the archive per miner, in snapshot order.
func (r *Repository) MinerCounts(ctx context.Context) (entries []model.AggregateEntry, err error) {
	start := time.Now()
	defer func() {
		r.observe("miner_counts", err, start)
	}()

	rows, err := r.conn.Query(ctx, minerCountsQuery)
	if err != nil {
		return nil, fmt.Errorf("query miner counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			miner     string
			blocks    uint64
			algorithm string
		)
		if err = rows.Scan(&miner, &blocks, &algorithm); err != nil {
			return nil, fmt.Errorf("scan miner counts: %w", err)
		}
		entries = append(entries, model.AggregateEntry{
			Miner:         miner,
			BlockCount:    blocks,
			LastAlgorithm: model.Algorithm(algorithm),
		})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate miner counts: %w", err)
	}
	return entries, nil
}
