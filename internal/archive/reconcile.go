package archive

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

// Mismatch is a miner whose ledger count differs from the archive.
type Mismatch struct {
	Miner   string
	Ledger  uint64
	Archive uint64
}

// Compare lists miners whose block counts differ between the ledger and the
// archive, ordered by miner.
func Compare(ledger, archived []model.AggregateEntry) []Mismatch {
	counts := make(map[string]*Mismatch, len(ledger))
	get := func(miner string) *Mismatch {
		m, ok := counts[miner]
		if !ok {
			m = &Mismatch{Miner: miner}
			counts[miner] = m
		}
		return m
	}
	for _, e := range ledger {
		get(e.Miner).Ledger += e.BlockCount
	}
	for _, e := range archived {
		get(e.Miner).Archive += e.BlockCount
	}

	var out []Mismatch
	for _, m := range counts {
		if m.Ledger != m.Archive {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Miner < out[j].Miner })
	return out
}

// Reconcile compares the ledger snapshot with the archive totals and logs
// every disagreement. The ledger is never changed.
func (w *Writer) Reconcile(ctx context.Context, ledger []model.AggregateEntry) ([]Mismatch, error) {
	archived, err := w.repo.MinerCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load archive counts: %w", err)
	}

	mismatches := Compare(ledger, archived)
	for _, m := range mismatches {
		w.logger.Warn("archive disagrees with ledger",
			zap.String("miner", m.Miner),
			zap.Uint64("ledger_blocks", m.Ledger),
			zap.Uint64("archive_blocks", m.Archive),
		)
	}
	if len(mismatches) > 0 {
		w.logger.Warn("ledger drift detected; a crash between ledger write and checkpoint save replays one cycle",
			zap.Int("miners", len(mismatches)),
		)
	}
	return mismatches, nil
}
