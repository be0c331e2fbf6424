// Package render turns aggregate reports into human readable output.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

// Table writes the miner stats listing followed by the run summary.
type Table struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTable returns a Table writing to out.
func NewTable(out io.Writer) *Table {
	return &Table{out: out}
}

// Render writes one report. Entries are printed in the order given.
func (t *Table) Render(ctx context.Context, report model.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("\nMiner Stats:\n")
	for _, entry := range report.Entries {
		fmt.Fprintf(&buf, "%s: %d blocks [%s]\n", entry.Miner, entry.BlockCount, entry.LastAlgorithm)
	}

	buf.WriteString("\nSummary:\n")
	fmt.Fprintf(&buf, "Total blocks processed: %d\n", report.Stats.BlocksProcessed)
	fmt.Fprintf(&buf, "Elapsed time: %.2f seconds\n", report.Stats.Elapsed.Seconds())
	fmt.Fprintf(&buf, "Average rate: %.2f blocks/sec\n", report.Stats.Rate())

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
