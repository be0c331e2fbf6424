package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

var header = []string{"Miner Address", "Block Count", "Winning Algo"}

func decode(r io.Reader) (map[string]*model.AggregateEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true

	entries := make(map[string]*model.AggregateEntry)

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range header {
		if strings.TrimSpace(first[i]) != name {
			return nil, fmt.Errorf("unexpected header %q, want %q", first, header)
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		miner := strings.TrimSpace(record[0])
		if miner == "" {
			return nil, fmt.Errorf("row %v: empty miner address", record)
		}
		count, err := parseCount(record[1])
		if err != nil {
			return nil, fmt.Errorf("row %v: %w", record, err)
		}
		algo := model.Algorithm(strings.ToLower(strings.TrimSpace(record[2])))

		if existing, ok := entries[miner]; ok {
			existing.BlockCount += count
			existing.LastAlgorithm = algo
			continue
		}
		entries[miner] = &model.AggregateEntry{Miner: miner, BlockCount: count, LastAlgorithm: algo}
	}
}

// parseCount accepts integral floats ("3.0") written by older ledger writers.
func parseCount(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block count %q: %w", raw, err)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxUint64 {
		return 0, fmt.Errorf("block count %q is not a non-negative integer", raw)
	}
	return uint64(f), nil
}

func encode(w io.Writer, entries []model.AggregateEntry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write([]string{
			e.Miner,
			strconv.FormatUint(e.BlockCount, 10),
			string(e.LastAlgorithm),
		}); err != nil {
			return fmt.Errorf("write row %s: %w", e.Miner, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
