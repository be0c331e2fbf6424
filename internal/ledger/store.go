// Package ledger keeps the per-miner block tally and its durable CSV ledger.
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/goodnatureofminers/blockpie/internal/model"
	"go.uber.org/zap"
)

// Store is the in-memory aggregate backed by a ledger file. It is meant for a
// single writer and does no locking; readers of the file only ever see a
// complete ledger because writes go through a temporary file and a rename.
type Store struct {
	path    string
	logger  *zap.Logger
	entries map[string]*model.AggregateEntry
	pending []model.Attribution
}

// NewStore creates an empty store for the ledger at path. Call Load to seed it.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:    path,
		logger:  logger.Named("ledger"),
		entries: make(map[string]*model.AggregateEntry),
	}, nil
}

// Path returns the ledger location.
func (s *Store) Path() string {
	return s.path
}

// Load rebuilds the aggregate from the ledger on disk. The file is the source
// of truth: in-memory state and pending merges are discarded. A missing file
// yields an empty aggregate.
func (s *Store) Load() error {
	entries, err := s.read()
	if err != nil {
		return err
	}
	s.entries = entries
	s.pending = nil
	s.logger.Info("ledger loaded",
		zap.String("path", s.path),
		zap.Int("miners", len(entries)),
		zap.Uint64("blocks", s.Total()))
	return nil
}

// Merge counts one attributed block. Non-attributable blocks are ignored.
// The store does not deduplicate heights; callers merge each height once.
func (s *Store) Merge(attr model.Attribution) {
	if !attr.Attributable() {
		return
	}
	apply(s.entries, attr)
	s.pending = append(s.pending, attr)
}

// Dirty reports whether there are merges not yet written to the ledger.
func (s *Store) Dirty() bool {
	return len(s.pending) > 0
}

// Persist re-reads the ledger, applies every pending merge and atomically
// replaces the file. On failure the in-memory aggregate and the pending merges
// are kept so the next call retries them.
func (s *Store) Persist() error {
	if !s.Dirty() {
		return nil
	}

	current, err := s.read()
	if err != nil {
		return err
	}
	for _, attr := range s.pending {
		apply(current, attr)
	}

	if err := writeAtomic(s.path, sorted(current)); err != nil {
		return fmt.Errorf("write ledger %s: %w", s.path, err)
	}

	s.logger.Debug("ledger persisted", zap.Int("merges", len(s.pending)), zap.Int("miners", len(current)))
	s.entries = current
	s.pending = nil
	return nil
}

// Snapshot returns the aggregate ordered by block count, highest first. Ties
// are ordered by miner identity.
func (s *Store) Snapshot() []model.AggregateEntry {
	return sorted(s.entries)
}

// Total returns the number of blocks counted across all miners.
func (s *Store) Total() uint64 {
	var total uint64
	for _, e := range s.entries {
		total += e.BlockCount
	}
	return total
}

func (s *Store) read() (map[string]*model.AggregateEntry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]*model.AggregateEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", s.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	entries, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", s.path, err)
	}
	return entries, nil
}

func apply(entries map[string]*model.AggregateEntry, attr model.Attribution) {
	if e, ok := entries[attr.Miner]; ok {
		e.BlockCount++
		e.LastAlgorithm = attr.Algorithm
		return
	}
	entries[attr.Miner] = &model.AggregateEntry{
		Miner:         attr.Miner,
		BlockCount:    1,
		LastAlgorithm: attr.Algorithm,
	}
}

func sorted(entries map[string]*model.AggregateEntry) []model.AggregateEntry {
	out := make([]model.AggregateEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockCount != out[j].BlockCount {
			return out[i].BlockCount > out[j].BlockCount
		}
		return out[i].Miner < out[j].Miner
	})
	return out
}

func writeAtomic(path string, entries []model.AggregateEntry) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp, entries); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
