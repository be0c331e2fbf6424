// Package poller drives the block ingestion and attribution loop.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/chain"
	"github.com/goodnatureofminers/blockpie/internal/clock"
	"github.com/goodnatureofminers/blockpie/internal/model"
)

// State is a polling loop phase.
type State int

const (
	StateIdle State = iota
	StateFetchingTip
	StatePlanning
	StateProcessing
	StatePersisting
	StateRendering
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingTip:
		return "fetching_tip"
	case StatePlanning:
		return "planning"
	case StateProcessing:
		return "processing"
	case StatePersisting:
		return "persisting"
	case StateRendering:
		return "rendering"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Config tunes the polling loop.
type Config struct {
	Interval           time.Duration
	Backoff            time.Duration
	MaxHeightsPerCycle int
	// Cursor seeds the loop, e.g. from a checkpoint or a manual start height.
	Cursor model.Cursor
}

// Dependencies are the loop collaborators. Checkpoint, Archive and Renderer are optional.
type Dependencies struct {
	Client     ChainClient
	Attributor Attributor
	Store      AggregateStore
	Metrics    Metrics
	Checkpoint CheckpointStore
	Archive    Archive
	Renderer   Renderer
}

// Service polls the chain tip, backfills skipped heights and maintains the aggregate.
type Service struct {
	logger         *zap.Logger
	client         ChainClient
	store          AggregateStore
	checkpoint     CheckpointStore
	renderer       Renderer
	metrics        Metrics
	blockProcessor BlockProcessor
	sleep          func(context.Context, time.Duration) error
	now            func() time.Time
	interval       time.Duration
	backoff        time.Duration
	maxHeights     int

	state       State
	cursor      model.Cursor
	savedCursor model.Cursor
	tip         model.ChainTip
	stats       model.Stats
}

// NewService builds a Service with dependencies.
func NewService(cfg Config, deps Dependencies, logger *zap.Logger) (*Service, error) {
	switch {
	case deps.Client == nil:
		return nil, errors.New("chain client is required")
	case deps.Attributor == nil:
		return nil, errors.New("attributor is required")
	case deps.Store == nil:
		return nil, errors.New("aggregate store is required")
	case deps.Metrics == nil:
		return nil, errors.New("poller metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxHeightsPerCycle <= 0 {
		cfg.MaxHeightsPerCycle = maxHeightsPerCycle
	}

	logger = logger.Named("poller")
	now := time.Now

	return &Service{
		logger:     logger,
		client:     deps.Client,
		store:      deps.Store,
		checkpoint: deps.Checkpoint,
		renderer:   deps.Renderer,
		metrics:    deps.Metrics,
		blockProcessor: &blockProcessor{
			client:     deps.Client,
			attributor: deps.Attributor,
			store:      deps.Store,
			archive:    deps.Archive,
			metrics:    deps.Metrics,
			logger:     logger.Named("blockProcessor"),
		},
		sleep:       clock.SleepWithContext,
		now:         now,
		interval:    cfg.Interval,
		backoff:     cfg.Backoff,
		maxHeights:  cfg.MaxHeightsPerCycle,
		cursor:      cfg.Cursor,
		savedCursor: cfg.Cursor,
		stats:       model.Stats{StartedAt: now()},
	}, nil
}

// Cursor returns the current ingestion cursor.
func (s *Service) Cursor() model.Cursor {
	return s.cursor
}

// State returns the phase the loop is in.
func (s *Service) State() State {
	return s.state
}

// Run polls until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("polling started",
		zap.Duration("interval", s.interval),
		zap.Bool("cursor_started", s.cursor.Started),
		zap.Uint64("start_height", s.cursor.StartHeight),
		zap.Uint64("last_processed_height", s.cursor.LastProcessedHeight),
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := s.now()
		backlog, err := s.run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.enter(StateBackoff)
			s.logger.Warn("cycle failed, backing off", zap.Error(err), zap.Duration("sleep", s.backoff))
			if sleepErr := s.sleep(ctx, s.backoff); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if backlog {
			s.logger.Debug("backlog remaining, continuing immediately")
			continue
		}

		s.enter(StateIdle)
		wait := clock.Remaining(started, s.interval, s.now())
		s.logger.Debug("waiting for next cycle", zap.Duration("sleep", wait))
		if sleepErr := s.sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
	}
}

// run executes one cycle. It reports whether planned heights were left for
// the next cycle; an error means the caller should back off.
func (s *Service) run(ctx context.Context) (bool, error) {
	s.enter(StateFetchingTip)
	started := time.Now()
	tip, err := s.client.GetTip(ctx)
	s.metrics.ObserveFetchTip(err, started)
	if err != nil {
		return false, fmt.Errorf("fetch tip: %w", err)
	}
	s.tip = tip
	s.metrics.SetTip(tip)

	s.enter(StatePlanning)
	if !s.cursor.Started {
		s.cursor.Start(tip.Height)
		s.logger.Info("tracking started", zap.Uint64("start_height", tip.Height))
	}
	heights, backlog := PlanHeights(s.cursor, tip.Height, s.maxHeights)
	if len(heights) == 0 {
		s.logger.Debug("no new heights", zap.Uint64("tip", tip.Height))
		s.persist()
		return false, nil
	}

	s.enter(StateProcessing)
	s.logger.Info("processing heights",
		zap.Uint64("from", heights[0]),
		zap.Uint64("to", heights[len(heights)-1]),
		zap.Uint64("tip", tip.Height),
		zap.Bool("backlog", backlog),
	)
	started = time.Now()
	processErr := s.blockProcessor.Process(ctx, heights, s.advance)
	s.metrics.ObserveProcessBatch(processErr, len(heights), started)

	s.persist()
	s.render(ctx)

	switch {
	case processErr == nil:
		return backlog, nil
	case errors.Is(processErr, chain.ErrNotFound):
		s.logger.Info("height not available yet", zap.Error(processErr))
		return false, nil
	default:
		return false, fmt.Errorf("process heights: %w", processErr)
	}
}

func (s *Service) advance(height uint64) {
	s.cursor.Advance(height)
	s.stats.BlocksProcessed++
	s.metrics.SetLastProcessed(s.cursor.LastProcessedHeight)
}

// persist writes pending merges and then the cursor. The cursor is only
// saved once the ledger reflects every height it covers.
func (s *Service) persist() {
	if s.store.Dirty() {
		s.enter(StatePersisting)
		started := time.Now()
		err := s.store.Persist()
		s.metrics.ObservePersist(err, started)
		if err != nil {
			s.logger.Error("persist ledger failed, keeping pending merges", zap.Error(err))
			return
		}
	}

	if s.checkpoint == nil || s.cursor == s.savedCursor {
		return
	}
	// The ledger is already replaced at this point. A crash before Save
	// completes restarts from the previous cursor and counts this cycle's
	// heights a second time; archive reconciliation at startup reports it.
	if err := s.checkpoint.Save(s.cursor); err != nil {
		s.logger.Error("save checkpoint failed", zap.Error(err))
		return
	}
	s.savedCursor = s.cursor
}

func (s *Service) render(ctx context.Context) {
	if s.renderer == nil {
		return
	}
	s.enter(StateRendering)

	s.stats.Elapsed = s.now().Sub(s.stats.StartedAt)
	report := model.Report{
		Tip:     s.tip,
		Entries: s.store.Snapshot(),
		Stats:   s.stats,
	}
	if err := s.renderer.Render(ctx, report); err != nil {
		s.logger.Warn("render report failed", zap.Error(err))
	}
}

func (s *Service) enter(state State) {
	s.state = state
	s.metrics.ObserveState(state.String())
}
