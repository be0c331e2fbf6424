package model

import "time"

// Algorithm is the winning algorithm label recorded for a miner.
type Algorithm string

var (
	AlgorithmProgPoW Algorithm = "progpow"
	AlgorithmRandomX Algorithm = "randomx"
	AlgorithmSHA256D Algorithm = "sha256d"
	AlgorithmStake   Algorithm = "stake"
)

// UnknownMiner is the identity used when a block carries no usable address.
const UnknownMiner = "Unknown"

// Attribution is the (miner, algorithm) pair derived from a block.
type Attribution struct {
	Height    uint64
	BlockHash string
	Miner     string
	Algorithm Algorithm
}

// Attributable reports whether the attribution counts towards a miner.
// Stake-won blocks never do.
func (a Attribution) Attributable() bool {
	return a.Algorithm != AlgorithmStake && a.Miner != ""
}

// AggregateEntry is the running tally for a single miner identity.
type AggregateEntry struct {
	Miner         string
	BlockCount    uint64
	LastAlgorithm Algorithm
}

// Cursor tracks ingestion progress. Started is false until the first tip has
// been observed; Processed is false until the first height has been merged.
type Cursor struct {
	StartHeight         uint64
	LastProcessedHeight uint64
	Started             bool
	Processed           bool
}

// Start pins the tracking start height. It is a no-op once started.
func (c *Cursor) Start(height uint64) {
	if c.Started {
		return
	}
	c.Started = true
	c.StartHeight = height
}

// Advance records height as merged. The cursor never moves backwards.
func (c *Cursor) Advance(height uint64) {
	if !c.Started {
		c.Start(height)
	}
	if !c.Processed || height > c.LastProcessedHeight {
		c.LastProcessedHeight = height
	}
	c.Processed = true
}

// Stats summarises the work done by the current process.
type Stats struct {
	BlocksProcessed uint64
	StartedAt       time.Time
	Elapsed         time.Duration
}

// Rate returns processed blocks per second.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BlocksProcessed) / s.Elapsed.Seconds()
}

// Report is what presentation collaborators receive after every cycle.
type Report struct {
	Tip     ChainTip
	Entries []AggregateEntry
	Stats   Stats
}
