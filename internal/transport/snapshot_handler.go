// Package transport exposes the tracker state over HTTP.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

// MinersPath is where the snapshot handler is mounted.
const MinersPath = "/api/v1/miners"

type tipResponse struct {
	Height     uint64                      `json:"height"`
	Hash       string                      `json:"hash"`
	Difficulty map[model.Algorithm]float64 `json:"difficulty,omitempty"`
}

type minerResponse struct {
	Miner     string          `json:"miner"`
	Blocks    uint64          `json:"blocks"`
	Algorithm model.Algorithm `json:"algorithm"`
	Share     float64         `json:"share"`
}

type statsResponse struct {
	BlocksProcessed uint64    `json:"blocks_processed"`
	StartedAt       time.Time `json:"started_at"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	BlocksPerSecond float64   `json:"blocks_per_second"`
}

type snapshotResponse struct {
	Tip         tipResponse     `json:"tip"`
	TotalBlocks uint64          `json:"total_blocks"`
	Miners      []minerResponse `json:"miners"`
	Stats       statsResponse   `json:"stats"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SnapshotHandler keeps the latest report and serves it as JSON.
type SnapshotHandler struct {
	mu       sync.RWMutex
	snapshot *snapshotResponse
	now      func() time.Time
	logger   *zap.Logger
}

// NewSnapshotHandler returns an empty handler. Until the first report is
// rendered it answers 503.
func NewSnapshotHandler(logger *zap.Logger) *SnapshotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotHandler{now: time.Now, logger: logger}
}

// Render replaces the served snapshot.
func (h *SnapshotHandler) Render(_ context.Context, report model.Report) error {
	snapshot := buildSnapshot(report, h.now())

	h.mu.Lock()
	h.snapshot = &snapshot
	h.mu.Unlock()
	return nil
}

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.write(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	h.mu.RLock()
	snapshot := h.snapshot
	h.mu.RUnlock()

	if snapshot == nil {
		h.write(w, http.StatusServiceUnavailable, errorResponse{Error: "no report rendered yet"})
		return
	}
	h.write(w, http.StatusOK, snapshot)
}

// Health reports whether at least one report has been rendered.
func (h *SnapshotHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	ready := h.snapshot != nil
	h.mu.RUnlock()

	status := struct {
		Status string `json:"status"`
	}{Status: "healthy"}
	if !ready {
		status.Status = "starting"
	}
	h.write(w, http.StatusOK, status)
}

func (h *SnapshotHandler) write(w http.ResponseWriter, code int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("encode response failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(payload); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}

func buildSnapshot(report model.Report, now time.Time) snapshotResponse {
	var total uint64
	for _, entry := range report.Entries {
		total += entry.BlockCount
	}

	miners := make([]minerResponse, 0, len(report.Entries))
	for _, entry := range report.Entries {
		var share float64
		if total > 0 {
			share = float64(entry.BlockCount) * 100 / float64(total)
		}
		miners = append(miners, minerResponse{
			Miner:     entry.Miner,
			Blocks:    entry.BlockCount,
			Algorithm: entry.LastAlgorithm,
			Share:     share,
		})
	}

	return snapshotResponse{
		Tip: tipResponse{
			Height:     report.Tip.Height,
			Hash:       report.Tip.Hash,
			Difficulty: report.Tip.Difficulty,
		},
		TotalBlocks: total,
		Miners:      miners,
		Stats: statsResponse{
			BlocksProcessed: report.Stats.BlocksProcessed,
			StartedAt:       report.Stats.StartedAt,
			ElapsedSeconds:  report.Stats.Elapsed.Seconds(),
			BlocksPerSecond: report.Stats.Rate(),
		},
		UpdatedAt: now,
	}
}
