// Package explorer implements the chain client against the Veil explorer REST API.
package explorer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	json "github.com/goccy/go-json"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/chain"
	"github.com/goodnatureofminers/blockpie/internal/model"
)

const (
	// DefaultBaseURL is the public Veil explorer API.
	DefaultBaseURL = "https://explorer-api.veil-project.com/api/"
	// DefaultTimeout bounds a single explorer request.
	DefaultTimeout = 10 * time.Second
	// DefaultCacheSize is the number of cached block entries.
	DefaultCacheSize = 10000

	maxResponseBytes = 32 << 20
)

// Config holds client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	CacheSize         int
}

// Client fetches chain tips and blocks from the explorer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	cache      *blockCache
	metrics    Metrics
	logger     *zap.Logger
}

// NewClient constructs an explorer client.
func NewClient(cfg Config, metrics Metrics, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RequestsPerSecond > 0 {
		limiter = ratelimit.New(cfg.RequestsPerSecond)
	}

	cache, err := newBlockCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create block cache: %w", err)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		cache:      cache,
		metrics:    metrics,
		logger:     logger.Named("explorer"),
	}, nil
}

// GetTip returns the explorer's most recently synced block.
func (c *Client) GetTip(ctx context.Context) (tip model.ChainTip, err error) {
	started := time.Now()
	defer func() {
		c.observe("get_tip", err, started)
	}()

	var resp blockchainInfoResponse
	if err := c.do(ctx, http.MethodGet, "BlockchainInfo", nil, &resp); err != nil {
		return model.ChainTip{}, fmt.Errorf("get tip: %w", err)
	}

	if resp.CurrentSyncedBlock == 0 {
		return model.ChainTip{}, fmt.Errorf("get tip: missing synced height: %w", chain.ErrUnavailable)
	}
	if err := validateHash(resp.ChainInfo.BestBlockHash); err != nil {
		return model.ChainTip{}, fmt.Errorf("get tip: %w: %w", chain.ErrUnavailable, err)
	}

	return model.ChainTip{
		Height:     resp.CurrentSyncedBlock,
		Hash:       resp.ChainInfo.BestBlockHash,
		Difficulty: difficulties(resp.ChainInfo),
	}, nil
}

// GetBlock fetches a block by hash or height. The hash wins when both are set.
func (c *Client) GetBlock(ctx context.Context, q model.BlockQuery) (block *model.Block, err error) {
	if cached, ok := c.cache.get(q); ok {
		c.observeCache(true)
		return cached, nil
	}
	if c.cache != nil {
		c.observeCache(false)
	}

	started := time.Now()
	defer func() {
		c.observe("get_block", err, started)
	}()

	req := blockRequest{Offset: 0, Count: 1}
	if q.ByHash() {
		if err := validateHash(q.Hash); err != nil {
			return nil, fmt.Errorf("get block %s: %w", q.Hash, err)
		}
		req.Hash = q.Hash
	} else {
		req.Height = q.Height
	}

	var resp blockResponse
	if err := c.do(ctx, http.MethodPost, "Block", req, &resp); err != nil {
		return nil, fmt.Errorf("get block %s: %w", describe(q), err)
	}
	if isNull(resp.Block) {
		return nil, fmt.Errorf("get block %s: %w", describe(q), chain.ErrNotFound)
	}

	block, malformed := decodeBlock(resp)
	if block.Height == 0 && !q.ByHash() {
		block.Height = q.Height
	}
	if malformed != nil {
		c.logger.Warn("malformed block, using best-effort fields",
			zap.String("block", describe(q)),
			zap.Error(malformed),
		)
		return block, nil
	}
	c.cache.add(block)

	c.logger.Debug("fetched block",
		zap.Uint64("height", block.Height),
		zap.String("hash", block.Hash),
		zap.String("proof_type", string(block.ProofType)),
	)
	return block, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.limiter.Take()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %w", endpoint, chain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", endpoint, chain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s: status %d: %w", endpoint, resp.StatusCode, chain.ErrUnavailable)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", endpoint, chain.ErrUnavailable, err)
	}
	return nil
}

func (c *Client) observe(operation string, err error, started time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Observe(operation, err, started)
}

func (c *Client) observeCache(hit bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveCache(hit)
}

func validateHash(hash string) error {
	if len(hash) != chainhash.MaxHashStringSize {
		return fmt.Errorf("invalid block hash %q", hash)
	}
	if _, err := chainhash.NewHashFromStr(hash); err != nil {
		return fmt.Errorf("invalid block hash %q: %w", hash, err)
	}
	return nil
}

func describe(q model.BlockQuery) string {
	if q.ByHash() {
		return q.Hash
	}
	return fmt.Sprintf("at height %d", q.Height)
}

func proofType(code proofCode) model.ProofType {
	if !code.known {
		return model.ProofUnknown
	}
	switch code.value {
	case proofCodeStake:
		return model.ProofStake
	case proofCodeProgPoW:
		return model.ProofProgPoW
	case proofCodeRandomX:
		return model.ProofRandomX
	case proofCodeSHA256D:
		return model.ProofSHA256D
	default:
		return model.ProofUnknown
	}
}

func difficulties(info chainInfo) map[model.Algorithm]float64 {
	out := make(map[model.Algorithm]float64, 4)
	for algo, v := range map[model.Algorithm]*float64{
		model.AlgorithmStake:   info.DifficultyPoS,
		model.AlgorithmProgPoW: info.DifficultyProgPoW,
		model.AlgorithmRandomX: info.DifficultyRandomX,
		model.AlgorithmSHA256D: info.DifficultySHA256D,
	} {
		if v != nil {
			out[algo] = *v
		}
	}
	return out
}

// decodeBlock converts the raw block body. When parts of it cannot be decoded
// the block carries whatever did decode and the error describes the rest; an
// undecodable header leaves the proof type unknown so it is never credited.
func decodeBlock(resp blockResponse) (*model.Block, error) {
	var header blockHeader
	if err := json.Unmarshal(resp.Block, &header); err != nil {
		return &model.Block{ProofType: model.ProofUnknown}, fmt.Errorf("decode block header: %w", err)
	}

	var txs []transaction
	if !isNull(resp.Transactions) {
		if err := json.Unmarshal(resp.Transactions, &txs); err != nil {
			return convertBlock(header, nil), fmt.Errorf("decode block transactions: %w", err)
		}
	}
	return convertBlock(header, txs), nil
}

func convertBlock(header blockHeader, txs []transaction) *model.Block {
	block := &model.Block{
		Height:       header.Height,
		Hash:         header.Hash,
		PreviousHash: header.PreviousBlockHash,
		ProofType:    proofType(header.ProofType),
		Transactions: make([]model.Transaction, 0, len(txs)),
	}
	for i, tx := range txs {
		converted := model.Transaction{
			TxID:    tx.TxID,
			Outputs: make([]model.Output, 0, len(tx.Outputs)),
		}
		for _, out := range tx.Outputs {
			converted.Outputs = append(converted.Outputs, model.Output{
				Addresses:  out.Addresses,
				IsCoinbase: i == 0,
			})
		}
		block.Transactions = append(block.Transactions, converted)
	}
	return block
}
