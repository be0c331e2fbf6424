package explorer

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// Wire codes the explorer uses for block proof types.
const (
	proofCodeStake   = 1
	proofCodeProgPoW = 2
	proofCodeRandomX = 3
	proofCodeSHA256D = 4
)

type blockchainInfoResponse struct {
	CurrentSyncedBlock uint64    `json:"currentSyncedBlock"`
	ChainInfo          chainInfo `json:"chainInfo"`
}

type chainInfo struct {
	BestBlockHash     string   `json:"bestblockhash"`
	DifficultyPoS     *float64 `json:"difficulty_pos"`
	DifficultyProgPoW *float64 `json:"difficulty_progpow"`
	DifficultyRandomX *float64 `json:"difficulty_randomx"`
	DifficultySHA256D *float64 `json:"difficulty_sha256d"`
}

type blockRequest struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
	Offset int    `json:"offset"`
	Count  int    `json:"count"`
}

// blockResponse keeps the body raw so that a malformed block still yields a
// best-effort result instead of a transport error.
type blockResponse struct {
	Block        json.RawMessage `json:"block"`
	Transactions json.RawMessage `json:"transactions"`
}

type blockHeader struct {
	Hash              string    `json:"hash"`
	Height            uint64    `json:"height"`
	PreviousBlockHash string    `json:"previousblockhash"`
	ProofType         proofCode `json:"proof_type"`
}

// proofCode is the numeric proof_type. Null, strings and other non-integer
// values decode as unknown.
type proofCode struct {
	value int
	known bool
}

func (p *proofCode) UnmarshalJSON(data []byte) error {
	*p = proofCode{}
	if isNull(data) {
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		*p = proofCode{value: v, known: true}
	}
	return nil
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

type transaction struct {
	TxID    string   `json:"txid"`
	Outputs []output `json:"outputs"`
}

type output struct {
	Addresses []string `json:"addresses"`
}
