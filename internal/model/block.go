// Package model defines domain models for block attribution tracking.
package model

// ProofType describes the consensus mechanism that produced a block.
type ProofType string

var (
	ProofProgPoW ProofType = "progpow"
	ProofRandomX ProofType = "randomx"
	ProofSHA256D ProofType = "sha256d"
	ProofStake   ProofType = "stake"
	ProofUnknown ProofType = "unknown"
)

// ChainTip is the most recently synced block known to the explorer.
type ChainTip struct {
	Height     uint64
	Hash       string
	Difficulty map[Algorithm]float64
}

// BlockQuery selects a block either by hash or by height. Hash wins when set.
type BlockQuery struct {
	Height uint64
	Hash   string
}

// ByHash reports whether the hash is the primary selector.
func (q BlockQuery) ByHash() bool {
	return q.Hash != ""
}

// Block is a block fetched from the explorer with the data needed for attribution.
type Block struct {
	Height       uint64
	Hash         string
	PreviousHash string
	ProofType    ProofType
	Transactions []Transaction
}

// Transaction holds the ordered outputs of a block transaction.
type Transaction struct {
	TxID    string
	Outputs []Output
}

// Output is a transaction output with its destination addresses.
type Output struct {
	Addresses  []string
	IsCoinbase bool
}
