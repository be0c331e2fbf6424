// Package attribution derives the winning miner and algorithm from block content.
package attribution

import (
	"github.com/goodnatureofminers/blockpie/internal/model"
)

// PrefixLength is the number of leading address characters used as miner identity.
const PrefixLength = 8

// algorithms is the only place proof types are mapped to algorithm labels.
// Anything missing from the table is treated as stake.
var algorithms = map[model.ProofType]model.Algorithm{
	model.ProofProgPoW: model.AlgorithmProgPoW,
	model.ProofRandomX: model.AlgorithmRandomX,
	model.ProofSHA256D: model.AlgorithmSHA256D,
}

// DefaultAliases maps known address prefixes to pool names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"VHU81LE2": "Fastpool",
	}
}

// Algorithm returns the algorithm label for a proof type.
func Algorithm(proof model.ProofType) model.Algorithm {
	if algo, ok := algorithms[proof]; ok {
		return algo
	}
	return model.AlgorithmStake
}

// Attributor resolves blocks to miner identities. It holds no mutable state.
type Attributor struct {
	aliases map[string]string
}

// NewAttributor builds an Attributor with the given prefix aliases.
func NewAttributor(aliases map[string]string) *Attributor {
	copied := make(map[string]string, len(aliases))
	for prefix, name := range aliases {
		copied[prefix] = name
	}
	return &Attributor{aliases: copied}
}

// Attribute derives the attribution of a block. A nil block is treated as
// malformed and yields the best-effort stake algorithm with an unknown miner.
func (a *Attributor) Attribute(block *model.Block) model.Attribution {
	if block == nil {
		return model.Attribution{Miner: model.UnknownMiner, Algorithm: model.AlgorithmStake}
	}

	attr := model.Attribution{
		Height:    block.Height,
		BlockHash: block.Hash,
		Algorithm: Algorithm(block.ProofType),
	}
	if attr.Algorithm == model.AlgorithmStake {
		return attr
	}

	address, ok := minerAddress(block.Transactions)
	if !ok || address == "" {
		attr.Miner = model.UnknownMiner
		return attr
	}
	attr.Miner = a.resolve(truncate(address))
	return attr
}

func (a *Attributor) resolve(prefix string) string {
	if name, ok := a.aliases[prefix]; ok {
		return name
	}
	return prefix
}

// minerAddress returns the first address of the first output of the first
// transaction whose first output carries any address.
func minerAddress(txs []model.Transaction) (string, bool) {
	for _, tx := range txs {
		if len(tx.Outputs) == 0 {
			continue
		}
		if addresses := tx.Outputs[0].Addresses; len(addresses) > 0 {
			return addresses[0], true
		}
	}
	return "", false
}

// truncate keeps the first PrefixLength characters, not bytes.
func truncate(address string) string {
	runes := []rune(address)
	if len(runes) <= PrefixLength {
		return address
	}
	return string(runes[:PrefixLength])
}
