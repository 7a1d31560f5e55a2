package block

import "errors"

// Structural validation errors. UTXO-aware rules (double-spend across
// the chain, signature verification, coinbase value bound) live in
// internal/engine, the only component holding chain and UTXO state.
var (
	ErrNoTransactions      = errors.New("block: no transactions")
	ErrNoCoinbase          = errors.New("block: first transaction must be coinbase")
	ErrMultipleCoinbase    = errors.New("block: more than one coinbase transaction")
	ErrDuplicateBlockInput = errors.New("block: duplicate input across transactions")
	ErrBadMerkleRoot       = errors.New("block: merkle root mismatch")
)

// ValidateStructure checks the parts of a block that can be verified
// without consulting chain or UTXO state: it has at least one
// transaction, exactly one coinbase transaction at index 0, no input
// hash referenced twice across the whole block, and the header's
// merkle root matches the recomputed one.
func (b Block) ValidateStructure() error {
	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}
	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for _, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return ErrMultipleCoinbase
		}
	}

	seen := make(map[[32]byte]struct{})
	for _, t := range b.Transactions {
		for _, in := range t.Inputs {
			if _, dup := seen[in.PrevTXOHash]; dup {
				return ErrDuplicateBlockInput
			}
			seen[in.PrevTXOHash] = struct{}{}
		}
	}

	if MerkleRoot(b.Transactions) != b.Header.MerkleRoot {
		return ErrBadMerkleRoot
	}
	return nil
}
