// Package tx defines the transaction types and their content-hash,
// signing, and validation helpers.
package tx

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/coinletchain/coinlet/pkg/crypto"
	"github.com/coinletchain/coinlet/pkg/types"
)

// TransactionOutput is a spendable value locked to a public key.
// UniqueID guarantees that two outputs with identical value and
// public key still hash distinctly.
type TransactionOutput struct {
	Value     uint64    `cbor:"value"`
	UniqueID  uuid.UUID `cbor:"unique_id"`
	PublicKey []byte    `cbor:"public_key"`
}

// NewTransactionOutput builds an output with a fresh random UUID.
func NewTransactionOutput(value uint64, publicKey []byte) TransactionOutput {
	return TransactionOutput{
		Value:     value,
		UniqueID:  uuid.New(),
		PublicKey: publicKey,
	}
}

// Hash returns the output's content hash: SHA-256 of its canonical
// CBOR encoding. This is the TXO's address in the UTXO set.
func (o TransactionOutput) Hash() types.Hash {
	return crypto.HashValue(o)
}

// TransactionInput references a previously unspent output and proves
// the right to spend it.
type TransactionInput struct {
	PrevTXOHash types.Hash `cbor:"prev_txo_hash"`
	Signature   []byte     `cbor:"signature"`
}

// Transaction moves value from referenced outputs to new ones. A
// coinbase transaction has no inputs.
type Transaction struct {
	Inputs  []TransactionInput  `cbor:"inputs"`
	Outputs []TransactionOutput `cbor:"outputs"`
}

// Hash returns the transaction's content hash.
func (tx Transaction) Hash() types.Hash {
	return crypto.HashValue(tx)
}

// IsCoinbase reports whether tx has no inputs, the mark of the single
// reward transaction that must lead every block.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// TotalOutputValue sums every output's value.
// Returns an error if the sum would overflow uint64.
func (tx Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("tx: output value overflow")
		}
		total += out.Value
	}
	return total, nil
}

// Sign signs every input of tx with key, each signature covering the
// little-endian bytes of the referenced TXO's hash. inputHashes must
// be parallel to tx.Inputs, holding the hash of the output each input
// spends.
func (tx *Transaction) Sign(key *crypto.PrivateKey, inputHashes []types.Hash) error {
	if len(inputHashes) != len(tx.Inputs) {
		return fmt.Errorf("tx: sign: %d input hashes for %d inputs", len(inputHashes), len(tx.Inputs))
	}
	for i := range tx.Inputs {
		sig, err := key.Sign(inputHashes[i].Bytes())
		if err != nil {
			return fmt.Errorf("tx: sign input %d: %w", i, err)
		}
		tx.Inputs[i].Signature = sig
	}
	return nil
}

// VerifyInputSignature checks input i's signature against the
// referenced output's public key over the output hash's bytes.
func (tx Transaction) VerifyInputSignature(i int, prevTXOHash types.Hash, publicKey []byte) bool {
	if i < 0 || i >= len(tx.Inputs) {
		return false
	}
	return crypto.VerifySignature(prevTXOHash.Bytes(), tx.Inputs[i].Signature, publicKey)
}
