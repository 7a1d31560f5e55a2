// Package crypto provides cryptographic primitives for coinlet.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/coinletchain/coinlet/internal/codec"
	"github.com/coinletchain/coinlet/pkg/types"
)

// Hash computes a SHA-256 hash of the input data. This is the digest
// used for header, transaction, and output content hashes.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// HashValue computes the content hash of v: SHA-256 over v's
// canonical CBOR encoding. Used by every type whose hash identifies
// it by content (outputs, transactions, headers, blocks).
func HashValue(v interface{}) types.Hash {
	encoded, err := codec.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("crypto: marshal value for hashing: %v", err))
	}
	return Hash(encoded)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// HashConcat hashes the concatenation of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
