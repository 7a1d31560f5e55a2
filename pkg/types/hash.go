// Package types defines core primitive types shared across the coinlet chain.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit content hash. Bytes() returns the
// little-endian byte representation; every hashing and signing call
// site in this module agrees on that convention.
type Hash [HashSize]byte

// ZeroHash marks the non-existent predecessor of the genesis block.
var ZeroHash = Hash{}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash, big-endian byte order (the
// conventional display order), independent of Bytes()'s little-endian
// order.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the little-endian byte representation of the hash,
// used as the message signed by a TransactionInput's signature.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	for i := 0; i < HashSize; i++ {
		b[i] = h[HashSize-1-i]
	}
	return b
}

// HashFromLittleEndianBytes rebuilds a Hash from the little-endian
// encoding produced by Bytes().
func HashFromLittleEndianBytes(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	for i := 0; i < HashSize; i++ {
		h[HashSize-1-i] = b[i]
	}
	return h, nil
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
