// Package block defines the block and header types, merkle root
// construction, and block-level structural validation.
package block

import (
	"math/big"

	"github.com/coinletchain/coinlet/internal/codec"
	"github.com/coinletchain/coinlet/pkg/crypto"
	"github.com/coinletchain/coinlet/pkg/types"
)

// Header contains block metadata and the proof-of-work target.
type Header struct {
	Timestamp     uint64
	Nonce         uint64
	PrevBlockHash types.Hash
	MerkleRoot    types.Hash
	Target        *big.Int
}

// headerWire is the CBOR-visible shape of Header: math/big.Int has no
// native CBOR mapping in this codebase, so the target travels as a
// fixed 32-byte big-endian field instead.
type headerWire struct {
	Timestamp     uint64     `cbor:"timestamp"`
	Nonce         uint64     `cbor:"nonce"`
	PrevBlockHash types.Hash `cbor:"prev_block_hash"`
	MerkleRoot    types.Hash `cbor:"merkle_root"`
	Target        []byte     `cbor:"target"`
}

// MarshalCBOR encodes the header in its canonical wire shape.
func (h Header) MarshalCBOR() ([]byte, error) {
	target := h.Target
	if target == nil {
		target = new(big.Int)
	}
	return codec.Marshal(headerWire{
		Timestamp:     h.Timestamp,
		Nonce:         h.Nonce,
		PrevBlockHash: h.PrevBlockHash,
		MerkleRoot:    h.MerkleRoot,
		Target:        types.TargetToBytes(target),
	})
}

// UnmarshalCBOR decodes a header from its canonical wire shape.
func (h *Header) UnmarshalCBOR(data []byte) error {
	var w headerWire
	if err := codec.Unmarshal(data, &w); err != nil {
		return err
	}
	h.Timestamp = w.Timestamp
	h.Nonce = w.Nonce
	h.PrevBlockHash = w.PrevBlockHash
	h.MerkleRoot = w.MerkleRoot
	h.Target = types.TargetFromBytes(w.Target)
	return nil
}

// Hash computes the header's content hash, the proof-of-work digest.
func (h Header) Hash() types.Hash {
	return crypto.HashValue(h)
}

// MeetsTarget reports whether the header's hash satisfies its own
// target: the proof-of-work acceptance test.
func (h Header) MeetsTarget() bool {
	return types.HashMeetsTarget(h.Hash(), h.Target)
}
