package types

import "math/big"

// minTargetLowBits is the bit width of MinTarget below the zero top
// bits: the easiest target allowed has only its low 208 bits set (the
// top 48 bits are zero), per §3.
const minTargetLowBits = 208

// MinTarget is the easiest allowed proof-of-work target: a 256-bit
// value with only the low 208 bits set (top 48 bits zero). New chains
// start at this target and it is also the adjustment ceiling.
var MinTarget = func() *big.Int {
	t := new(big.Int).Lsh(big.NewInt(1), minTargetLowBits)
	return t.Sub(t, big.NewInt(1))
}()

// TargetToBytes encodes a target as a fixed 32-byte big-endian value,
// for wire/snapshot serialization.
func TargetToBytes(target *big.Int) []byte {
	buf := make([]byte, HashSize)
	b := target.Bytes()
	copy(buf[HashSize-len(b):], b)
	return buf
}

// TargetFromBytes decodes a 32-byte big-endian value into a target.
func TargetFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// HashMeetsTarget reports whether hash, interpreted as an unsigned
// big-endian 256-bit integer, is at or below target — the
// proof-of-work acceptance rule.
func HashMeetsTarget(hash Hash, target *big.Int) bool {
	hashInt := new(big.Int).SetBytes(hash[:])
	return hashInt.Cmp(target) <= 0
}

// ClampTarget clamps target to [floor, MinTarget].
func ClampTarget(target, floor *big.Int) *big.Int {
	if target.Cmp(floor) < 0 {
		return new(big.Int).Set(floor)
	}
	if target.Cmp(MinTarget) > 0 {
		return new(big.Int).Set(MinTarget)
	}
	return target
}
