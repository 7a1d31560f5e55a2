package walletcore

import "fmt"

// FeeType selects how a transaction's fee is computed.
type FeeType int

const (
	// FeeFixed charges a constant number of sats regardless of the
	// send amount.
	FeeFixed FeeType = iota
	// FeePercent charges Value as a fraction of the send amount
	// (0.1 = 10%).
	FeePercent
)

// FeeConfig configures fee computation, mirroring the original
// wallet's FeeType/value pair.
type FeeConfig struct {
	Type  FeeType
	Value float64
}

// Compute returns the fee, in sats, for a transaction sending amount.
func (c FeeConfig) Compute(amount uint64) uint64 {
	switch c.Type {
	case FeePercent:
		return uint64(float64(amount) * c.Value)
	default:
		return uint64(c.Value)
	}
}

func (t FeeType) String() string {
	switch t {
	case FeeFixed:
		return "fixed"
	case FeePercent:
		return "percent"
	default:
		return fmt.Sprintf("FeeType(%d)", int(t))
	}
}
