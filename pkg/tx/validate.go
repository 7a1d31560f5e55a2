package tx

import "errors"

// Structural validation errors that don't require UTXO-set context.
// UTXO-aware rules (input existence, signature-against-referenced-key,
// input/output balance) live in internal/engine, which is the only
// component holding the UTXO set.
var (
	ErrNoOutputs      = errors.New("tx: transaction has no outputs")
	ErrDuplicateInput = errors.New("tx: duplicate input reference")
	ErrOutputOverflow = errors.New("tx: output values overflow")
)

// ValidateStructure checks the parts of a transaction that can be
// verified without consulting the UTXO set: the transaction (coinbase
// or not) has at least one output, no input is referenced twice,
// and the output sum doesn't overflow.
func (tx Transaction) ValidateStructure() error {
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}

	seen := make(map[[32]byte]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in.PrevTXOHash]; dup {
			return ErrDuplicateInput
		}
		seen[in.PrevTXOHash] = struct{}{}
	}

	if _, err := tx.TotalOutputValue(); err != nil {
		return ErrOutputOverflow
	}
	return nil
}
