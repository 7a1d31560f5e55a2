package walletcore

import (
	"errors"

	"github.com/coinletchain/coinlet/pkg/tx"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("walletcore: insufficient funds")
	ErrNoSpendableUTXOs  = errors.New("walletcore: no spendable utxos")
)

// Selection holds the result of coin selection: the inputs chosen to
// fund a send, their total value, and the leftover change.
type Selection struct {
	Inputs []tx.TransactionOutput
	Total  uint64
	Change uint64
}

// SelectCoins greedily accumulates unmarked UTXOs, in the order given,
// until their total covers target, per §4.5's "selects inputs greedily
// from unmarked UTXOs until coverage is met". Callers filter marked
// UTXOs out before calling (they are excluded from the spendable set
// entirely, not merely deprioritized).
func SelectCoins(spendable []tx.TransactionOutput, target uint64) (Selection, error) {
	if len(spendable) == 0 {
		return Selection{}, ErrNoSpendableUTXOs
	}
	var total uint64
	var inputs []tx.TransactionOutput
	for _, u := range spendable {
		if total >= target {
			break
		}
		inputs = append(inputs, u)
		total += u.Value
	}
	if total < target {
		return Selection{}, ErrInsufficientFunds
	}
	return Selection{Inputs: inputs, Total: total, Change: total - target}, nil
}
