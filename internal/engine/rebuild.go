package engine

import "github.com/coinletchain/coinlet/pkg/types"

// RebuildUTXOs clears the UTXO set and replays the chain from block
// zero: for each transaction, referenced outputs are removed and new
// outputs are inserted unmarked. Mempool marks are reapplied once the
// replay is complete, matching the live marks before the rebuild.
func (e *Engine) RebuildUTXOs() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebuildUTXOsLocked()
}

func (e *Engine) rebuildUTXOsLocked() {
	e.utxos = make(map[types.Hash]UTXOEntry)
	for _, b := range e.blocks {
		for _, t := range b.Transactions {
			for _, in := range t.Inputs {
				delete(e.utxos, in.PrevTXOHash)
			}
			for _, out := range t.Outputs {
				e.utxos[out.Hash()] = UTXOEntry{Output: out, Marked: false}
			}
		}
	}

	for _, entry := range e.mempool {
		for _, in := range entry.tx.Inputs {
			if u, ok := e.utxos[in.PrevTXOHash]; ok {
				u.Marked = true
				e.utxos[in.PrevTXOHash] = u
			}
		}
	}
}
