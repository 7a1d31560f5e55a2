package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/coinletchain/coinlet/pkg/tx"
	"github.com/coinletchain/coinlet/pkg/types"
)

// AddToMempool validates t for admission and, on success, marks its
// referenced UTXOs and inserts it into the mempool. If t conflicts
// with an already-marked UTXO, the higher-fee transaction wins
// (mempool-replacement by dominance): the older transaction is
// evicted and its marks released.
func (e *Engine) AddToMempool(t tx.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.IsCoinbase() {
		return fmt.Errorf("%w: mempool transaction must not be coinbase", ErrInvalidTransaction)
	}

	var inputTotal uint64
	evictIndices := make(map[int]bool)
	for i, in := range t.Inputs {
		entry, ok := e.utxos[in.PrevTXOHash]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownUTXO, in.PrevTXOHash)
		}
		if !t.VerifyInputSignature(i, in.PrevTXOHash, entry.Output.PublicKey) {
			return fmt.Errorf("%w: input %d", ErrInvalidSignature, i)
		}
		if entry.Marked {
			holderIdx, holder, found := e.findMarkingEntryLocked(in.PrevTXOHash)
			if !found {
				return fmt.Errorf("%w: %s marked with no owning mempool entry", ErrInvalidTransaction, in.PrevTXOHash)
			}
			incomingFee, err := computeFeeLocked(e.utxos, t)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
			}
			if incomingFee <= holder.fee {
				return fmt.Errorf("%w: insufficient fee to replace conflicting transaction", ErrInvalidTransaction)
			}
			evictIndices[holderIdx] = true
		}
		if inputTotal > ^uint64(0)-entry.Output.Value {
			return fmt.Errorf("%w: input total overflow", ErrInvalidTransaction)
		}
		inputTotal += entry.Output.Value
	}

	outputTotal, err := t.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if inputTotal < outputTotal {
		return fmt.Errorf("%w: outputs exceed inputs", ErrInvalidTransaction)
	}
	fee := inputTotal - outputTotal

	for idx := range evictIndices {
		e.evictMempoolEntryLocked(idx)
	}

	for _, in := range t.Inputs {
		entry := e.utxos[in.PrevTXOHash]
		entry.Marked = true
		e.utxos[in.PrevTXOHash] = entry
	}

	e.mempool = append(e.mempool, mempoolEntry{admittedAt: e.now(), tx: t, fee: fee})
	e.sortMempoolLocked()
	return nil
}

// findMarkingEntryLocked locates the mempool entry that marked txoHash.
func (e *Engine) findMarkingEntryLocked(txoHash types.Hash) (int, mempoolEntry, bool) {
	for i, entry := range e.mempool {
		for _, in := range entry.tx.Inputs {
			if in.PrevTXOHash == txoHash {
				return i, entry, true
			}
		}
	}
	return 0, mempoolEntry{}, false
}

// evictMempoolEntryLocked removes the mempool entry at idx and
// unmarks the UTXOs it had reserved.
func (e *Engine) evictMempoolEntryLocked(idx int) {
	evicted := e.mempool[idx]
	for _, in := range evicted.tx.Inputs {
		if entry, ok := e.utxos[in.PrevTXOHash]; ok {
			entry.Marked = false
			e.utxos[in.PrevTXOHash] = entry
		}
	}
	e.mempool = append(e.mempool[:idx], e.mempool[idx+1:]...)
}

// sortMempoolLocked orders the mempool descending by fee, ties broken
// by earlier admission time, so template assembly is fee-greedy.
func (e *Engine) sortMempoolLocked() {
	sort.SliceStable(e.mempool, func(i, j int) bool {
		if e.mempool[i].fee != e.mempool[j].fee {
			return e.mempool[i].fee > e.mempool[j].fee
		}
		return e.mempool[i].admittedAt.Before(e.mempool[j].admittedAt)
	})
}

// computeFeeLocked computes t's fee (inputs - outputs) against the
// live UTXO set, without marking anything.
func computeFeeLocked(utxos map[types.Hash]UTXOEntry, t tx.Transaction) (uint64, error) {
	var inputTotal uint64
	for _, in := range t.Inputs {
		entry, ok := utxos[in.PrevTXOHash]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownUTXO, in.PrevTXOHash)
		}
		inputTotal += entry.Output.Value
	}
	outputTotal, err := t.TotalOutputValue()
	if err != nil {
		return 0, err
	}
	if inputTotal < outputTotal {
		return 0, fmt.Errorf("outputs exceed inputs")
	}
	return inputTotal - outputTotal, nil
}

// CleanupMempool evicts every mempool entry older than
// MaxMempoolTransactionAge, unmarking its reserved UTXOs. Returns the
// number of entries evicted.
func (e *Engine) CleanupMempool() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-MaxMempoolTransactionAge * time.Second)
	evicted := 0
	remaining := e.mempool[:0]
	for _, entry := range e.mempool {
		if entry.admittedAt.Before(cutoff) {
			for _, in := range entry.tx.Inputs {
				if u, ok := e.utxos[in.PrevTXOHash]; ok {
					u.Marked = false
					e.utxos[in.PrevTXOHash] = u
				}
			}
			evicted++
			continue
		}
		remaining = append(remaining, entry)
	}
	e.mempool = remaining
	return evicted
}

// MempoolTransactions returns up to n mempool transactions, highest
// fee first, for candidate block assembly.
func (e *Engine) MempoolTransactions(n int) []tx.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n > len(e.mempool) {
		n = len(e.mempool)
	}
	out := make([]tx.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = e.mempool[i].tx
	}
	return out
}

// CalculateMinerFees sums (inputs - outputs) across every non-coinbase
// transaction in txs, reading input values from the live UTXO set.
// Fails if any input is unknown or any transaction's outputs exceed
// its inputs.
func (e *Engine) CalculateMinerFees(txs []tx.Transaction) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var total uint64
	for _, t := range txs {
		if t.IsCoinbase() {
			continue
		}
		fee, err := computeFeeLocked(e.utxos, t)
		if err != nil {
			return 0, err
		}
		if total > ^uint64(0)-fee {
			return 0, fmt.Errorf("miner fee total overflow")
		}
		total += fee
	}
	return total, nil
}
