// Package engine implements the blockchain state machine: the chain
// of blocks, the UTXO set, the mempool, and the proof-of-work target.
// Engine is the only component allowed to mutate this state; every
// exported method is atomic with respect to its own lock.
package engine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/coinletchain/coinlet/pkg/block"
	"github.com/coinletchain/coinlet/pkg/tx"
	"github.com/coinletchain/coinlet/pkg/types"
)

// Chain constants.
const (
	// InitialReward is the coinbase reward at height 0, in sats.
	InitialReward = 50 * 100_000_000
	// HalvingInterval is the number of blocks between reward halvings.
	HalvingInterval = 210
	// IdealBlockTime is the target spacing between blocks, in seconds.
	IdealBlockTime = 10
	// DifficultyUpdateInterval is the number of blocks between target
	// adjustments.
	DifficultyUpdateInterval = 50
	// MaxMempoolTransactionAge is how long an unconfirmed transaction
	// may sit in the mempool before cleanup evicts it, in seconds.
	MaxMempoolTransactionAge = 600
	// BlockTransactionCap bounds how many mempool transactions a
	// candidate block template may include, coinbase excluded.
	BlockTransactionCap = 20
)

// Engine errors. Each names a distinct failure kind so callers
// (the node's dispatch loop) can react per-contract.
var (
	ErrInvalidBlock       = errors.New("engine: invalid block")
	ErrInvalidMerkleRoot  = errors.New("engine: invalid merkle root")
	ErrInvalidTransaction = errors.New("engine: invalid transaction")
	ErrInvalidSignature   = errors.New("engine: invalid signature")
	ErrUnknownUTXO        = errors.New("engine: referenced UTXO does not exist")
	ErrDoubleSpend        = errors.New("engine: UTXO referenced twice")
	ErrCoinbaseMismatch   = errors.New("engine: coinbase output value mismatch")
)

// UTXOEntry pairs a live output with whether a mempool transaction has
// reserved it for spending.
type UTXOEntry struct {
	Output tx.TransactionOutput
	Marked bool
}

// mempoolEntry is a transaction admitted to the mempool along with
// the time it was admitted, for aging and tie-breaking.
type mempoolEntry struct {
	admittedAt time.Time
	tx         tx.Transaction
	fee        uint64
}

// Engine holds the entire in-memory blockchain state.
type Engine struct {
	mu      sync.RWMutex
	blocks  []block.Block
	utxos   map[types.Hash]UTXOEntry
	mempool []mempoolEntry
	target  *big.Int

	now func() time.Time // overridable for deterministic tests
}

// New creates an empty engine, chain starting at MinTarget per §3.
func New() *Engine {
	return &Engine{
		utxos:  make(map[types.Hash]UTXOEntry),
		target: new(big.Int).Set(types.MinTarget),
		now:    time.Now,
	}
}

// Height returns the number of blocks appended so far.
func (e *Engine) Height() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.blocks)
}

// Tip returns the most recently appended block and true, or the zero
// block and false if the chain is empty.
func (e *Engine) Tip() (block.Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.blocks) == 0 {
		return block.Block{}, false
	}
	return e.blocks[len(e.blocks)-1], true
}

// TipHash returns the hash of the last block's header, or the zero
// hash if the chain is empty (the genesis predecessor).
func (e *Engine) TipHash() types.Hash {
	tip, ok := e.Tip()
	if !ok {
		return types.ZeroHash
	}
	return tip.Header.Hash()
}

// Block returns the block at height (0-indexed), or false if out of range.
func (e *Engine) Block(height int) (block.Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if height < 0 || height >= len(e.blocks) {
		return block.Block{}, false
	}
	return e.blocks[height], true
}

// Blocks returns a copy of the full chain.
func (e *Engine) Blocks() []block.Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]block.Block, len(e.blocks))
	copy(out, e.blocks)
	return out
}

// Target returns the current proof-of-work target.
func (e *Engine) Target() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Set(e.target)
}

// UTXOsFor returns every live UTXO locked to publicKey, each paired
// with whether it is currently reserved by a mempool transaction.
func (e *Engine) UTXOsFor(publicKey []byte) []UTXOEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []UTXOEntry
	for _, entry := range e.utxos {
		if bytesEqual(entry.Output.PublicKey, publicKey) {
			out = append(out, entry)
		}
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AddBlock validates block b against current chain state and, on
// success, appends it: UTXOs are updated, confirmed transactions are
// dropped from the mempool, and the target is adjusted if this block
// closes a difficulty window. Checks fail fast in this order: block
// structure (coinbase placement, duplicate inputs, then merkle root)
// for every block including genesis; then the zero prev hash for
// genesis, or prev hash, target and timestamp for later blocks; then
// the transactions; then the coinbase value.
func (e *Engine) AddBlock(b block.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateBlockLocked(b); err != nil {
		return err
	}

	spentDelta, err := e.validateTransactionsLocked(b)
	if err != nil {
		return err
	}

	if err := e.validateCoinbaseLocked(b, spentDelta); err != nil {
		return err
	}

	e.applyBlockLocked(b)

	e.blocks = append(e.blocks, b)

	if len(e.blocks)%DifficultyUpdateInterval == 0 {
		e.tryAdjustTargetLocked()
	}

	return nil
}

func (e *Engine) validateBlockLocked(b block.Block) error {
	if err := b.ValidateStructure(); err != nil {
		if errors.Is(err, block.ErrBadMerkleRoot) {
			return ErrInvalidMerkleRoot
		}
		return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}

	if len(e.blocks) == 0 {
		if b.Header.PrevBlockHash != types.ZeroHash {
			return fmt.Errorf("%w: genesis block must have zero prev hash", ErrInvalidBlock)
		}
		return nil
	}

	last := e.blocks[len(e.blocks)-1]
	if b.Header.PrevBlockHash != last.Header.Hash() {
		return fmt.Errorf("%w: prev hash does not match chain tip", ErrInvalidBlock)
	}
	if !b.Header.MeetsTarget() {
		return fmt.Errorf("%w: header hash does not meet target", ErrInvalidBlock)
	}
	if b.Header.Timestamp <= last.Header.Timestamp {
		return fmt.Errorf("%w: timestamp does not strictly increase", ErrInvalidBlock)
	}
	return nil
}

// validateTransactionsLocked checks every transaction of b against
// the live UTXO set without mutating it, and returns the block's
// total (inputs - outputs) across non-coinbase transactions: the
// sum available to fund the coinbase reward.
func (e *Engine) validateTransactionsLocked(b block.Block) (uint64, error) {
	// b.ValidateStructure, called from validateBlockLocked earlier in
	// the AddBlock pipeline, already guarantees at least one
	// transaction with exactly one coinbase at index 0; only the
	// UTXO-aware checks remain here.
	seen := make(map[types.Hash]bool)
	var totalFees uint64
	for _, t := range b.Transactions {
		if err := t.ValidateStructure(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
		}
		if t.IsCoinbase() {
			continue
		}
		var inputTotal uint64
		for idx, in := range t.Inputs {
			if seen[in.PrevTXOHash] {
				return 0, fmt.Errorf("%w: txo %s referenced twice in block", ErrDoubleSpend, in.PrevTXOHash)
			}
			seen[in.PrevTXOHash] = true

			entry, ok := e.utxos[in.PrevTXOHash]
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnknownUTXO, in.PrevTXOHash)
			}
			if !t.VerifyInputSignature(idx, in.PrevTXOHash, entry.Output.PublicKey) {
				return 0, fmt.Errorf("%w: input %d of tx %s", ErrInvalidSignature, idx, t.Hash())
			}
			if inputTotal > ^uint64(0)-entry.Output.Value {
				return 0, fmt.Errorf("%w: input total overflow", ErrInvalidTransaction)
			}
			inputTotal += entry.Output.Value
		}
		// ValidateStructure already bounds the output sum; the value
		// itself is still needed to compare against inputTotal.
		outputTotal, _ := t.TotalOutputValue()
		if inputTotal < outputTotal {
			return 0, fmt.Errorf("%w: outputs exceed inputs in tx %s", ErrInvalidTransaction, t.Hash())
		}
		totalFees += inputTotal - outputTotal
	}
	return totalFees, nil
}

func (e *Engine) validateCoinbaseLocked(b block.Block, totalFees uint64) error {
	coinbase := b.Transactions[0]
	want := e.blockRewardLocked() + totalFees
	got, err := coinbase.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if got != want {
		return fmt.Errorf("%w: coinbase pays %d, want %d", ErrCoinbaseMismatch, got, want)
	}
	return nil
}

// applyBlockLocked removes spent outputs and inserts new ones,
// unmarking/dropping any mempool entries the block has confirmed.
func (e *Engine) applyBlockLocked(b block.Block) {
	confirmed := make(map[types.Hash]bool)
	for _, t := range b.Transactions {
		for _, in := range t.Inputs {
			delete(e.utxos, in.PrevTXOHash)
		}
		for _, out := range t.Outputs {
			e.utxos[out.Hash()] = UTXOEntry{Output: out, Marked: false}
		}
		if !t.IsCoinbase() {
			confirmed[t.Hash()] = true
		}
	}

	remaining := e.mempool[:0]
	for _, entry := range e.mempool {
		if confirmed[entry.tx.Hash()] {
			continue
		}
		remaining = append(remaining, entry)
	}
	e.mempool = remaining
}

// blockRewardLocked returns INITIAL_REWARD halved once per
// HALVING_INTERVAL blocks already on the chain, saturating to zero.
func (e *Engine) blockRewardLocked() uint64 {
	halvings := len(e.blocks) / HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return InitialReward >> uint(halvings)
}

// BlockReward returns the reward the next block's coinbase must pay
// (excluding fees), given the chain height so far.
func (e *Engine) BlockReward() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blockRewardLocked()
}
