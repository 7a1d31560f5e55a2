package engine

import (
	"fmt"

	"github.com/coinletchain/coinlet/internal/codec"
	"github.com/coinletchain/coinlet/pkg/block"
)

// snapshot is the on-disk shape of a blockchain: just the block list,
// per §4.3's bootstrap step. UTXOs and the target are recomputed after
// load rather than persisted, so the snapshot can never drift from
// what the chain itself proves.
type snapshot struct {
	Blocks []block.Block `cbor:"blocks"`
}

// Snapshot encodes the chain's block list as canonical CBOR, suitable
// for periodic persistence to a file.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return codec.Marshal(snapshot{Blocks: e.blocks})
}

// LoadSnapshot replaces the engine's block list with the one encoded
// in data, then rebuilds the UTXO set and replays every difficulty
// retarget that would have fired as those blocks were appended. The
// mempool is left untouched.
func (e *Engine) LoadSnapshot(data []byte) error {
	var s snapshot
	if err := codec.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("engine: decode snapshot: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocks = s.Blocks
	e.rebuildUTXOsLocked()
	e.replayTargetLocked()
	return nil
}
