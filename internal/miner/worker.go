package miner

import (
	"context"
	"runtime"
	"time"

	"github.com/coinletchain/coinlet/pkg/block"
)

// runWorker is the CPU-bound nonce search, grounded on
// spawn_mining_thread: while mining and a template is present, clone
// it and try up to noncesPerAttempt nonces, timestamping the header on
// every increment. A solved block is handed to the controller over
// m.solved; an exhausted attempt is dropped so the next iteration
// picks up any newer template installed meanwhile.
func (m *Miner) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !m.mining.Load() {
			runtime.Gosched()
			continue
		}
		candidate := m.getTemplate()
		if candidate == nil {
			runtime.Gosched()
			continue
		}

		if solved, ok := mine(*candidate, noncesPerAttempt); ok {
			select {
			case m.solved <- solved:
				m.mining.Store(false)
			case <-ctx.Done():
				return
			}
			continue
		}
		runtime.Gosched()
	}
}

// mine increments b's header nonce up to attempts times, refreshing
// the timestamp before each target check, and reports whether it
// found a hash satisfying the header's target.
func mine(b block.Block, attempts int) (block.Block, bool) {
	for nonce := 0; nonce < attempts; nonce++ {
		b.Header.Nonce = uint64(nonce)
		b.Header.Timestamp = uint64(time.Now().Unix())
		if b.Header.MeetsTarget() {
			return b, true
		}
	}
	return block.Block{}, false
}
