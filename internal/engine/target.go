package engine

import (
	"math/big"

	"github.com/coinletchain/coinlet/pkg/block"
	"github.com/coinletchain/coinlet/pkg/types"
)

// tryAdjustTargetLocked retargets difficulty every DifficultyUpdateInterval
// blocks. new_target = clamp(current * actual/expected, floor=1,
// ceiling=MinTarget), with actual/expected itself clamped to
// [0.25, 4.0] first to prevent discontinuous jumps.
func (e *Engine) tryAdjustTargetLocked() {
	const w = DifficultyUpdateInterval
	if len(e.blocks) < w || len(e.blocks)%w != 0 {
		return
	}
	e.target = retarget(e.target, e.blocks[len(e.blocks)-w:])
}

// retarget computes the next target given the current one and the
// just-closed DifficultyUpdateInterval-block window.
func retarget(current *big.Int, window []block.Block) *big.Int {
	first := window[0].Header.Timestamp
	last := window[len(window)-1].Header.Timestamp

	var actual uint64
	if last > first {
		actual = last - first
	}
	expected := uint64(DifficultyUpdateInterval * IdealBlockTime)

	ratioNum, ratioDenom := actual, expected
	if ratioNum*4 < ratioDenom {
		ratioNum, ratioDenom = 1, 4
	} else if ratioNum > ratioDenom*4 {
		ratioNum, ratioDenom = 4, 1
	}

	newTarget := new(big.Int).Mul(current, big.NewInt(int64(ratioNum)))
	newTarget.Div(newTarget, big.NewInt(int64(ratioDenom)))

	return types.ClampTarget(newTarget, big.NewInt(1))
}

// TryAdjustTarget runs the difficulty retarget check explicitly; used
// by bootstrap after downloading a chain from peers. LoadSnapshot does
// not need it: it recomputes the target itself by replaying the chain.
func (e *Engine) TryAdjustTarget() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tryAdjustTargetLocked()
}

// replayTargetLocked recomputes the target from MinTarget by replaying
// every difficulty-update checkpoint in order, matching the sequence
// of retargets that would have occurred had the chain been built
// block by block instead of loaded from a snapshot.
func (e *Engine) replayTargetLocked() {
	e.target = new(big.Int).Set(types.MinTarget)
	const w = DifficultyUpdateInterval
	for cp := w; cp <= len(e.blocks); cp += w {
		e.target = retarget(e.target, e.blocks[cp-w:cp])
	}
}
