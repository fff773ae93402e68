package engine

import (
	"github.com/nextdhcp/ddhcp/core/block"
)

// Sweep frees all expired leases of b and returns the number of free
// leases left in b
func (e *Engine) Sweep(b *block.Block) int {
	if !b.Allocated() {
		return 0
	}

	for _, off := range b.Expire(e.now()) {
		e.l.Debugf("lease %s of %s expired", b.Addr(off), b)
	}

	return b.NumFree()
}

// Tick sweeps every allocated block, drops forwarded requests whose owner
// did not answer in time and returns the number of free leases in owned
// blocks
func (e *Engine) Tick() int {
	free := 0
	for _, b := range e.blocks.Blocks() {
		n := e.Sweep(b)
		if b.State == block.StateOurs {
			free += n
		}
	}

	if n := e.pending.reap(); n > 0 {
		e.l.Infof("dropped %d forwarded requests without answer", n)
	}

	return free
}
