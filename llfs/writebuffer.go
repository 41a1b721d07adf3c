package llfs

import (
	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/journal"
)

// writeBuffer stages the disk blocks a single filesystem operation has
// touched so they can be submitted to the journal as one atomic
// transaction. Each block number appears at most once: staging the same
// block twice (e.g. an indirect pointer block touched by several new
// data blocks within one extend) simply overwrites the staged bytes, the
// same net effect the original owned/ref buffer semantics produced by
// mutating an already-queued block's memory in place.
type writeBuffer struct {
	order  []int
	blocks map[int][disk.BlockSize]byte
}

func newWriteBuffer() *writeBuffer {
	return &writeBuffer{blocks: make(map[int][disk.BlockSize]byte)}
}

// put stages blockNum for write, recording first-seen order. Returns
// ErrExceededMaxBuffer if staging a new (not already-present) block would
// push the buffer past the journal's MaxTransactionLen, rather than
// silently truncating the transaction at commit time.
func (w *writeBuffer) put(blockNum int, data [disk.BlockSize]byte) error {
	if _, exists := w.blocks[blockNum]; !exists {
		if len(w.order) >= journal.MaxTransactionLen {
			return ErrExceededMaxBuffer
		}
		w.order = append(w.order, blockNum)
	}
	w.blocks[blockNum] = data
	return nil
}

func (w *writeBuffer) len() int {
	return len(w.order)
}

// fileBlocks returns the staged blocks as journal.FileBlock values, in
// first-staged order, ready to hand to journal.Commit.
func (w *writeBuffer) fileBlocks() []journal.FileBlock {
	fbs := make([]journal.FileBlock, 0, len(w.order))
	for _, num := range w.order {
		fbs = append(fbs, journal.FileBlock{BlockNum: num, Data: w.blocks[num]})
	}
	return fbs
}
