package llfs

import (
	"encoding/binary"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
)

// pointerBlock is the decoded form of an indirect or double-indirect
// block: inode.PointersPerBlock uint32 disk-block numbers, 0 meaning
// unallocated.
type pointerBlock [inode.PointersPerBlock]uint32

func readPointerBlock(d *disk.Disk, blockNum int) (pointerBlock, error) {
	var raw [disk.BlockSize]byte
	if err := d.ReadBlock(blockNum, raw[:]); err != nil {
		return pointerBlock{}, wrapErr(Disk, err)
	}
	var pb pointerBlock
	for i := range pb {
		pb[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return pb, nil
}

func (pb pointerBlock) encode() [disk.BlockSize]byte {
	var buf [disk.BlockSize]byte
	for i, v := range pb {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// blockTree resolves and, when asked, extends the direct/indirect/double-
// indirect pointer tree of a single inode against a live disk + write
// buffer + allocator triple. It never commits anything itself; callers
// stage the inode afterward and commit the whole operation as one
// transaction.
type blockTree struct {
	d   *disk.Disk
	a   *allocator
	w   *writeBuffer
	ino *inode.Inode
}

// resolve returns the disk block number holding file-relative block
// blockIndex, or 0 if that block has never been allocated. Pointer blocks
// already staged in the write buffer are read from there, not from disk.
func (bt *blockTree) resolve(blockIndex int) (int, error) {
	pos, err := inode.BlockIndex(blockIndex)
	if err != nil {
		return 0, wrapErr(ByteOutOfRange, err)
	}

	switch pos.Kind {
	case inode.Direct:
		return int(bt.ino.Direct[pos.L1]), nil
	case inode.Indirect:
		if bt.ino.Indirect == 0 {
			return 0, nil
		}
		pb, err := bt.loadOrZeroPointerBlock(int(bt.ino.Indirect))
		if err != nil {
			return 0, err
		}
		return int(pb[pos.L1]), nil
	default: // inode.DoubleIndirect
		if bt.ino.DoubleIndirect == 0 {
			return 0, nil
		}
		dind, err := bt.loadOrZeroPointerBlock(int(bt.ino.DoubleIndirect))
		if err != nil {
			return 0, err
		}
		if dind[pos.L1] == 0 {
			return 0, nil
		}
		ind, err := bt.loadOrZeroPointerBlock(int(dind[pos.L1]))
		if err != nil {
			return 0, err
		}
		return int(ind[pos.L2]), nil
	}
}

// allocate reserves a new data block for file-relative block blockIndex,
// wiring it into the inode's direct/indirect/double-indirect tree,
// allocating and staging any intermediate pointer blocks that don't exist
// yet, and returns the new data block's number.
func (bt *blockTree) allocate(blockIndex int) (int, error) {
	pos, err := inode.BlockIndex(blockIndex)
	if err != nil {
		return 0, wrapErr(ByteOutOfRange, err)
	}

	nums, err := bt.a.reserveBlocks(1)
	if err != nil {
		return 0, err
	}
	dataBlock := nums[0]

	switch pos.Kind {
	case inode.Direct:
		bt.ino.Direct[pos.L1] = uint16(dataBlock)
		return dataBlock, nil

	case inode.Indirect:
		if bt.ino.Indirect == 0 {
			loc, err := bt.a.reserveBlocks(1)
			if err != nil {
				return 0, err
			}
			bt.ino.Indirect = uint16(loc[0])
			if err := bt.w.put(loc[0], [disk.BlockSize]byte{}); err != nil {
				return 0, err
			}
		}
		pb, err := bt.loadOrZeroPointerBlock(int(bt.ino.Indirect))
		if err != nil {
			return 0, err
		}
		pb[pos.L1] = uint32(dataBlock)
		if err := bt.w.put(int(bt.ino.Indirect), pb.encode()); err != nil {
			return 0, err
		}
		return dataBlock, nil

	default: // inode.DoubleIndirect
		if bt.ino.DoubleIndirect == 0 {
			loc, err := bt.a.reserveBlocks(1)
			if err != nil {
				return 0, err
			}
			bt.ino.DoubleIndirect = uint16(loc[0])
			if err := bt.w.put(loc[0], [disk.BlockSize]byte{}); err != nil {
				return 0, err
			}
		}
		dind, err := bt.loadOrZeroPointerBlock(int(bt.ino.DoubleIndirect))
		if err != nil {
			return 0, err
		}
		if dind[pos.L1] == 0 {
			loc, err := bt.a.reserveBlocks(1)
			if err != nil {
				return 0, err
			}
			dind[pos.L1] = uint32(loc[0])
			if err := bt.w.put(int(bt.ino.DoubleIndirect), dind.encode()); err != nil {
				return 0, err
			}
			if err := bt.w.put(loc[0], [disk.BlockSize]byte{}); err != nil {
				return 0, err
			}
		}
		ind, err := bt.loadOrZeroPointerBlock(int(dind[pos.L1]))
		if err != nil {
			return 0, err
		}
		ind[pos.L2] = uint32(dataBlock)
		if err := bt.w.put(int(dind[pos.L1]), ind.encode()); err != nil {
			return 0, err
		}
		return dataBlock, nil
	}
}

// loadOrZeroPointerBlock reads a pointer block, preferring whatever is
// already staged in this operation's write buffer over disk content:
// a pointer block allocated earlier in the same call is seeded with a
// zeroed entry at allocation time, so the write buffer is always
// authoritative when present.
func (bt *blockTree) loadOrZeroPointerBlock(blockNum int) (pointerBlock, error) {
	if staged, ok := bt.w.blocks[blockNum]; ok {
		var pb pointerBlock
		for i := range pb {
			pb[i] = binary.LittleEndian.Uint32(staged[i*4:])
		}
		return pb, nil
	}
	return readPointerBlock(bt.d, blockNum)
}
