package llfs

import (
	"encoding/binary"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
	"github.com/Curt-White/llfs/util/bitmap"
)

// Fixed block locations, matching the reserved region of the on-disk
// layout: block 0 is the superblock, block 1 the free-block bitmap,
// blocks 2-3 the inode map, blocks 4-11 reserved, 12-31 the journal
// (owned by the journal package), block 32 the root directory inode,
// and 33+ general data/inode blocks.
const (
	superblockLoc  = 0
	freeBlockLoc   = 1
	inodeMapLoc    = 2
	inodeMapBlocks = 2
	rootDirLoc     = 32
	firstDataBlock = 33
)

// entriesPerInodeMapBlock is how many uint32 inode-map slots fit in one
// disk block.
const entriesPerInodeMapBlock = disk.BlockSize / 4

// allocator owns the in-memory free-block bitmap and inode map, and knows
// how to stage their updates into a write buffer; it never talks to the
// journal directly.
type allocator struct {
	freeBlocks *bitmap.Bitmap
	inodeMap   [inode.MaxInodes]uint32
}

func newAllocator() *allocator {
	return &allocator{freeBlocks: bitmap.NewBytesAllSet(disk.BlockSize)}
}

// reserveBlocks finds n free blocks, marks them used in the in-memory
// bitmap, and returns their block numbers. It does not stage the bitmap
// for write; callers must call stageFreeBlocks on the write buffer once
// they're done allocating for an operation.
func (a *allocator) reserveBlocks(n int) ([]int, error) {
	nums := make([]int, 0, n)
	cursor := 0
	for i := 0; i < n; i++ {
		loc := a.freeBlocks.FirstSet(cursor)
		if loc < 0 {
			// Roll back everything reserved so far in this call so a
			// failed multi-block reservation doesn't leak blocks.
			for _, rolled := range nums {
				_ = a.freeBlocks.Set(rolled)
			}
			return nil, newErr(DiskFull)
		}
		if err := a.freeBlocks.Clear(loc); err != nil {
			return nil, wrapErr(Disk, err)
		}
		nums = append(nums, loc)
		cursor = loc + 1
	}
	return nums, nil
}

// freeBlock returns a block to the free pool.
func (a *allocator) freeBlock(blockNum int) error {
	if blockNum <= 0 {
		return pathErr(ByteOutOfRange, "")
	}
	return a.freeBlocks.Set(blockNum)
}

// reserveInode claims the first free inode-map slot for a new inode whose
// data lives at blockNum, returning the inode number (1-based) and which
// of the inodeMapBlocks on-disk blocks that slot falls in.
func (a *allocator) reserveInode(blockNum int) (inodeNum int, mapBlock int, err error) {
	// Only inode numbers 1..MaxInodes-1 fit a directory entry's byte-wide
	// inode field, so the last map slot is never handed out.
	for i := 0; i < inode.MaxInodes-1; i++ {
		if a.inodeMap[i] == 0 {
			a.inodeMap[i] = uint32(blockNum)
			return i + 1, i / entriesPerInodeMapBlock, nil
		}
	}
	return 0, 0, newErr(DiskFull)
}

// freeInode releases an inode number back to the map. Inode 1 (the root
// directory) can never be freed.
func (a *allocator) freeInode(inodeNum int) error {
	if inodeNum <= 1 || inodeNum > len(a.inodeMap) {
		return newErr(InodeFree)
	}
	a.inodeMap[inodeNum-1] = 0
	return nil
}

// inodeBlock returns the disk block number holding inode inodeNum's data,
// or 0 if that slot is free.
func (a *allocator) inodeBlock(inodeNum int) int {
	if inodeNum <= 0 || inodeNum > len(a.inodeMap) {
		return 0
	}
	return int(a.inodeMap[inodeNum-1])
}

// stageFreeBlocks encodes the free-block bitmap as a single block and
// stages it for write.
func (a *allocator) stageFreeBlocks(w *writeBuffer) error {
	var buf [disk.BlockSize]byte
	copy(buf[:], a.freeBlocks.ToBytes())
	return w.put(freeBlockLoc, buf)
}

// stageInodeMapBlock encodes inode-map block idx (0 or 1) and stages it
// for write.
func (a *allocator) stageInodeMapBlock(w *writeBuffer, idx int) error {
	var buf [disk.BlockSize]byte
	base := idx * entriesPerInodeMapBlock
	for i := 0; i < entriesPerInodeMapBlock; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], a.inodeMap[base+i])
	}
	return w.put(inodeMapLoc+idx, buf)
}

// stageAllInodeMapBlocks stages every inode-map block for write.
func (a *allocator) stageAllInodeMapBlocks(w *writeBuffer) error {
	for idx := 0; idx < inodeMapBlocks; idx++ {
		if err := a.stageInodeMapBlock(w, idx); err != nil {
			return err
		}
	}
	return nil
}

// loadAllocator reads the free-block bitmap and inode map off of d.
func loadAllocator(d *disk.Disk) (*allocator, error) {
	a := newAllocator()

	var fbBuf [disk.BlockSize]byte
	if err := d.ReadBlock(freeBlockLoc, fbBuf[:]); err != nil {
		return nil, wrapErr(Disk, err)
	}
	a.freeBlocks = bitmap.FromBytes(fbBuf[:])

	for idx := 0; idx < inodeMapBlocks; idx++ {
		var buf [disk.BlockSize]byte
		if err := d.ReadBlock(inodeMapLoc+idx, buf[:]); err != nil {
			return nil, wrapErr(Disk, err)
		}
		base := idx * entriesPerInodeMapBlock
		for i := 0; i < entriesPerInodeMapBlock; i++ {
			a.inodeMap[base+i] = binary.LittleEndian.Uint32(buf[i*4:])
		}
	}

	return a, nil
}
