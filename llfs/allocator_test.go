package llfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Curt-White/llfs/disk"
)

func TestNewAllocatorStartsAllFree(t *testing.T) {
	a := newAllocator()
	require.Equal(t, 0, a.freeBlocks.FirstSet(0))
}

func TestReserveBlocksSequential(t *testing.T) {
	a := newAllocator()
	nums, err := a.reserveBlocks(5)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, nums)

	nums2, err := a.reserveBlocks(2)
	require.NoError(t, err)
	require.Equal(t, []int{5, 6}, nums2)
}

func TestReserveBlocksExhaustsToDiskFull(t *testing.T) {
	a := newAllocator()
	total := disk.BlockCount
	_, err := a.reserveBlocks(total)
	require.NoError(t, err)

	_, err = a.reserveBlocks(1)
	require.ErrorIs(t, err, ErrDiskFull)
}

func TestReserveBlocksRollsBackOnPartialFailure(t *testing.T) {
	a := newAllocator()
	total := disk.BlockCount
	_, err := a.reserveBlocks(total - 2)
	require.NoError(t, err)

	_, err = a.reserveBlocks(5)
	require.ErrorIs(t, err, ErrDiskFull)

	// The 2 blocks still free before the failed call must still be free
	// afterward: a failed multi-block reservation must not leak blocks it
	// grabbed before running out.
	remaining, err := a.reserveBlocks(2)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestFreeBlockReturnsToPool(t *testing.T) {
	a := newAllocator()
	nums, err := a.reserveBlocks(3)
	require.NoError(t, err)

	require.NoError(t, a.freeBlock(nums[1]))
	require.Equal(t, nums[1], a.freeBlocks.FirstSet(0))
}

func TestFreeBlockRejectsNonPositive(t *testing.T) {
	a := newAllocator()
	err := a.freeBlock(0)
	require.Error(t, err)
}

func TestReserveInodeAssignsFirstFreeSlot(t *testing.T) {
	a := newAllocator()
	num, mapBlock, err := a.reserveInode(100)
	require.NoError(t, err)
	require.Equal(t, 1, num)
	require.Equal(t, 0, mapBlock)
	require.Equal(t, 100, a.inodeBlock(1))
}

func TestFreeInodeRejectsRoot(t *testing.T) {
	a := newAllocator()
	require.Error(t, a.freeInode(0))
	require.Error(t, a.freeInode(1))
}

func TestFreeInodeReleasesSlot(t *testing.T) {
	a := newAllocator()
	a.inodeMap[0] = rootDirLoc // inode 1 is the root, as after Format
	num, _, err := a.reserveInode(200)
	require.NoError(t, err)
	require.NotEqual(t, 1, num)

	require.NoError(t, a.freeInode(num))
	require.Equal(t, 0, a.inodeBlock(num))
}

func TestInodeBlockOutOfRange(t *testing.T) {
	a := newAllocator()
	require.Equal(t, 0, a.inodeBlock(0))
	require.Equal(t, 0, a.inodeBlock(len(a.inodeMap)+1))
}

func TestStageFreeBlocksAndInodeMapRoundTrip(t *testing.T) {
	a := newAllocator()
	_, err := a.reserveBlocks(2)
	require.NoError(t, err)
	_, _, err = a.reserveInode(500)
	require.NoError(t, err)

	w := newWriteBuffer()
	require.NoError(t, a.stageFreeBlocks(w))
	require.NoError(t, a.stageAllInodeMapBlocks(w))

	require.Equal(t, 3, w.len())
}
