package llfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
)

func newTestTree(t *testing.T) (*disk.Disk, *allocator, *writeBuffer, *inode.Inode) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.img")
	d, err := disk.Mount(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Unmount() })

	a := newAllocator()
	w := newWriteBuffer()
	ino := inode.New(inode.Flat)
	return d, a, w, &ino
}

func TestBlockTreeResolveUnallocatedIsZero(t *testing.T) {
	d, a, w, ino := newTestTree(t)
	bt := &blockTree{d: d, a: a, w: w, ino: ino}

	num, err := bt.resolve(0)
	require.NoError(t, err)
	require.Equal(t, 0, num)
}

func TestBlockTreeAllocateDirectThenResolve(t *testing.T) {
	d, a, w, ino := newTestTree(t)
	bt := &blockTree{d: d, a: a, w: w, ino: ino}

	num, err := bt.allocate(3)
	require.NoError(t, err)
	require.NotZero(t, num)

	got, err := bt.resolve(3)
	require.NoError(t, err)
	require.Equal(t, num, got)
}

func TestBlockTreeAllocateCrossesIntoIndirect(t *testing.T) {
	d, a, w, ino := newTestTree(t)
	bt := &blockTree{d: d, a: a, w: w, ino: ino}

	for i := 0; i < inode.DirectCount; i++ {
		_, err := bt.allocate(i)
		require.NoError(t, err)
	}
	require.Zero(t, ino.Indirect)

	indirectBlock, err := bt.allocate(inode.DirectCount)
	require.NoError(t, err)
	require.NotZero(t, ino.Indirect)

	// The pointer block itself must be flushed to disk (via the journal, in
	// real use) before a fresh blockTree reading from disk would see it;
	// here we read straight from the write buffer's staged bytes.
	staged, ok := w.blocks[int(ino.Indirect)]
	require.True(t, ok)

	pb := pointerBlock{}
	for i := range pb {
		pb[i] = uint32From(staged[i*4:])
	}
	require.Equal(t, uint32(indirectBlock), pb[0])

	got, err := bt.resolve(inode.DirectCount)
	require.NoError(t, err)
	require.Equal(t, indirectBlock, got)
}

func uint32From(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestBlockTreeAllocateCrossesIntoDoubleIndirect(t *testing.T) {
	d, a, w, ino := newTestTree(t)
	bt := &blockTree{d: d, a: a, w: w, ino: ino}

	firstDoubleIndirectBlock := inode.DirectCount + inode.PointersPerBlock
	for i := 0; i < firstDoubleIndirectBlock; i++ {
		_, err := bt.allocate(i)
		require.NoError(t, err)
	}
	require.Zero(t, ino.DoubleIndirect)

	dataBlock, err := bt.allocate(firstDoubleIndirectBlock)
	require.NoError(t, err)
	require.NotZero(t, ino.DoubleIndirect)

	got, err := bt.resolve(firstDoubleIndirectBlock)
	require.NoError(t, err)
	require.Equal(t, dataBlock, got)
}

func TestBlockTreeResolveOutOfRange(t *testing.T) {
	d, a, w, ino := newTestTree(t)
	bt := &blockTree{d: d, a: a, w: w, ino: ino}

	_, err := bt.resolve(-1)
	require.Error(t, err)
}
