package llfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
)

func newTestDirHandle(t *testing.T) (*disk.Disk, *allocator, *writeBuffer, *dirHandle) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dir.img")
	d, err := disk.Mount(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Unmount() })

	a := newAllocator()
	w := newWriteBuffer()
	ino := inode.New(inode.Dir)
	dh := newDirHandle(d, a, w, &ino)
	return d, a, w, dh
}

func TestDirHandleAppendAndSearch(t *testing.T) {
	_, _, _, dh := newTestDirHandle(t)

	require.NoError(t, dh.append(dirEntry{Inode: 5, Name: "one"}))
	require.NoError(t, dh.append(dirEntry{Inode: 6, Name: "two"}))

	num, err := dh.search("two")
	require.NoError(t, err)
	require.Equal(t, 6, num)

	_, err = dh.search("missing")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestDirHandleListReturnsOnlyLiveEntries(t *testing.T) {
	_, _, _, dh := newTestDirHandle(t)
	require.NoError(t, dh.append(dirEntry{Inode: 1, Name: "a"}))
	require.NoError(t, dh.append(dirEntry{Inode: 2, Name: "b"}))

	_, err := dh.remove("a")
	require.NoError(t, err)

	entries, err := dh.list()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "b", entries[0].Name)
}

func TestDirHandleRemoveReusesTombstonedSlot(t *testing.T) {
	_, _, _, dh := newTestDirHandle(t)
	require.NoError(t, dh.append(dirEntry{Inode: 1, Name: "a"}))
	blocksBefore := dh.bt.ino.TotalBlocks()

	_, err := dh.remove("a")
	require.NoError(t, err)

	require.NoError(t, dh.append(dirEntry{Inode: 2, Name: "b"}))
	require.Equal(t, blocksBefore, dh.bt.ino.TotalBlocks())
}

func TestDirHandleIsEmpty(t *testing.T) {
	_, _, _, dh := newTestDirHandle(t)
	empty, err := dh.isEmpty()
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, dh.append(dirEntry{Inode: 1, Name: "a"}))
	empty, err = dh.isEmpty()
	require.NoError(t, err)
	require.False(t, empty)
}

func TestDirHandleAppendExtendsAcrossBlocks(t *testing.T) {
	_, _, _, dh := newTestDirHandle(t)
	for i := 0; i < entriesPerBlock+1; i++ {
		name := string(rune('a' + i%26))
		if i >= 26 {
			name += string(rune('0' + i/26))
		}
		require.NoError(t, dh.append(dirEntry{Inode: uint8(i + 1), Name: name}))
	}
	require.Equal(t, 2, dh.bt.ino.TotalBlocks())

	entries, err := dh.list()
	require.NoError(t, err)
	require.Len(t, entries, entriesPerBlock+1)
}

func TestDirHandleFileSizeTracksLiveEntriesOnly(t *testing.T) {
	_, _, _, dh := newTestDirHandle(t)
	require.NoError(t, dh.append(dirEntry{Inode: 1, Name: "a"}))
	require.NoError(t, dh.append(dirEntry{Inode: 2, Name: "b"}))
	require.Equal(t, uint32(2*dirEntrySize), dh.bt.ino.FileSize)

	_, err := dh.remove("a")
	require.NoError(t, err)
	require.Equal(t, uint32(dirEntrySize), dh.bt.ino.FileSize)

	// TotalBlocks (the directory's scan bound) never shrinks even though
	// FileSize did.
	require.Equal(t, 1, dh.bt.ino.TotalBlocks())
}
