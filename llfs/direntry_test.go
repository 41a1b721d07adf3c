package llfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirEntryEncodeDecodeRoundTrip(t *testing.T) {
	e := dirEntry{Inode: 7, Name: "notes.txt"}
	var buf [dirEntrySize]byte
	e.encode(buf[:])

	got := decodeDirEntry(buf[:])
	require.Equal(t, e, got)
}

func TestDirEntryNameAtMaxLengthRoundTrips(t *testing.T) {
	name := ""
	for i := 0; i < nameLen; i++ {
		name += "x"
	}
	e := dirEntry{Inode: 3, Name: name}
	var buf [dirEntrySize]byte
	e.encode(buf[:])

	got := decodeDirEntry(buf[:])
	require.Equal(t, name, got.Name)
}

func TestDirEntryTombstoneHasZeroInode(t *testing.T) {
	var buf [dirEntrySize]byte
	got := decodeDirEntry(buf[:])
	require.Equal(t, uint8(0), got.Inode)
	require.Equal(t, "", got.Name)
}
