package llfs

import (
	"bytes"

	"github.com/Curt-White/llfs/disk"
)

// dirEntrySize is the packed size of one directory record: a one-byte
// inode number and a 31-byte, NUL-padded name.
const dirEntrySize = 32

// nameLen is the usable name length: the 31-byte name field must hold a
// NUL terminator, so at most 30 characters are usable.
const nameLen = dirEntrySize - 2

// entriesPerBlock is how many dirEntry records fit in one data block.
const entriesPerBlock = disk.BlockSize / dirEntrySize

// dirEntry is one record of a directory's contents. Inode == 0 marks a
// tombstoned (removed) or never-used slot.
type dirEntry struct {
	Inode uint8
	Name  string
}

func decodeDirEntry(buf []byte) dirEntry {
	name := buf[1:dirEntrySize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return dirEntry{Inode: buf[0], Name: string(name)}
}

func (e dirEntry) encode(buf []byte) {
	buf[0] = e.Inode
	copy(buf[1:dirEntrySize], e.Name)
	for i := 1 + len(e.Name); i < dirEntrySize; i++ {
		buf[i] = 0
	}
}
