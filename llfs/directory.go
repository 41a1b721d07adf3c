package llfs

import (
	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
)

// dirHandle operates on a directory inode's contents as a sequence of
// dirEntrySize-byte records, independent of the generic byte-stream File:
// entries live in fixed slots across DirBlocks blocks, and removing one
// tombstones its slot rather than shifting later entries down. Scans
// always walk every slot in every allocated block; FileSize tracks only
// the live-entry count and is never used as a scan bound here, since a
// tombstone anywhere but the last slot would shrink FileSize below a
// later live entry's position.
type dirHandle struct {
	bt *blockTree
}

// readBlock returns the decoded entries of directory block blockIndex
// (0-based within the directory), preferring a block already staged in
// this operation's write buffer.
func (d *dirHandle) readBlock(blockIndex int) (int, [entriesPerBlock]dirEntry, error) {
	var entries [entriesPerBlock]dirEntry
	blockNum, err := d.bt.resolve(blockIndex)
	if err != nil {
		return 0, entries, err
	}
	if blockNum == 0 {
		return 0, entries, pathErr(FileNotAllocated, "")
	}

	var raw [disk.BlockSize]byte
	if staged, ok := d.bt.w.blocks[blockNum]; ok {
		raw = staged
	} else if err := d.bt.d.ReadBlock(blockNum, raw[:]); err != nil {
		return 0, entries, wrapErr(Disk, err)
	}

	for i := 0; i < entriesPerBlock; i++ {
		entries[i] = decodeDirEntry(raw[i*dirEntrySize:])
	}
	return blockNum, entries, nil
}

func (d *dirHandle) writeBlock(blockNum int, entries [entriesPerBlock]dirEntry) error {
	var raw [disk.BlockSize]byte
	for i, e := range entries {
		e.encode(raw[i*dirEntrySize:])
	}
	return d.bt.w.put(blockNum, raw)
}

// search returns the inode number bound to name, or ErrFileNotFound.
func (d *dirHandle) search(name string) (int, error) {
	total := d.bt.ino.TotalBlocks()
	for b := 0; b < total; b++ {
		_, entries, err := d.readBlock(b)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if e.Inode != 0 && e.Name == name {
				return int(e.Inode), nil
			}
		}
	}
	return 0, pathErr(FileNotFound, name)
}

// list returns every live entry in the directory.
func (d *dirHandle) list() ([]dirEntry, error) {
	total := d.bt.ino.TotalBlocks()
	var out []dirEntry
	for b := 0; b < total; b++ {
		_, entries, err := d.readBlock(b)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Inode != 0 {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// append adds a new entry, reusing the first tombstoned slot if one
// exists, otherwise extending the directory by one block.
func (d *dirHandle) append(entry dirEntry) error {
	total := d.bt.ino.TotalBlocks()
	for b := 0; b < total; b++ {
		blockNum, entries, err := d.readBlock(b)
		if err != nil {
			return err
		}
		for i, e := range entries {
			if e.Inode == 0 {
				entries[i] = entry
				if err := d.writeBlock(blockNum, entries); err != nil {
					return err
				}
				d.bt.ino.FileSize += dirEntrySize
				return nil
			}
		}
	}

	// No free slot: extend by a fresh block.
	newBlockNum, err := d.bt.allocate(total)
	if err != nil {
		return err
	}
	d.bt.ino.DirBlocks++

	var entries [entriesPerBlock]dirEntry
	entries[0] = entry
	if err := d.writeBlock(newBlockNum, entries); err != nil {
		return err
	}
	d.bt.ino.FileSize += dirEntrySize
	return nil
}

// remove tombstones the entry named name and returns the inode number it
// held.
func (d *dirHandle) remove(name string) (int, error) {
	total := d.bt.ino.TotalBlocks()
	for b := 0; b < total; b++ {
		blockNum, entries, err := d.readBlock(b)
		if err != nil {
			return 0, err
		}
		for i, e := range entries {
			if e.Inode != 0 && e.Name == name {
				inodeNum := int(e.Inode)
				entries[i] = dirEntry{}
				if err := d.writeBlock(blockNum, entries); err != nil {
					return 0, err
				}
				d.bt.ino.FileSize -= dirEntrySize
				return inodeNum, nil
			}
		}
	}
	return 0, pathErr(FileNotFound, name)
}

// isEmpty reports whether the directory has no live entries.
func (d *dirHandle) isEmpty() (bool, error) {
	entries, err := d.list()
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// newDirHandle builds a dirHandle for an already-loaded directory inode.
func newDirHandle(d *disk.Disk, a *allocator, w *writeBuffer, ino *inode.Inode) *dirHandle {
	return &dirHandle{bt: &blockTree{d: d, a: a, w: w, ino: ino}}
}
