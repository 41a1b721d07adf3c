// Package llfs implements a small block-addressable filesystem: a fixed
// 2 MiB image with hierarchical directories, byte-stream files, and a
// crash-consistent redo journal. FileSystem is the entry point; Format
// creates a fresh image and Load mounts an existing one.
package llfs

import (
	"github.com/sirupsen/logrus"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
	"github.com/Curt-White/llfs/journal"
)

// FileSystem ties a mounted Disk, its journal, and its in-memory
// allocator state together behind the operations a client actually
// performs: Mkdir, Touch, Open, Remove, Stat, ReadDir.
type FileSystem struct {
	disk    *disk.Disk
	journal *journal.Journal
	alloc   *allocator
	log     *logrus.Logger
}

// Info describes a single file or directory, returned by Stat and as
// part of ReadDir entries.
type Info struct {
	Name  string
	Inode int
	IsDir bool
	Size  int64
}

// Format initializes a brand new disk image at path: free list, inode
// map, journal, and an empty root directory. Block 0 is reserved for the
// superblock, but Format writes no superblock record there. It fails if a
// disk is already mounted in this process.
func Format(path string) (*FileSystem, error) {
	d, err := disk.Mount(path)
	if err != nil {
		return nil, wrapErr(Disk, err)
	}

	log := logrus.StandardLogger()
	jlog := log.WithField("component", "journal")

	a := newAllocator()
	// Reserve every block in the fixed low region: superblock, free-block
	// bitmap, inode map, journal superblock + log, and the root directory
	// inode, in that order — matching the on-disk layout's fixed offsets.
	if _, err := a.reserveBlocks(firstDataBlock); err != nil {
		return nil, err
	}

	j, err := journal.Init(d, jlog)
	if err != nil {
		return nil, wrapErr(Journal, err)
	}

	a.inodeMap[0] = rootDirLoc

	root := inode.New(inode.Dir)
	rootBuf := root.Encode()
	if err := d.WriteBlock(rootDirLoc, rootBuf[:]); err != nil {
		return nil, wrapErr(Disk, err)
	}

	w := newWriteBuffer()
	if err := a.stageFreeBlocks(w); err != nil {
		return nil, err
	}
	if err := a.stageAllInodeMapBlocks(w); err != nil {
		return nil, err
	}
	if err := j.Commit(w.fileBlocks()); err != nil {
		return nil, wrapErr(Journal, err)
	}

	log.WithField("volume_id", j.VolumeID()).Info("formatted new llfs image")
	return &FileSystem{disk: d, journal: j, alloc: a, log: log}, nil
}

// Load mounts an existing disk image at path, replaying any journal
// transaction left pending from an unclean shutdown.
func Load(path string) (*FileSystem, error) {
	d, err := disk.Mount(path)
	if err != nil {
		return nil, wrapErr(Disk, err)
	}

	log := logrus.StandardLogger()
	jlog := log.WithField("component", "journal")

	j, err := journal.Load(d, jlog)
	if err != nil {
		return nil, wrapErr(Journal, err)
	}
	if err := j.Recover(); err != nil {
		return nil, wrapErr(Journal, err)
	}

	a, err := loadAllocator(d)
	if err != nil {
		return nil, err
	}

	log.WithField("volume_id", j.VolumeID()).Info("mounted llfs image")
	return &FileSystem{disk: d, journal: j, alloc: a, log: log}, nil
}

// Close unmounts the underlying disk, flushing it to stable media.
func (fs *FileSystem) Close() error {
	if err := fs.disk.Unmount(); err != nil {
		return wrapErr(Disk, err)
	}
	return nil
}

// readInode reads the inode stored at block loc.
func (fs *FileSystem) readInode(loc int) (inode.Inode, error) {
	var buf [disk.BlockSize]byte
	if err := fs.disk.ReadBlock(loc, buf[:]); err != nil {
		return inode.Inode{}, wrapErr(Disk, err)
	}
	ino, err := inode.Decode(buf[:])
	if err != nil {
		return inode.Inode{}, wrapErr(Disk, err)
	}
	return ino, nil
}

// resolvePath walks path's components from the root, returning the
// inode and its disk location of the final component.
func (fs *FileSystem) resolvePath(path string) (inode.Inode, int, error) {
	parts, err := splitComponents(path)
	if err != nil {
		return inode.Inode{}, 0, err
	}

	loc := rootDirLoc
	ino, err := fs.readInode(loc)
	if err != nil {
		return inode.Inode{}, 0, err
	}

	for _, part := range parts {
		if ino.FileType != inode.Dir {
			return inode.Inode{}, 0, pathErr(FileNotFound, path)
		}
		dh := newDirHandle(fs.disk, fs.alloc, newWriteBuffer(), &ino)
		childInodeNum, err := dh.search(part)
		if err != nil {
			return inode.Inode{}, 0, pathErr(FileNotFound, path)
		}
		loc = fs.alloc.inodeBlock(childInodeNum)
		if loc == 0 {
			return inode.Inode{}, 0, pathErr(FileNotFound, path)
		}
		ino, err = fs.readInode(loc)
		if err != nil {
			return inode.Inode{}, 0, err
		}
	}

	return ino, loc, nil
}

// createEntry creates a new file or directory at path, of type t.
func (fs *FileSystem) createEntry(path string, t inode.Type) error {
	dirPath, name, err := splitPath(path)
	if err != nil {
		return err
	}

	parentIno, parentLoc, err := fs.resolvePath(dirPath)
	if err != nil {
		return pathErr(BadPath, path)
	}
	if parentIno.FileType != inode.Dir {
		return pathErr(BadPath, path)
	}

	w := newWriteBuffer()
	dh := newDirHandle(fs.disk, fs.alloc, w, &parentIno)

	if _, err := dh.search(name); err == nil {
		return pathErr(FileAlreadyExists, path)
	}

	blocks, err := fs.alloc.reserveBlocks(1)
	if err != nil {
		return err
	}
	newInodeLoc := blocks[0]

	inodeNum, mapBlock, err := fs.alloc.reserveInode(newInodeLoc)
	if err != nil {
		return err
	}

	if err := dh.append(dirEntry{Inode: uint8(inodeNum), Name: name}); err != nil {
		return err
	}

	newIno := inode.New(t)
	if err := w.put(newInodeLoc, newIno.Encode()); err != nil {
		return err
	}
	if err := w.put(parentLoc, parentIno.Encode()); err != nil {
		return err
	}
	if err := fs.alloc.stageInodeMapBlock(w, mapBlock); err != nil {
		return err
	}
	if err := fs.alloc.stageFreeBlocks(w); err != nil {
		return err
	}

	if err := fs.journal.Commit(w.fileBlocks()); err != nil {
		return wrapErr(Journal, err)
	}
	return nil
}

// Mkdir creates a new, empty directory at path. The parent directory
// must already exist.
func (fs *FileSystem) Mkdir(path string) error {
	return fs.createEntry(path, inode.Dir)
}

// Touch creates a new, empty regular file at path. The parent directory
// must already exist.
func (fs *FileSystem) Touch(path string) error {
	return fs.createEntry(path, inode.Flat)
}

// Open opens path as a regular file for reading and writing.
func (fs *FileSystem) Open(path string) (*File, error) {
	ino, loc, err := fs.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if ino.FileType != inode.Flat {
		return nil, pathErr(BadPath, path)
	}
	return &File{fs: fs, inodeLoc: loc, ino: ino}, nil
}

// Stat returns Info describing the file or directory at path.
func (fs *FileSystem) Stat(path string) (Info, error) {
	ino, loc, err := fs.resolvePath(path)
	if err != nil {
		return Info{}, err
	}
	_, name, _ := splitPath(path)
	if path == "/" {
		name = "/"
	}
	return Info{
		Name:  name,
		Inode: fs.inodeNumberForLoc(loc),
		IsDir: ino.FileType == inode.Dir,
		Size:  int64(ino.FileSize),
	}, nil
}

func (fs *FileSystem) inodeNumberForLoc(loc int) int {
	for i, v := range fs.alloc.inodeMap {
		if int(v) == loc {
			return i + 1
		}
	}
	return 0
}

// ReadDir returns the entries of the directory at path.
func (fs *FileSystem) ReadDir(path string) ([]Info, error) {
	ino, loc, err := fs.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if ino.FileType != inode.Dir {
		return nil, pathErr(BadPath, path)
	}

	dh := newDirHandle(fs.disk, fs.alloc, newWriteBuffer(), &ino)
	entries, err := dh.list()
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		childLoc := fs.alloc.inodeBlock(int(e.Inode))
		childIno, err := fs.readInode(childLoc)
		if err != nil {
			return nil, err
		}
		out = append(out, Info{
			Name:  e.Name,
			Inode: int(e.Inode),
			IsDir: childIno.FileType == inode.Dir,
			Size:  int64(childIno.FileSize),
		})
	}
	return out, nil
}

// Remove deletes the file or directory at path. A non-empty directory
// requires recursive to be true, or ErrNonRecursiveDelete is returned.
// Directory trees are torn down with an explicit work queue rather than
// recursive calls, so deep trees don't grow the Go call stack.
func (fs *FileSystem) Remove(path string, recursive bool) error {
	dirPath, name, err := splitPath(path)
	if err != nil {
		return err
	}

	parentIno, parentLoc, err := fs.resolvePath(dirPath)
	if err != nil {
		return err
	}

	w := newWriteBuffer()
	dh := newDirHandle(fs.disk, fs.alloc, w, &parentIno)

	targetInodeNum, err := dh.search(name)
	if err != nil {
		return err
	}
	targetLoc := fs.alloc.inodeBlock(targetInodeNum)
	targetIno, err := fs.readInode(targetLoc)
	if err != nil {
		return err
	}

	if targetIno.FileType == inode.Dir {
		empty, err := fs.isDirEmpty(targetIno)
		if err != nil {
			return err
		}
		if !empty {
			if !recursive {
				return ErrNonRecursiveDelete
			}
			if err := fs.deleteChildren(targetIno); err != nil {
				return err
			}
		}
	}

	if _, err := dh.remove(name); err != nil {
		return err
	}
	if err := fs.freeFileBlocks(targetLoc, targetIno); err != nil {
		return err
	}
	if err := fs.alloc.freeInode(targetInodeNum); err != nil {
		return err
	}

	if err := w.put(parentLoc, parentIno.Encode()); err != nil {
		return err
	}
	if err := fs.alloc.stageFreeBlocks(w); err != nil {
		return err
	}
	if err := fs.alloc.stageAllInodeMapBlocks(w); err != nil {
		return err
	}

	if err := fs.journal.Commit(w.fileBlocks()); err != nil {
		return wrapErr(Journal, err)
	}
	return nil
}

// pendingDelete is one entry of the explicit work queue deleteChildren walks;
// it replaces a recursive descent into subdirectories.
type pendingDelete struct {
	inodeNum int
	ino      inode.Inode
}

// isDirEmpty reports whether a directory inode has any live entries.
func (fs *FileSystem) isDirEmpty(ino inode.Inode) (bool, error) {
	dh := newDirHandle(fs.disk, fs.alloc, newWriteBuffer(), &ino)
	return dh.isEmpty()
}

// deleteChildren frees every block and inode reachable under a
// directory's live entries — but not the directory's own blocks or inode
// number, which the caller is responsible for freeing once the children
// are gone. Descent uses an explicit queue instead of function recursion,
// so arbitrarily deep trees never grow the call stack.
func (fs *FileSystem) deleteChildren(dirIno inode.Inode) error {
	dh := newDirHandle(fs.disk, fs.alloc, newWriteBuffer(), &dirIno)
	entries, err := dh.list()
	if err != nil {
		return err
	}

	queue := make([]pendingDelete, 0, len(entries))
	for _, e := range entries {
		childLoc := fs.alloc.inodeBlock(int(e.Inode))
		childIno, err := fs.readInode(childLoc)
		if err != nil {
			return err
		}
		queue = append(queue, pendingDelete{inodeNum: int(e.Inode), ino: childIno})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.ino.FileType == inode.Dir {
			childDh := newDirHandle(fs.disk, fs.alloc, newWriteBuffer(), &cur.ino)
			childEntries, err := childDh.list()
			if err != nil {
				return err
			}
			for _, e := range childEntries {
				grandchildLoc := fs.alloc.inodeBlock(int(e.Inode))
				grandchildIno, err := fs.readInode(grandchildLoc)
				if err != nil {
					return err
				}
				queue = append(queue, pendingDelete{inodeNum: int(e.Inode), ino: grandchildIno})
			}
		}

		loc := fs.alloc.inodeBlock(cur.inodeNum)
		if err := fs.freeFileBlocks(loc, cur.ino); err != nil {
			return err
		}
		if err := fs.alloc.freeInode(cur.inodeNum); err != nil {
			return err
		}
	}

	return nil
}

// freeFileBlocks returns every data and pointer block owned by ino
// (including its own inode block) to the free pool.
func (fs *FileSystem) freeFileBlocks(inodeLoc int, ino inode.Inode) error {
	if inodeLoc != 0 {
		if err := fs.alloc.freeBlock(inodeLoc); err != nil {
			return err
		}
	}

	total := ino.TotalBlocks()
	for b := 0; b < total; b++ {
		pos, err := inode.BlockIndex(b)
		if err != nil {
			return wrapErr(ByteOutOfRange, err)
		}

		switch pos.Kind {
		case inode.Direct:
			if ino.Direct[pos.L1] != 0 {
				if err := fs.alloc.freeBlock(int(ino.Direct[pos.L1])); err != nil {
					return err
				}
			}
		case inode.Indirect:
			if ino.Indirect != 0 {
				pb, err := readPointerBlock(fs.disk, int(ino.Indirect))
				if err != nil {
					return err
				}
				if pb[pos.L1] != 0 {
					if err := fs.alloc.freeBlock(int(pb[pos.L1])); err != nil {
						return err
					}
				}
			}
		default: // inode.DoubleIndirect
			if ino.DoubleIndirect != 0 {
				dind, err := readPointerBlock(fs.disk, int(ino.DoubleIndirect))
				if err != nil {
					return err
				}
				if dind[pos.L1] != 0 {
					ind, err := readPointerBlock(fs.disk, int(dind[pos.L1]))
					if err != nil {
						return err
					}
					if ind[pos.L2] != 0 {
						if err := fs.alloc.freeBlock(int(ind[pos.L2])); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	if ino.Indirect != 0 {
		if err := fs.alloc.freeBlock(int(ino.Indirect)); err != nil {
			return err
		}
	}
	if ino.DoubleIndirect != 0 {
		dind, err := readPointerBlock(fs.disk, int(ino.DoubleIndirect))
		if err == nil {
			for _, indLoc := range dind {
				if indLoc != 0 {
					_ = fs.alloc.freeBlock(int(indLoc))
				}
			}
		}
		if err := fs.alloc.freeBlock(int(ino.DoubleIndirect)); err != nil {
			return err
		}
	}

	return nil
}
