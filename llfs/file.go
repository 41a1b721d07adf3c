package llfs

import (
	"io"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/inode"
)

// File is an open handle onto a Flat file's byte stream. It implements
// io.Reader, io.Writer, io.Seeker and io.Closer; every Write commits its
// own journal transaction, so a File never holds dirty state past a
// single call.
type File struct {
	fs       *FileSystem
	inodeLoc int
	ino      inode.Inode
	pos      int
}

var (
	_ io.Reader = (*File)(nil)
	_ io.Writer = (*File)(nil)
	_ io.Seeker = (*File)(nil)
	_ io.Closer = (*File)(nil)
)

// Size returns the file's current byte length.
func (f *File) Size() int64 {
	return int64(f.ino.FileSize)
}

// Read implements io.Reader. It returns io.EOF only when the current
// position is already at or past the end of the file and so nothing at
// all could be read, never merely because fewer bytes were available
// than requested — matching io.Reader's contract exactly.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	fileSize := int(f.ino.FileSize)
	if f.pos >= fileSize {
		return 0, io.EOF
	}

	bt := &blockTree{d: f.fs.disk, a: f.fs.alloc, w: newWriteBuffer(), ino: &f.ino}
	n := 0
	for n < len(p) && f.pos < fileSize {
		blockIndex := f.pos / disk.BlockSize
		offset := f.pos % disk.BlockSize

		blockNum, err := bt.resolve(blockIndex)
		if err != nil {
			return n, err
		}
		if blockNum == 0 {
			return n, wrapErr(Disk, pathErr(FileNotAllocated, ""))
		}

		var raw [disk.BlockSize]byte
		if err := f.fs.disk.ReadBlock(blockNum, raw[:]); err != nil {
			return n, wrapErr(Disk, err)
		}

		avail := disk.BlockSize - offset
		if remain := fileSize - f.pos; remain < avail {
			avail = remain
		}
		if want := len(p) - n; want < avail {
			avail = want
		}

		copy(p[n:], raw[offset:offset+avail])
		n += avail
		f.pos += avail
	}

	return n, nil
}

// maxWriteSize bounds how many bytes Write stages and commits as a single
// journal transaction. Each transaction's payload is the touched data
// blocks plus the inode block and the free-block bitmap (plus any newly
// allocated index blocks), all staged in the one journal.MaxTransactionLen
// write buffer, so a write spanning more than a handful of data blocks must
// be split across several transactions to stay under that cap.
const maxWriteSize = 2048

// Write implements io.Writer. Bytes are written starting at the current
// position; writing past the current end of file extends it one block at
// a time. A request longer than maxWriteSize is split into maxWriteSize
// slices, each committed as its own journal transaction, so arbitrarily
// large writes succeed regardless of journal.MaxTransactionLen. Reaching
// the filesystem's maximum file size mid-write returns the bytes written
// so far together with ErrFileFull, and any error from a slice's write
// loop is returned rather than discarded, along with the bytes committed
// by slices before it.
func (f *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	for total < len(p) {
		sliceLen := maxWriteSize
		if remain := len(p) - total; remain < sliceLen {
			sliceLen = remain
		}

		n, err := f.writeSlice(p[total : total+sliceLen])
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// writeSlice stages and commits at most one journal transaction's worth of
// bytes (up to maxWriteSize, well under the block count a single
// transaction can hold).
func (f *File) writeSlice(p []byte) (int, error) {
	w := newWriteBuffer()
	bt := &blockTree{d: f.fs.disk, a: f.fs.alloc, w: w, ino: &f.ino}

	n := 0
	var werr error
	for n < len(p) {
		if int(f.ino.FileSize) >= inode.MaxFileSize {
			werr = ErrFileFull
			break
		}

		blockIndex := f.pos / disk.BlockSize
		offset := f.pos % disk.BlockSize
		isNewBlock := f.pos == int(f.ino.FileSize) && offset == 0

		blockNum, err := bt.resolve(blockIndex)
		if err != nil {
			return n, err
		}
		if blockNum == 0 {
			blockNum, err = bt.allocate(blockIndex)
			if err != nil {
				return n, err
			}
		}

		var raw [disk.BlockSize]byte
		if !isNewBlock {
			if staged, ok := w.blocks[blockNum]; ok {
				raw = staged
			} else if err := f.fs.disk.ReadBlock(blockNum, raw[:]); err != nil {
				return n, wrapErr(Disk, err)
			}
		}

		room := disk.BlockSize - offset
		want := len(p) - n
		if want < room {
			room = want
		}
		copy(raw[offset:], p[n:n+room])
		if err := w.put(blockNum, raw); err != nil {
			return n, err
		}

		n += room
		f.pos += room
		if f.pos > int(f.ino.FileSize) {
			f.ino.FileSize = uint32(f.pos)
		}
	}

	if n > 0 {
		if err := w.put(f.inodeLoc, f.ino.Encode()); err != nil {
			return n, err
		}
		if err := f.fs.alloc.stageFreeBlocks(w); err != nil {
			return n, err
		}
		if err := f.fs.journal.Commit(w.fileBlocks()); err != nil {
			return n, wrapErr(Journal, err)
		}
	}

	return n, werr
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(f.pos) + offset
	case io.SeekEnd:
		target = int64(f.ino.FileSize) + offset
	default:
		return 0, newErr(InvalidOption)
	}

	if target < 0 || target > int64(inode.MaxFileSize) {
		return 0, ErrByteOutOfRange
	}

	f.pos = int(target)
	return target, nil
}

// Close flushes nothing further (every Write already committed its own
// transaction) and releases the handle.
func (f *File) Close() error {
	return nil
}
