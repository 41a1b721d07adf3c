// Package disk implements the fixed-size, block-addressable virtual disk
// that the llfs filesystem core is built on.
//
// A Disk is nothing more than BlockCount fixed BlockSize blocks backed by a
// single host file. It knows nothing about inodes, directories, or the
// journal — those live in the sibling packages. Treat it the same way the
// rest of llfs treats the host OS: an external, already-solved collaborator.
package disk

import (
	"fmt"
	"os"
	"sync"

	"github.com/Curt-White/llfs/backend"
	"github.com/Curt-White/llfs/backend/file"
	"github.com/sirupsen/logrus"
)

const (
	// BlockSize is the size, in bytes, of every addressable block.
	BlockSize = 512
	// BlockCount is the fixed number of blocks on an llfs disk image.
	BlockCount = 4096
	// Size is the total size, in bytes, of a formatted disk image.
	Size = BlockSize * BlockCount
)

var (
	ErrBlockOutOfBounds  = fmt.Errorf("block number out of range [0, %d)", BlockCount)
	ErrDiskAlreadyLoaded = fmt.Errorf("a disk is already mounted")
	ErrDiskNotLoaded     = fmt.Errorf("no disk is mounted")
)

// only one Disk may be mounted at a time in this process.
var (
	mountMu     sync.Mutex
	mountedName string
)

// Disk is a reference to a single mounted llfs disk image.
type Disk struct {
	name    string
	storage backend.Storage
	log     *logrus.Entry
}

// Mount opens (or creates, if absent) the disk image at name and returns a
// handle for block-level I/O. Only one Disk may be mounted at a time within
// this process; a second call before Unmount fails with ErrDiskAlreadyLoaded.
func Mount(name string) (*Disk, error) {
	mountMu.Lock()
	defer mountMu.Unlock()

	if mountedName != "" {
		return nil, ErrDiskAlreadyLoaded
	}

	var (
		storage backend.Storage
		err     error
	)
	if _, statErr := os.Stat(name); os.IsNotExist(statErr) {
		storage, err = file.CreateFromPath(name, Size)
	} else {
		storage, err = file.OpenFromPath(name, false)
	}
	if err != nil {
		return nil, err
	}

	mountedName = name
	d := &Disk{
		name:    name,
		storage: storage,
		log:     logrus.WithField("disk", name),
	}
	d.log.Debug("disk mounted")
	return d, nil
}

// FromStorage wraps an already-open backend.Storage as a Disk, bypassing the
// single-mount bookkeeping Mount performs. Used by tests in sibling packages
// that want to drive a Disk over an in-memory backend.Storage rather than a
// real file.
func FromStorage(storage backend.Storage) *Disk {
	return &Disk{storage: storage, log: logrus.NewEntry(logrus.StandardLogger())}
}

// Unmount releases the disk, flushing any OS-buffered writes to stable media
// before returning.
func (d *Disk) Unmount() error {
	mountMu.Lock()
	defer mountMu.Unlock()

	if err := d.sync(); err != nil {
		return err
	}
	if err := d.storage.Close(); err != nil {
		return err
	}
	d.log.Debug("disk unmounted")
	mountedName = ""
	return nil
}

// ReadBlock reads the BlockSize bytes of block n into buf, which must be at
// least BlockSize bytes long.
func (d *Disk) ReadBlock(n int, buf []byte) error {
	if n < 0 || n >= BlockCount {
		return ErrBlockOutOfBounds
	}
	if len(buf) < BlockSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", BlockSize, len(buf))
	}
	_, err := d.storage.ReadAt(buf[:BlockSize], int64(n)*BlockSize)
	return err
}

// WriteBlock writes the first BlockSize bytes of buf to block n.
func (d *Disk) WriteBlock(n int, buf []byte) error {
	if n < 0 || n >= BlockCount {
		return ErrBlockOutOfBounds
	}
	if len(buf) < BlockSize {
		return fmt.Errorf("buffer too small: need %d bytes, got %d", BlockSize, len(buf))
	}
	w, err := d.storage.Writable()
	if err != nil {
		return err
	}
	_, err = w.WriteAt(buf[:BlockSize], int64(n)*BlockSize)
	return err
}
