//go:build !windows

package disk

import (
	"golang.org/x/sys/unix"
)

// sync flushes OS write buffers for the backing storage to stable media.
func (d *Disk) sync() error {
	f, err := d.storage.Sys()
	if err != nil {
		// Not backed by a real *os.File (e.g. a test stub); nothing to flush.
		return nil
	}
	return unix.Fsync(int(f.Fd()))
}
