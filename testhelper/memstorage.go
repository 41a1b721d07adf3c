// Package testhelper provides test doubles shared across the llfs packages'
// test suites.
package testhelper

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/Curt-White/llfs/backend"
)

// MemStorage is an in-memory backend.Storage, used to exercise disk and
// journal logic without creating a real file on the host filesystem.
type MemStorage struct {
	Data []byte
	pos  int64
}

// NewMemStorage returns a zero-filled in-memory backend of the given size.
func NewMemStorage(size int) *MemStorage {
	return &MemStorage{Data: make([]byte, size)}
}

var _ backend.Storage = (*MemStorage)(nil)

func (m *MemStorage) Stat() (fs.FileInfo, error) {
	return nil, fmt.Errorf("stat not supported on MemStorage")
}

func (m *MemStorage) Read(b []byte) (int, error) {
	n, err := m.ReadAt(b, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *MemStorage) Close() error {
	return nil
}

func (m *MemStorage) ReadAt(b []byte, offset int64) (int, error) {
	if offset < 0 || offset >= int64(len(m.Data)) {
		return 0, fmt.Errorf("offset %d out of range", offset)
	}
	n := copy(b, m.Data[offset:])
	return n, nil
}

func (m *MemStorage) WriteAt(b []byte, offset int64) (int, error) {
	if offset < 0 || offset+int64(len(b)) > int64(len(m.Data)) {
		return 0, fmt.Errorf("write at %d, len %d out of range", offset, len(b))
	}
	n := copy(m.Data[offset:], b)
	return n, nil
}

func (m *MemStorage) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case os.SEEK_SET:
		pos = offset
	case os.SEEK_CUR:
		pos = m.pos + offset
	case os.SEEK_END:
		pos = int64(len(m.Data)) + offset
	}
	if pos < 0 {
		return m.pos, fmt.Errorf("negative seek position")
	}
	m.pos = pos
	return pos, nil
}

func (m *MemStorage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (m *MemStorage) Writable() (backend.WritableFile, error) {
	return m, nil
}
