package llfs

import "fmt"

// Kind discriminates the taxonomy of errors llfs can return, mirroring the
// llfs_error codes of the system this package reimplements: callers that
// need to branch on failure mode should use errors.As against *Error and
// switch on Kind rather than string-matching Error().
type Kind int

const (
	_ Kind = iota
	MemoryAlloc
	Disk
	DiskFull
	EmptyFile
	BufferDuplicate
	InvalidOption
	BadPath
	ByteOutOfRange
	EndOfFile
	FileFull
	FileNotFound
	NonRecursiveDelete
	InodeFree
	ExceededMaxBuffer
	FileNotAllocated
	FileAlreadyExists
	Journal
	JournalBadHeader
)

var kindText = map[Kind]string{
	MemoryAlloc:        "memory allocation failed",
	Disk:               "disk I/O error",
	DiskFull:           "disk is full",
	EmptyFile:          "file is empty",
	BufferDuplicate:    "block already staged in write buffer",
	InvalidOption:      "invalid option",
	BadPath:            "malformed path",
	ByteOutOfRange:     "byte offset out of range",
	EndOfFile:          "end of file",
	FileFull:           "file has reached its maximum size",
	FileNotFound:       "file not found",
	NonRecursiveDelete: "refusing non-recursive delete of a non-empty directory",
	InodeFree:          "inode cannot be freed",
	ExceededMaxBuffer:  "write buffer exceeded its maximum transaction length",
	FileNotAllocated:   "file has no allocated blocks",
	FileAlreadyExists:  "file already exists",
	Journal:            "journal error",
	JournalBadHeader:   "journal record had an unexpected header",
}

// Error is the error type every llfs operation returns on failure.
type Error struct {
	Kind Kind
	// Path is set when the error concerns a specific path, empty otherwise.
	Path string
	// Err wraps an underlying error (e.g. from the disk or journal layer),
	// nil when Kind alone is sufficient to describe the failure.
	Err error
}

func (e *Error) Error() string {
	msg, ok := kindText[e.Kind]
	if !ok {
		msg = "unknown error"
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(kind Kind) *Error {
	return &Error{Kind: kind}
}

func pathErr(kind Kind, path string) *Error {
	return &Error{Kind: kind, Path: path}
}

func wrapErr(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether target is an *Error carrying the same Kind, so
// errors.Is(err, llfs.ErrFileNotFound) style checks work against sentinels
// below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons against operation results.
var (
	ErrFileNotFound       = newErr(FileNotFound)
	ErrFileAlreadyExists  = newErr(FileAlreadyExists)
	ErrBadPath            = newErr(BadPath)
	ErrDiskFull           = newErr(DiskFull)
	ErrFileFull           = newErr(FileFull)
	ErrEmptyFile          = newErr(EmptyFile)
	ErrNonRecursiveDelete = newErr(NonRecursiveDelete)
	ErrByteOutOfRange     = newErr(ByteOutOfRange)
	ErrExceededMaxBuffer  = newErr(ExceededMaxBuffer)
)
