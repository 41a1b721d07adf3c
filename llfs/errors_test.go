package llfs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	a := pathErr(FileNotFound, "/a")
	b := pathErr(FileNotFound, "/different/path")
	require.True(t, errors.Is(a, b))

	c := pathErr(BadPath, "/a")
	require.False(t, errors.Is(a, c))
}

func TestErrorIsMatchesSentinels(t *testing.T) {
	err := pathErr(FileAlreadyExists, "/x")
	require.ErrorIs(t, err, ErrFileAlreadyExists)
}

func TestErrorMessageIncludesPathAndWrapped(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := &Error{Kind: Disk, Path: "/p", Err: inner}
	msg := err.Error()
	require.Contains(t, msg, "disk I/O error")
	require.Contains(t, msg, "/p")
	require.Contains(t, msg, "boom")
}

func TestErrorUnwrapReturnsWrapped(t *testing.T) {
	inner := fmt.Errorf("underlying")
	err := wrapErr(Journal, inner)
	require.Equal(t, inner, errors.Unwrap(err))
	require.True(t, errors.Is(err, inner))
}

func TestErrorUnknownKindHasFallbackMessage(t *testing.T) {
	err := &Error{Kind: Kind(9999)}
	require.Equal(t, "unknown error", err.Error())
}
