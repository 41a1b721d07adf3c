package llfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitPathBasic(t *testing.T) {
	dir, name, err := splitPath("/a/b/c")
	require.NoError(t, err)
	require.Equal(t, "/a/b", dir)
	require.Equal(t, "c", name)
}

func TestSplitPathTopLevel(t *testing.T) {
	dir, name, err := splitPath("/file.txt")
	require.NoError(t, err)
	require.Equal(t, "/", dir)
	require.Equal(t, "file.txt", name)
}

func TestSplitPathTrailingSlash(t *testing.T) {
	dir, name, err := splitPath("/a/b/")
	require.NoError(t, err)
	require.Equal(t, "/a", dir)
	require.Equal(t, "b", name)
}

func TestSplitPathRejectsRelative(t *testing.T) {
	_, _, err := splitPath("a/b")
	require.ErrorIs(t, err, ErrBadPath)
}

func TestSplitPathRejectsRoot(t *testing.T) {
	_, _, err := splitPath("/")
	require.ErrorIs(t, err, ErrBadPath)
}

func TestSplitPathRejectsOverlongName(t *testing.T) {
	_, _, err := splitPath("/" + strings.Repeat("x", nameLen+1))
	require.ErrorIs(t, err, ErrBadPath)
}

func TestSplitComponentsRoot(t *testing.T) {
	parts, err := splitComponents("/")
	require.NoError(t, err)
	require.Empty(t, parts)
}

func TestSplitComponentsNested(t *testing.T) {
	parts, err := splitComponents("/a/b/c")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, parts)
}

func TestSplitComponentsRejectsRelative(t *testing.T) {
	_, err := splitComponents("a/b")
	require.ErrorIs(t, err, ErrBadPath)
}
