package inode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPosDirect(t *testing.T) {
	pos, err := GetPos(0)
	require.NoError(t, err)
	require.Equal(t, Direct, pos.Kind)
	require.Equal(t, 0, pos.L1)
	require.Equal(t, 0, pos.L2)

	pos, err = GetPos(9*BlockSize + 10)
	require.NoError(t, err)
	require.Equal(t, Direct, pos.Kind)
	require.Equal(t, 9, pos.L1)
	require.Equal(t, 10, pos.L2)
}

func TestGetPosIndirect(t *testing.T) {
	pos, err := GetPos(DirectCount * BlockSize)
	require.NoError(t, err)
	require.Equal(t, Indirect, pos.Kind)
	require.Equal(t, 0, pos.L1)

	pos, err = GetPos((DirectCount+indirectBlocks-1)*BlockSize + BlockSize - 1)
	require.NoError(t, err)
	require.Equal(t, Indirect, pos.Kind)
	require.Equal(t, indirectBlocks-1, pos.L1)
	require.Equal(t, BlockSize-1, pos.L2)
}

func TestGetPosDoubleIndirect(t *testing.T) {
	start := (DirectCount + indirectBlocks) * BlockSize
	pos, err := GetPos(start)
	require.NoError(t, err)
	require.Equal(t, DoubleIndirect, pos.Kind)
	require.Equal(t, 0, pos.L1)
	require.Equal(t, 0, pos.L2)

	pos, err = GetPos(start + PointersPerBlock*BlockSize + 5)
	require.NoError(t, err)
	require.Equal(t, DoubleIndirect, pos.Kind)
	require.Equal(t, 1, pos.L1)
	require.Equal(t, 0, pos.L2)
	require.Equal(t, 5, pos.L3)
}

func TestGetPosOutOfRange(t *testing.T) {
	_, err := GetPos(-1)
	require.ErrorIs(t, err, ErrByteOutOfRange)

	_, err = GetPos(MaxFileSize)
	require.ErrorIs(t, err, ErrByteOutOfRange)
}

func TestMaxFileSize(t *testing.T) {
	require.Equal(t, 8459264, MaxFileSize)
}
