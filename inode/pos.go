package inode

import "fmt"

// Kind identifies which tier of the block tree a byte offset falls in.
type Kind int

const (
	Direct Kind = iota
	Indirect
	DoubleIndirect
)

const (
	// BlockSize is the size, in bytes, of one data or pointer block.
	BlockSize = 512
	// DirectCount is the number of direct block pointers an inode carries.
	DirectCount = 10
	// PointersPerBlock is how many uint32 block pointers fit in one
	// BlockSize pointer block (indirect or double-indirect).
	PointersPerBlock = BlockSize / 4 // 128

	indirectBlocks       = PointersPerBlock
	doubleIndirectBlocks = PointersPerBlock * PointersPerBlock

	// MaxFileSize is the number of bytes addressable by the direct +
	// single-indirect + double-indirect tree; valid byte offsets are
	// [0, MaxFileSize).
	MaxFileSize = (DirectCount + indirectBlocks + doubleIndirectBlocks) * BlockSize
)

// ErrByteOutOfRange is returned when a byte offset cannot be mapped to a
// tree coordinate: negative, or beyond MaxFileSize.
var ErrByteOutOfRange = fmt.Errorf("byte offset out of range [0, %d)", MaxFileSize)

// Pos is a coordinate into a file's block tree, the result of mapping a
// byte offset through GetPos.
//
//   - Direct:         data block is direct[L1], byte offset L2 within it.
//   - Indirect:       data block is referenced by indirect-block entry L1,
//     byte offset L2 within it.
//   - DoubleIndirect: data block is referenced by the L2'th entry of the
//     L1'th single-indirect block reachable through the double-indirect
//     block, byte offset L3 within it.
type Pos struct {
	Kind    Kind
	L1, L2  int
	L3      int
	Byte    int
}

// GetPos maps a byte offset within a file to its coordinate in the block
// tree. It is the single addressing function every tree traversal (seek,
// read, write, extend, destroy) must go through; boundary behavior here is
// load-bearing and must not be duplicated ad hoc elsewhere.
func GetPos(byteOffset int) (Pos, error) {
	if byteOffset < 0 || byteOffset >= MaxFileSize {
		return Pos{}, ErrByteOutOfRange
	}

	block := byteOffset / BlockSize
	off := byteOffset % BlockSize

	switch {
	case block < DirectCount:
		return Pos{Kind: Direct, L1: block, L2: off, Byte: byteOffset}, nil
	case block < DirectCount+indirectBlocks:
		return Pos{Kind: Indirect, L1: block - DirectCount, L2: off, Byte: byteOffset}, nil
	default:
		rel := block - DirectCount - indirectBlocks
		l1 := rel / PointersPerBlock
		l2 := rel % PointersPerBlock
		return Pos{Kind: DoubleIndirect, L1: l1, L2: l2, L3: off, Byte: byteOffset}, nil
	}
}

// BlockIndex returns the GetPos coordinate of the first byte of 0-based
// file block blockNum (i.e. GetPos(blockNum*BlockSize)). Used by callers
// that reason about "the next block position" rather than a raw byte.
func BlockIndex(blockNum int) (Pos, error) {
	return GetPos(blockNum * BlockSize)
}
