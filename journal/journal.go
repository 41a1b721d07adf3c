// Package journal implements the fixed-location redo log that makes llfs
// writes crash-atomic: every mutating operation stages its dirty blocks,
// then hands them to this package as a single transaction, written as a
// descriptor record, the payload blocks, and a commit record, in that
// order. A transaction with both a descriptor and a commit record present
// is replayed on recovery; anything less durable is discarded.
package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Curt-White/llfs/disk"
	"github.com/Curt-White/llfs/util"
)

// Fixed layout locations within the reserved region of the disk.
const (
	BlockSize = disk.BlockSize

	// Location is the fixed block holding the journal superblock.
	Location = 12
	// LogStart is the first block of the circular log region.
	LogStart = Location + 1
	// Length is the number of blocks making up the whole journal region:
	// the superblock at Location followed by Length-1 log blocks.
	Length = 20

	// MaxTransactionLen bounds how many payload blocks a single transaction
	// may carry; one descriptor and one commit record bracket the payload,
	// so MaxTransactionLen+2 blocks must fit inside Length-1.
	MaxTransactionLen = 10
)

const (
	recordDescriptor uint32 = 1
	recordCommit     uint32 = 2
)

// ErrTransactionTooLong is returned when a caller asks to commit more
// blocks than MaxTransactionLen.
var ErrTransactionTooLong = fmt.Errorf("journal: transaction exceeds max length %d", MaxTransactionLen)

// ErrBadRecord is returned when a block read back from the log does not
// carry the record type expected at that position.
var ErrBadRecord = fmt.Errorf("journal: bad record header")

// jindex maps a logical log-entry offset onto its physical block number
// within the circular log region. The modulus is Length-1 (not Length)
// because the first of the journal's Length blocks is the superblock,
// leaving Length-1 log slots, LogStart..LogStart+Length-2.
func jindex(v uint32) int {
	return int(v%(Length-1)) + LogStart
}

// FileBlock is one block staged for a transaction: a disk location plus
// the bytes to write there.
type FileBlock struct {
	BlockNum int
	Data     [BlockSize]byte
}

// Superblock is the journal's own bookkeeping record, stored at Location
// and kept in sync with the in-memory copy held by a Journal.
type Superblock struct {
	LogStart          uint32
	BlockStart        uint32
	ChecksumType      uint32
	BlockCount        uint32
	MaxTransactionLen uint32
	Checksum          uint32
	VolumeID          uuid.UUID
}

const (
	sbOffLogStart   = 0
	sbOffBlockStart = 4
	sbOffChecksumT  = 8
	sbOffBlockCount = 12
	sbOffMaxTxLen   = 16
	sbOffChecksum   = 20
	sbOffVolumeID   = 24
)

func (s Superblock) encode() [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint32(buf[sbOffLogStart:], s.LogStart)
	binary.LittleEndian.PutUint32(buf[sbOffBlockStart:], s.BlockStart)
	binary.LittleEndian.PutUint32(buf[sbOffChecksumT:], s.ChecksumType)
	binary.LittleEndian.PutUint32(buf[sbOffBlockCount:], s.BlockCount)
	binary.LittleEndian.PutUint32(buf[sbOffMaxTxLen:], s.MaxTransactionLen)
	binary.LittleEndian.PutUint32(buf[sbOffChecksum:], s.Checksum)
	copy(buf[sbOffVolumeID:], s.VolumeID[:])
	return buf
}

func decodeSuperblock(buf []byte) (Superblock, error) {
	if len(buf) < sbOffVolumeID+16 {
		return Superblock{}, fmt.Errorf("journal: superblock block too short")
	}
	var s Superblock
	s.LogStart = binary.LittleEndian.Uint32(buf[sbOffLogStart:])
	s.BlockStart = binary.LittleEndian.Uint32(buf[sbOffBlockStart:])
	s.ChecksumType = binary.LittleEndian.Uint32(buf[sbOffChecksumT:])
	s.BlockCount = binary.LittleEndian.Uint32(buf[sbOffBlockCount:])
	s.MaxTransactionLen = binary.LittleEndian.Uint32(buf[sbOffMaxTxLen:])
	s.Checksum = binary.LittleEndian.Uint32(buf[sbOffChecksum:])
	copy(s.VolumeID[:], buf[sbOffVolumeID:sbOffVolumeID+16])
	return s, nil
}

type descriptorRecord struct {
	numBlocks uint32
	blocks    [MaxTransactionLen]uint32
}

const (
	descOffType      = 0
	descOffSeq       = 4
	descOffNumBlocks = 8
	descOffBlocks    = 12
)

func (d descriptorRecord) encode() [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint32(buf[descOffType:], recordDescriptor)
	binary.LittleEndian.PutUint32(buf[descOffSeq:], 0)
	binary.LittleEndian.PutUint32(buf[descOffNumBlocks:], d.numBlocks)
	for i, b := range d.blocks {
		binary.LittleEndian.PutUint32(buf[descOffBlocks+i*4:], b)
	}
	return buf
}

func decodeDescriptor(buf []byte) (descriptorRecord, error) {
	if binary.LittleEndian.Uint32(buf[descOffType:]) != recordDescriptor {
		return descriptorRecord{}, ErrBadRecord
	}
	var d descriptorRecord
	d.numBlocks = binary.LittleEndian.Uint32(buf[descOffNumBlocks:])
	for i := range d.blocks {
		d.blocks[i] = binary.LittleEndian.Uint32(buf[descOffBlocks+i*4:])
	}
	return d, nil
}

const (
	commitOffType     = 0
	commitOffChecksum = 4
	commitOffTime     = 8
)

func encodeCommit(checksum uint32) [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint32(buf[commitOffType:], recordCommit)
	binary.LittleEndian.PutUint32(buf[commitOffChecksum:], checksum)
	return buf
}

// transactionChecksum computes the CRC32 of a transaction's descriptor and
// payload bytes. It is stored in the commit record but, per the journal's
// recovery semantics, never checked back on replay — a corrupt transaction
// either has a commit record or it doesn't, and that's the only signal
// replayPending acts on.
func transactionChecksum(descBuf [BlockSize]byte, blocks []FileBlock) uint32 {
	h := crc32.NewIEEE()
	h.Write(descBuf[:])
	for _, b := range blocks {
		h.Write(b.Data[:])
	}
	return h.Sum32()
}

func isCommit(buf []byte) bool {
	return binary.LittleEndian.Uint32(buf[commitOffType:]) == recordCommit
}

// Journal drives the circular log region of a mounted disk.
type Journal struct {
	d   *disk.Disk
	sb  Superblock
	log *logrus.Entry
}

// Init formats a fresh journal: writes an empty superblock and zeroes the
// first log slot, matching llfs_init's format-time behavior.
func Init(d *disk.Disk, log *logrus.Entry) (*Journal, error) {
	sb := Superblock{
		LogStart:          0,
		BlockStart:        Location,
		ChecksumType:      0, // CRC32, unused: checksum validation is a non-goal
		BlockCount:        Length,
		MaxTransactionLen: MaxTransactionLen,
		Checksum:          0,
		VolumeID:          uuid.New(),
	}

	buf := sb.encode()
	if err := d.WriteBlock(Location, buf[:]); err != nil {
		return nil, err
	}

	var zero [BlockSize]byte
	if err := d.WriteBlock(jindex(0), zero[:]); err != nil {
		return nil, err
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.WithField("volume_id", sb.VolumeID).Info("journal initialized")
	return &Journal{d: d, sb: sb, log: log}, nil
}

// Load reads the journal superblock from a disk that was previously
// formatted, without performing recovery.
func Load(d *disk.Disk, log *logrus.Entry) (*Journal, error) {
	var buf [BlockSize]byte
	if err := d.ReadBlock(Location, buf[:]); err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(buf[:])
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Journal{d: d, sb: sb, log: log}, nil
}

// Commit writes blocks as a single transaction: descriptor, then payload
// blocks, then a commit record, followed immediately by replayPending to
// replay it into place and advance the log. A transaction never sits
// undriven in the log between commit and writeback.
func (j *Journal) Commit(blocks []FileBlock) error {
	if len(blocks) > MaxTransactionLen {
		return ErrTransactionTooLong
	}

	desc := descriptorRecord{numBlocks: uint32(len(blocks))}
	for i, b := range blocks {
		desc.blocks[i] = uint32(b.BlockNum)
	}

	descBuf := desc.encode()
	if err := j.d.WriteBlock(jindex(j.sb.LogStart), descBuf[:]); err != nil {
		return err
	}

	for i, b := range blocks {
		data := b.Data
		if err := j.d.WriteBlock(jindex(j.sb.LogStart+uint32(i)+1), data[:]); err != nil {
			return err
		}
	}

	checksum := transactionChecksum(descBuf, blocks)
	commitBuf := encodeCommit(checksum)
	if err := j.d.WriteBlock(jindex(j.sb.LogStart+uint32(len(blocks))+1), commitBuf[:]); err != nil {
		return err
	}

	return j.replayPending()
}

// replayPending reads the descriptor at the current log head, validates
// it has a matching commit record, and if so writes every payload block
// to its real destination, then advances and persists log_start. If the
// descriptor is missing or has no commit yet, the transaction never
// became durable and replayPending is a no-op — not an error, per
// recovery semantics.
func (j *Journal) replayPending() error {
	var buf [BlockSize]byte
	if err := j.d.ReadBlock(jindex(j.sb.LogStart), buf[:]); err != nil {
		return err
	}

	desc, err := decodeDescriptor(buf[:])
	if err != nil {
		return nil
	}

	if err := j.d.ReadBlock(jindex(j.sb.LogStart+desc.numBlocks+1), buf[:]); err != nil {
		return err
	}
	if !isCommit(buf[:]) {
		if j.log != nil && j.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			j.log.WithField("block", jindex(j.sb.LogStart+desc.numBlocks+1)).
				Debug("dangling descriptor with no commit record, dropping:\n" +
					util.DumpByteSlice(buf[:32], 16, true, true, false, nil))
		}
		return nil
	}

	payload := make([]FileBlock, desc.numBlocks)
	for i := uint32(0); i < desc.numBlocks; i++ {
		var data [BlockSize]byte
		if err := j.d.ReadBlock(jindex(j.sb.LogStart+i+1), data[:]); err != nil {
			return err
		}
		payload[i] = FileBlock{BlockNum: int(desc.blocks[i]), Data: data}
	}

	for _, fb := range payload {
		data := fb.Data
		if err := j.d.WriteBlock(fb.BlockNum, data[:]); err != nil {
			return err
		}
	}

	// Zero what becomes the new head before moving LogStart onto it, so the
	// next replayPending call reads a clean non-descriptor block there
	// instead of whatever stale bytes the log previously held at that slot.
	var zero [BlockSize]byte
	if err := j.d.WriteBlock(jindex(j.sb.LogStart+desc.numBlocks+2), zero[:]); err != nil {
		return err
	}

	j.sb.LogStart = (j.sb.LogStart + desc.numBlocks + 2) % (Length - 1)
	sbBuf := j.sb.encode()
	return j.d.WriteBlock(Location, sbBuf[:])
}

// Recover replays any transaction left pending in the log after an
// unclean shutdown. A descriptor without a commit record is intentionally
// dropped rather than surfaced as an error: the write it describes never
// became durable, so there's nothing to roll forward.
func (j *Journal) Recover() error {
	var buf [BlockSize]byte
	if err := j.d.ReadBlock(Location, buf[:]); err != nil {
		return err
	}
	sb, err := decodeSuperblock(buf[:])
	if err != nil {
		return err
	}
	j.sb = sb

	// replayPending already treats a missing descriptor or a descriptor
	// without a matching commit as a no-op (intent never became durable);
	// any error it does return here is a genuine disk failure and must
	// propagate rather than be swallowed.
	if err := j.replayPending(); err != nil {
		return err
	}
	j.log.WithField("volume_id", sb.VolumeID).Debug("journal recovery complete")
	return nil
}

// VolumeID returns the stable identifier stamped into the journal
// superblock at format time.
func (j *Journal) VolumeID() uuid.UUID {
	return j.sb.VolumeID
}
