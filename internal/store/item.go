package store

import (
	"encoding/binary"
	"fmt"
)

// Item layout inside a segment, little-endian:
//
//	[magic 8B]  optional, constant, corruption check
//	flags  4B   opaque, returned verbatim
//	freq   1B   7-bit saturating access counter; high bit = tombstone
//	keyLen 1B
//	valLen 3B   24-bit
//	cas    8B   monotonic per segment, 0 = unset
//	key    keyLen B
//	value  valLen B
//
// Items never move within a segment; they are only tombstoned in place.
const (
	itemMagic      = uint64(0x5345474d41474943)
	itemMagicSize  = 8
	itemHeaderSize = 4 + 1 + 1 + 3 + 8

	offFlags  = 0
	offFreq   = 4
	offKeyLen = 5
	offValLen = 6
	offCas    = 9

	tombstoneBit = 0x80
	freqMask     = 0x7f

	maxKeyLen   = 255
	maxValueLen = 1<<24 - 1
)

// itemView is a decoded item. Key and Value alias the segment region and
// are only valid while the segment's epoch holds.
type itemView struct {
	flags uint32
	freq  byte
	tomb  bool
	cas   uint64
	key   []byte
	val   []byte
	size  int32
}

func itemSize(keyLen, valLen int, magic bool) int32 {
	n := itemHeaderSize + keyLen + valLen
	if magic {
		n += itemMagicSize
	}
	return int32(n)
}

func encodeItem(dst []byte, magic bool, flags uint32, cas uint64, key, val []byte) {
	if magic {
		binary.LittleEndian.PutUint64(dst, itemMagic)
		dst = dst[itemMagicSize:]
	}
	binary.LittleEndian.PutUint32(dst[offFlags:], flags)
	dst[offFreq] = 0
	dst[offKeyLen] = byte(len(key))
	putUint24(dst[offValLen:], uint32(len(val)))
	binary.LittleEndian.PutUint64(dst[offCas:], cas)
	copy(dst[itemHeaderSize:], key)
	copy(dst[itemHeaderSize+len(key):], val)
}

// readItem decodes the item at off. It panics on a magic mismatch and
// returns ok=false when the record does not fit inside limit.
func readItem(seg []byte, off uint32, limit int32, magic bool) (itemView, bool) {
	base := int32(off)
	hdr := int32(itemHeaderSize)
	if magic {
		hdr += itemMagicSize
	}
	if base+hdr > limit {
		return itemView{}, false
	}
	buf := seg[base:]
	if magic {
		if got := binary.LittleEndian.Uint64(buf); got != itemMagic {
			panic(fmt.Sprintf("item magic mismatch at offset %d: %#x", off, got))
		}
		buf = buf[itemMagicSize:]
	}
	keyLen := int32(buf[offKeyLen])
	valLen := int32(uint24(buf[offValLen:]))
	size := hdr + keyLen + valLen
	if base+size > limit {
		return itemView{}, false
	}
	return itemView{
		flags: binary.LittleEndian.Uint32(buf[offFlags:]),
		freq:  buf[offFreq] & freqMask,
		tomb:  buf[offFreq]&tombstoneBit != 0,
		cas:   binary.LittleEndian.Uint64(buf[offCas:]),
		key:   buf[itemHeaderSize : itemHeaderSize+keyLen],
		val:   buf[itemHeaderSize+keyLen : itemHeaderSize+keyLen+valLen],
		size:  size,
	}, true
}

func freqByteOffset(off uint32, magic bool) uint32 {
	if magic {
		return off + itemMagicSize + offFreq
	}
	return off + offFreq
}

// tombstoneItem marks the item deleted in place. Best-effort write; the
// caller serializes against reuse of the region.
func tombstoneItem(seg []byte, off uint32, magic bool) {
	seg[freqByteOffset(off, magic)] |= tombstoneBit
}

// bumpItemFreq saturates at 127. Best-effort: a lost increment under
// contention only skews retention scoring.
func bumpItemFreq(seg []byte, off uint32, magic bool) {
	i := freqByteOffset(off, magic)
	b := seg[i]
	if b&freqMask < freqMask {
		seg[i] = b + 1
	}
}

func putUint24(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

func uint24(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
}
