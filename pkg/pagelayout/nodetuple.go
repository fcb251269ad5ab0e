package pagelayout

import "encoding/binary"

// nodeTupleHeaderSize is seqid(4) + size(4) + label(8) + level(2).
const nodeTupleHeaderSize = 18

// NodeTuple is the decoded form of one node's on-page record.
type NodeTuple struct {
	// SeqID is the build-time sequence number. It is meaningless once the
	// node has a SlotID of its own and is kept only so BuildPages' edge
	// rewrite pass can resolve forward references; the graph engine's node
	// decoding ignores it.
	SeqID uint32
	Label uint64
	Level uint16
	// Neighbors[l] holds the real neighbor slots at level l, l in
	// [0, Level]. Encode pads each level's list to its configured cap
	// (MMax0 at level 0, M above) with InvalidSlot so every tuple for a
	// given (Level, config) is the same fixed size - required so an
	// in-place back-edge rewrite never needs to relocate the tuple.
	Neighbors [][]SlotID
	Vector    []byte
}

func levelCap(level, mMax0, m int) int {
	if level == 0 {
		return mMax0
	}
	return m
}

// FixedTupleSize returns the constant on-page size of a node at the given
// level under caps mMax0/m with a vectorLen-byte payload. A node's level
// never changes after creation, so this size is invariant for its lifetime.
func FixedTupleSize(level, mMax0, m, vectorLen int) int {
	size := nodeTupleHeaderSize
	for l := 0; l <= level; l++ {
		size += 2 + levelCap(l, mMax0, m)*SlotSize
	}
	return size + vectorLen
}

// EncodeNodeTuple writes t into dst, which must be exactly
// FixedTupleSize(int(t.Level), mMax0, m, len(t.Vector)) bytes.
func EncodeNodeTuple(dst []byte, t NodeTuple, mMax0, m int) {
	binary.LittleEndian.PutUint32(dst[0:4], t.SeqID)
	binary.LittleEndian.PutUint32(dst[4:8], uint32(len(dst)))
	binary.LittleEndian.PutUint64(dst[8:16], t.Label)
	binary.LittleEndian.PutUint16(dst[16:18], t.Level)

	off := nodeTupleHeaderSize
	for l := 0; l <= int(t.Level); l++ {
		cap := levelCap(l, mMax0, m)
		neighbors := t.Neighbors[l]
		binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(neighbors)))
		off += 2
		for i := 0; i < cap; i++ {
			if i < len(neighbors) {
				neighbors[i].Encode(dst[off : off+SlotSize])
			} else {
				InvalidSlot.Encode(dst[off : off+SlotSize])
			}
			off += SlotSize
		}
	}
	copy(dst[off:], t.Vector)
}

// DecodeNodeTuple reads a NodeTuple from src under caps mMax0/m. The
// returned Vector and Neighbors slices alias src.
func DecodeNodeTuple(src []byte, mMax0, m int) (NodeTuple, error) {
	if len(src) < nodeTupleHeaderSize {
		return NodeTuple{}, ErrShortBuffer
	}

	t := NodeTuple{
		SeqID: binary.LittleEndian.Uint32(src[0:4]),
		Label: binary.LittleEndian.Uint64(src[8:16]),
		Level: binary.LittleEndian.Uint16(src[16:18]),
	}
	size := binary.LittleEndian.Uint32(src[4:8])
	if int(size) > len(src) {
		return NodeTuple{}, ErrShortBuffer
	}

	off := nodeTupleHeaderSize
	t.Neighbors = make([][]SlotID, t.Level+1)
	for l := 0; l <= int(t.Level); l++ {
		cap := levelCap(l, mMax0, m)
		if off+2 > len(src) {
			return NodeTuple{}, ErrShortBuffer
		}
		count := binary.LittleEndian.Uint16(src[off : off+2])
		off += 2
		list := make([]SlotID, 0, count)
		for i := 0; i < cap; i++ {
			if uint16(i) < count {
				list = append(list, DecodeSlot(src[off:off+SlotSize]))
			}
			off += SlotSize
		}
		t.Neighbors[l] = list
	}
	t.Vector = src[off:size]
	return t, nil
}

// neighborSlotOffset returns the byte offset within an encoded tuple of
// neighbor index i at level l, given the tuple's level and caps - used by
// BuildPages to register a pending edge rewrite against the exact bytes
// AppendItem just wrote, without re-decoding the tuple.
func neighborSlotOffset(level int, l, i, mMax0, m int) int {
	off := nodeTupleHeaderSize
	for ll := 0; ll < l; ll++ {
		off += 2 + levelCap(ll, mMax0, m)*SlotSize
	}
	return off + 2 + i*SlotSize
}
