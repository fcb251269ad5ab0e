package pagelayout

import "encoding/binary"

// SlotSize is the on-page width of a slot identifier: a 4-byte block number
// followed by a 2-byte item index, written as two plain little-endian
// integers rather than a Go struct so the layout never depends on the
// compiler's alignment choices.
const SlotSize = 6

// InvalidBlock marks a block number field as absent (empty index, or a
// neighbor slot with fewer than the level's configured connections).
const InvalidBlock uint32 = 0xFFFFFFFF

const invalidOffset uint16 = 0xFFFF

// SlotID addresses a node tuple by physical location: the data page holding
// it and its item index within that page's item array. Once a node is
// placed this is its permanent identity. Before placement a node is known
// only by its build-time sequence number, which BuildPages tracks apart from
// the tuple bytes (an unresolved neighbor entry holds InvalidSlot until the
// edge rewrite pass writes the real SlotID).
type SlotID struct {
	Block  uint32
	Offset uint16
}

// InvalidSlot is the empty/absent slot value: an empty index's entry point,
// or a neighbor list entry past the node's actual connection count.
var InvalidSlot = SlotID{Block: InvalidBlock, Offset: invalidOffset}

// IsValid reports whether s addresses a real node rather than standing in
// for "no such neighbor"/"index is empty".
func (s SlotID) IsValid() bool {
	return s.Block != InvalidBlock
}

// Encode writes s into dst[0:SlotSize].
func (s SlotID) Encode(dst []byte) {
	_ = dst[:SlotSize]
	binary.LittleEndian.PutUint32(dst[0:4], s.Block)
	binary.LittleEndian.PutUint16(dst[4:6], s.Offset)
}

// DecodeSlot reads a SlotID from src[0:SlotSize].
func DecodeSlot(src []byte) SlotID {
	_ = src[:SlotSize]
	return SlotID{
		Block:  binary.LittleEndian.Uint32(src[0:4]),
		Offset: binary.LittleEndian.Uint16(src[4:6]),
	}
}
