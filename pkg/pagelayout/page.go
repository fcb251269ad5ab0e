package pagelayout

import "encoding/binary"

// Data page layout:
//
//	[0]    page type (1 byte, pager.PageType - this package doesn't import
//	       pkg/pager to stay dependency-free, so the caller stamps it)
//	[1]    reserved
//	[2:4]  item count (u16)
//	[4:6]  free end: offset of the first byte currently in use by a tuple,
//	       i.e. the low-water mark the tuple heap has grown down to
//	[6:8]  reserved
//	[8:8+4*itemCount] item array, growing up: each item is {offset u16,
//	       length u16} into the tuple heap
//	...free space...
//	[freeEnd:pageSize-specialAreaSize] tuple heap, growing down
//	[pageSize-12:pageSize] special area: first_slot(u32) last_slot(u32) next_block(u32)
const (
	PageHeaderSize  = 8
	SpecialAreaSize = 12
	itemEntrySize   = 4

	pageOffItemCount = 2
	pageOffFreeEnd   = 4
)

// InitDataPage resets buf to an empty data page of pageType, with no items
// and next_block/first_slot/last_slot all absent.
func InitDataPage(buf []byte, pageType byte) {
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = pageType
	setItemCount(buf, 0)
	setFreeEnd(buf, uint16(len(buf)-SpecialAreaSize))
	setSpecialU32(buf, specialOffFirstSlot, InvalidBlock)
	setSpecialU32(buf, specialOffLastSlot, InvalidBlock)
	setSpecialU32(buf, specialOffNextBlock, InvalidBlock)
}

func ItemCount(buf []byte) int {
	return int(binary.LittleEndian.Uint16(buf[pageOffItemCount:]))
}

func setItemCount(buf []byte, n int) {
	binary.LittleEndian.PutUint16(buf[pageOffItemCount:], uint16(n))
}

func freeEnd(buf []byte) int {
	return int(binary.LittleEndian.Uint16(buf[pageOffFreeEnd:]))
}

func setFreeEnd(buf []byte, v uint16) {
	binary.LittleEndian.PutUint16(buf[pageOffFreeEnd:], v)
}

// FreeSpace returns how many bytes remain available for a new item (its
// tuple bytes plus its 4-byte item pointer).
func FreeSpace(buf []byte) int {
	itemsEnd := PageHeaderSize + ItemCount(buf)*itemEntrySize
	return freeEnd(buf) - itemsEnd
}

// Fits reports whether a tuple of tupleLen bytes can still be placed on buf.
func Fits(buf []byte, tupleLen int) bool {
	return FreeSpace(buf) >= tupleLen+itemEntrySize
}

// AppendItem places tupleBytes on the tuple heap and adds a new item
// pointer for it, returning the item index (the Offset half of this node's
// SlotID) and the aliased page slice the tuple now lives at, so callers can
// mutate it in place later (back-edge maintenance) without re-appending.
func AppendItem(buf []byte, tupleBytes []byte) (uint16, []byte, error) {
	if !Fits(buf, len(tupleBytes)) {
		return 0, nil, ErrPageFull
	}

	newFreeEnd := freeEnd(buf) - len(tupleBytes)
	copy(buf[newFreeEnd:newFreeEnd+len(tupleBytes)], tupleBytes)
	setFreeEnd(buf, uint16(newFreeEnd))

	idx := ItemCount(buf)
	itemOff := PageHeaderSize + idx*itemEntrySize
	binary.LittleEndian.PutUint16(buf[itemOff:], uint16(newFreeEnd))
	binary.LittleEndian.PutUint16(buf[itemOff+2:], uint16(len(tupleBytes)))
	setItemCount(buf, idx+1)

	return uint16(idx), buf[newFreeEnd : newFreeEnd+len(tupleBytes)], nil
}

// ReadItem returns the aliased tuple bytes for item index idx.
func ReadItem(buf []byte, idx uint16) ([]byte, error) {
	if int(idx) >= ItemCount(buf) {
		return nil, ErrItemNotFound
	}
	itemOff := PageHeaderSize + int(idx)*itemEntrySize
	off := binary.LittleEndian.Uint16(buf[itemOff:])
	length := binary.LittleEndian.Uint16(buf[itemOff+2:])
	return buf[off : off+length], nil
}

const (
	specialOffFirstSlot  = 0
	specialOffLastSlot   = 4
	specialOffNextBlock  = 8
)

func specialArea(buf []byte) []byte {
	return buf[len(buf)-SpecialAreaSize:]
}

func setSpecialU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(specialArea(buf)[off:], v)
}

func specialU32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(specialArea(buf)[off:])
}

// NextBlock returns the block this page chains to, or InvalidBlock at the
// end of the chain.
func NextBlock(buf []byte) uint32 { return specialU32(buf, specialOffNextBlock) }

// SetNextBlock links buf to the next data block in sequential order.
func SetNextBlock(buf []byte, blockNo uint32) { setSpecialU32(buf, specialOffNextBlock, blockNo) }

// FirstSlot/LastSlot are advisory debugging aids recording the build-time
// sequence id range placed on this page; never consulted for correctness.
func FirstSlot(buf []byte) uint32 { return specialU32(buf, specialOffFirstSlot) }
func LastSlot(buf []byte) uint32  { return specialU32(buf, specialOffLastSlot) }

// NoteSlotRange updates the advisory first_slot/last_slot bookkeeping as
// items are appended: first_slot is set once, last_slot on every append.
func NoteSlotRange(buf []byte, seqID uint32) {
	if FirstSlot(buf) == InvalidBlock {
		setSpecialU32(buf, specialOffFirstSlot, seqID)
	}
	setSpecialU32(buf, specialOffLastSlot, seqID)
}
