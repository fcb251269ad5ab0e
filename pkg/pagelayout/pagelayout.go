// Package pagelayout lays the HNSW graph out on pager pages: a 128-byte
// superblock (block 0) and slotted data pages (items[] growing from the
// head, node tuples growing from the tail, a 12-byte special area at the
// very end for sequential crawling). It has no dependency on pkg/pager or
// pkg/retriever — it operates on raw page-sized byte slices so it can be
// unit tested without a buffer manager, and is driven by pkg/hnsw through
// pkg/retriever's Borrow/BorrowMut for the actual pinning/WAL plumbing.
//
// Grounded on the host storage engine's own external HNSW index format
// (HnswIndexHeaderPage/HnswIndexPageSpecialBlock/HnswIndexTuple in
// external_index.h): a magic+version header, a firstId/lastId/nextblockno
// special block per page, and an id/level/size/node tuple. This package
// keeps that shape but replaces the header's internal blockmap (a
// fixed-capacity in-header directory, the same overflow failure mode this
// module's previous node-page directory had) with the page chain itself as
// the only node directory: a node's identity is the slot it lives at, and
// every node is reachable by walking next_block from the first data block.
package pagelayout

import "errors"

var (
	// ErrShortBuffer is returned when a byte slice is too small to hold the
	// structure being encoded or decoded.
	ErrShortBuffer = errors.New("pagelayout: buffer too small")
	// ErrBadMagic is returned by DecodeHeader when the magic number doesn't match.
	ErrBadMagic = errors.New("pagelayout: bad superblock magic")
	// ErrBadPageType is returned when a data page's type byte doesn't match
	// what the caller expected.
	ErrBadPageType = errors.New("pagelayout: unexpected page type")
	// ErrPageFull is returned by AppendItem when the tuple (plus its item
	// pointer) does not fit in the page's remaining free space.
	ErrPageFull = errors.New("pagelayout: page has no room for this item")
	// ErrItemNotFound is returned by ReadItem for an out-of-range item index.
	ErrItemNotFound = errors.New("pagelayout: item index out of range")
)
