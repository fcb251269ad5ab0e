package pagelayout

import (
	"encoding/binary"
	"math"
)

// Magic identifies a superblock page; the reversed-ASCII sentinel the host
// storage engine's own WAL magic numbers are styled after.
const Magic uint32 = 0x484E5357

// Version is the superblock layout version this package reads and writes.
const Version uint32 = 1

// HeaderSize is the fixed, total on-disk size of the superblock.
const HeaderSize = 128

const (
	offMagic          = 0
	offVersion        = 4
	offDim            = 8
	offM              = 12
	offEfConstruction = 16
	offEfSearch       = 20
	offMetricKind     = 24
	offQuantization   = 28
	offPQEnabled      = 32
	offNumCentroids   = 36
	offNumSubvectors  = 40
	offNumNodes       = 44
	offLastDataBlock  = 48
	// offMMax0 lives in the 12 bytes the layout reserves to align the
	// engine header to offset 64; MMax0 isn't named in that layout, but
	// since it is needed to decode a tuple's per-level neighbor capacity,
	// reserved space is exactly what it is for.
	offMMax0 = 52
	// offFlags borrows one more reserved byte for the two construction
	// flags (heuristic selection, candidate extension); like MMax0 these
	// have no named field in the layout but need somewhere to live.
	offFlags        = 56
	offEngineHeader = 64
	offEntrySlot    = 64
	offMaxLevel     = 70
	offMLInverse    = 72
	offRNGSeed      = 80
)

// Header is the decoded form of the 128-byte superblock stored at block 0.
type Header struct {
	Dim            uint32
	M              uint32
	MMax0          uint32
	EfConstruction uint32
	EfSearch       uint32
	MetricKind     uint32
	Quantization   uint32
	PQEnabled      bool
	NumCentroids   uint32
	NumSubvectors  uint32
	NumNodes       uint32
	LastDataBlock  uint32
	EntrySlot      SlotID
	MaxLevel       uint16
	MLInverse      float64
	RNGSeed        uint64
	UseHeuristic   bool
	ExtendCandidates bool
}

// EmptyHeader builds the superblock for a freshly created, zero-node index:
// this is the access method's ambuildempty/init-fork writer responsibility
// - there is no separate fork in this storage engine, so the empty-index
// state is just this header with LastDataBlock and EntrySlot both absent.
func EmptyHeader(dim, m, mMax0, efConstruction, efSearch int, metricKind, quantization uint32, mlInverse float64, rngSeed uint64) Header {
	return Header{
		Dim:            uint32(dim),
		M:              uint32(m),
		MMax0:          uint32(mMax0),
		EfConstruction: uint32(efConstruction),
		EfSearch:       uint32(efSearch),
		MetricKind:     metricKind,
		Quantization:   quantization,
		LastDataBlock:  InvalidBlock,
		EntrySlot:      InvalidSlot,
		MLInverse:      mlInverse,
		RNGSeed:        rngSeed,
	}
}

// Encode writes h into dst[0:HeaderSize].
func (h Header) Encode(dst []byte) {
	_ = dst[:HeaderSize]
	binary.LittleEndian.PutUint32(dst[offMagic:], Magic)
	binary.LittleEndian.PutUint32(dst[offVersion:], Version)
	binary.LittleEndian.PutUint32(dst[offDim:], h.Dim)
	binary.LittleEndian.PutUint32(dst[offM:], h.M)
	binary.LittleEndian.PutUint32(dst[offEfConstruction:], h.EfConstruction)
	binary.LittleEndian.PutUint32(dst[offEfSearch:], h.EfSearch)
	binary.LittleEndian.PutUint32(dst[offMetricKind:], h.MetricKind)
	binary.LittleEndian.PutUint32(dst[offQuantization:], h.Quantization)
	var pq uint32
	if h.PQEnabled {
		pq = 1
	}
	binary.LittleEndian.PutUint32(dst[offPQEnabled:], pq)
	binary.LittleEndian.PutUint32(dst[offNumCentroids:], h.NumCentroids)
	binary.LittleEndian.PutUint32(dst[offNumSubvectors:], h.NumSubvectors)
	binary.LittleEndian.PutUint32(dst[offNumNodes:], h.NumNodes)
	binary.LittleEndian.PutUint32(dst[offLastDataBlock:], h.LastDataBlock)
	binary.LittleEndian.PutUint32(dst[offMMax0:], h.MMax0)
	var flags byte
	if h.UseHeuristic {
		flags |= 0x01
	}
	if h.ExtendCandidates {
		flags |= 0x02
	}
	dst[offFlags] = flags
	h.EntrySlot.Encode(dst[offEntrySlot : offEntrySlot+SlotSize])
	binary.LittleEndian.PutUint16(dst[offMaxLevel:], h.MaxLevel)
	binary.LittleEndian.PutUint64(dst[offMLInverse:], math.Float64bits(h.MLInverse))
	binary.LittleEndian.PutUint64(dst[offRNGSeed:], h.RNGSeed)
}

// DecodeHeader reads a Header from src[0:HeaderSize], validating the magic.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	if binary.LittleEndian.Uint32(src[offMagic:]) != Magic {
		return Header{}, ErrBadMagic
	}

	h := Header{
		Dim:            binary.LittleEndian.Uint32(src[offDim:]),
		M:              binary.LittleEndian.Uint32(src[offM:]),
		MMax0:          binary.LittleEndian.Uint32(src[offMMax0:]),
		EfConstruction: binary.LittleEndian.Uint32(src[offEfConstruction:]),
		EfSearch:       binary.LittleEndian.Uint32(src[offEfSearch:]),
		MetricKind:     binary.LittleEndian.Uint32(src[offMetricKind:]),
		Quantization:   binary.LittleEndian.Uint32(src[offQuantization:]),
		PQEnabled:      binary.LittleEndian.Uint32(src[offPQEnabled:]) != 0,
		NumCentroids:   binary.LittleEndian.Uint32(src[offNumCentroids:]),
		NumSubvectors:  binary.LittleEndian.Uint32(src[offNumSubvectors:]),
		NumNodes:       binary.LittleEndian.Uint32(src[offNumNodes:]),
		LastDataBlock:  binary.LittleEndian.Uint32(src[offLastDataBlock:]),
		EntrySlot:      DecodeSlot(src[offEntrySlot : offEntrySlot+SlotSize]),
		MaxLevel:       binary.LittleEndian.Uint16(src[offMaxLevel:]),
		MLInverse:      math.Float64frombits(binary.LittleEndian.Uint64(src[offMLInverse:])),
		RNGSeed:        binary.LittleEndian.Uint64(src[offRNGSeed:]),
		UseHeuristic:     src[offFlags]&0x01 != 0,
		ExtendCandidates: src[offFlags]&0x02 != 0,
	}
	return h, nil
}
