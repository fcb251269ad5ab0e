package pagelayout

// BuildNode is one node's finished in-memory content handed to BuildPages:
// its build-time sequence id (assigned by the graph engine in insertion
// order) and its selected neighbors, still addressed by sequence id because
// their final slots aren't known until every earlier node has been placed.
type BuildNode struct {
	SeqID     uint32
	Label     uint64
	Level     uint16
	Neighbors [][]uint32 // Neighbors[l] = sequence ids of level-l neighbors
	Vector    []byte
}

// BuildResult is what BuildPages produces: the sequence-id -> final-slot
// table (needed only to translate the graph's own entry-point sequence id;
// nothing else needs it once placement is done) and the page-chain bounds.
type BuildResult struct {
	SlotOf         []SlotID
	FirstDataBlock uint32
	LastDataBlock  uint32
}

// BuildPages lays out nodes (already in final sequence-id order) across
// pages of the given type, calling allocate for a fresh zeroed page each
// time the current one fills. It implements the bulk serialization
// algorithm in four conceptual passes collapsed into one loop plus one
// cleanup loop: allocate pages as needed, place each node's tuple with
// neighbor slots left as placeholders, record a pending rewrite for each
// placeholder (an aliased byte slice plus the sequence id it should
// resolve to), then resolve every pending rewrite once all final slots are
// known.
//
// The rewrite pass is idempotent by construction: it overwrites a fixed
// list of byte ranges collected during placement with a pure function of
// SlotOf, rather than re-scanning committed page bytes to detect what
// still needs rewriting (which would require guessing whether a 4-byte
// field already holds a resolved block number or an unresolved sequence
// id - those ranges overlap for any index under 2^32 nodes). Running
// BuildPages' rewrite loop twice on the same pendings list produces the
// same bytes both times.
func BuildPages(nodes []BuildNode, mMax0, m int, pageType byte, allocate func() (blockNo uint32, buf []byte)) (BuildResult, error) {
	type pending struct {
		target []byte
		seq    uint32
	}

	slotOf := make([]SlotID, len(nodes))
	var pendings []pending

	result := BuildResult{FirstDataBlock: InvalidBlock, LastDataBlock: InvalidBlock}

	var curBlock uint32 = InvalidBlock
	var curBuf []byte
	var prevBuf []byte

	allocatePage := func() {
		blockNo, buf := allocate()
		InitDataPage(buf, pageType)
		if prevBuf != nil {
			SetNextBlock(prevBuf, blockNo)
		}
		if result.FirstDataBlock == InvalidBlock {
			result.FirstDataBlock = blockNo
		}
		prevBuf = buf
		curBlock = blockNo
		curBuf = buf
	}

	for _, n := range nodes {
		vectorLen := len(n.Vector)
		size := FixedTupleSize(int(n.Level), mMax0, m, vectorLen)
		if curBuf == nil || !Fits(curBuf, size) {
			allocatePage()
		}

		tuple := NodeTuple{
			SeqID:     n.SeqID,
			Label:     n.Label,
			Level:     n.Level,
			Neighbors: make([][]SlotID, n.Level+1),
			Vector:    n.Vector,
		}
		for l := range tuple.Neighbors {
			tuple.Neighbors[l] = make([]SlotID, len(n.Neighbors[l]))
			for i := range tuple.Neighbors[l] {
				tuple.Neighbors[l][i] = InvalidSlot
			}
		}

		encoded := make([]byte, size)
		EncodeNodeTuple(encoded, tuple, mMax0, m)

		itemIdx, placed, err := AppendItem(curBuf, encoded)
		if err != nil {
			return BuildResult{}, err
		}
		NoteSlotRange(curBuf, n.SeqID)

		slotOf[n.SeqID] = SlotID{Block: curBlock, Offset: itemIdx}

		for l := 0; l <= int(n.Level); l++ {
			for i, seq := range n.Neighbors[l] {
				off := neighborSlotOffset(int(n.Level), l, i, mMax0, m)
				pendings = append(pendings, pending{target: placed[off : off+SlotSize], seq: seq})
			}
		}
	}

	if curBuf != nil {
		SetNextBlock(curBuf, InvalidBlock)
	}
	result.LastDataBlock = curBlock

	for _, p := range pendings {
		slotOf[p.seq].Encode(p.target)
	}

	result.SlotOf = slotOf
	return result, nil
}
