package pagelayout

import "testing"

// fakePager hands out fresh, growable, zeroed pages the way pkg/pager's
// Allocate would, without needing a real file-backed Pager in this
// package's tests.
type fakePager struct {
	pageSize int
	pages    [][]byte
}

func (f *fakePager) allocate() (uint32, []byte) {
	buf := make([]byte, f.pageSize)
	f.pages = append(f.pages, buf)
	return uint32(len(f.pages) - 1), buf
}

func TestBuildPagesScenarioB(t *testing.T) {
	// Scenario B (spec): a page size and dimension chosen so exactly 5
	// nodes fit per page; 11 nodes must span exactly 3 data pages chained
	// 0->1->2->invalid (this fake pager's block numbers start at 0).
	const mMax0, m = 0, 0 // level 0 only, no neighbors, to isolate page packing
	const vectorLen = 4

	tupleSize := FixedTupleSize(0, mMax0, m, vectorLen)
	pageSize := PageHeaderSize + SpecialAreaSize + 5*(tupleSize+4)

	pager := &fakePager{pageSize: pageSize}

	nodes := make([]BuildNode, 11)
	for i := range nodes {
		nodes[i] = BuildNode{
			SeqID:     uint32(i),
			Label:     uint64(i),
			Level:     0,
			Neighbors: [][]uint32{{}},
			Vector:    []byte{1, 2, 3, 4},
		}
	}

	result, err := BuildPages(nodes, mMax0, m, 0x10, pager.allocate)
	if err != nil {
		t.Fatalf("BuildPages: %v", err)
	}

	if len(pager.pages) != 3 {
		t.Fatalf("expected exactly 3 data pages for 11 nodes at 5/page, got %d", len(pager.pages))
	}
	if result.FirstDataBlock != 0 {
		t.Errorf("expected first data block 0, got %d", result.FirstDataBlock)
	}
	if result.LastDataBlock != 2 {
		t.Errorf("expected last data block 2, got %d", result.LastDataBlock)
	}

	wantNext := []uint32{1, 2, InvalidBlock}
	for i, buf := range pager.pages {
		if got := NextBlock(buf); got != wantNext[i] {
			t.Errorf("page %d: next_block = %d, want %d", i, got, wantNext[i])
		}
	}

	wantItems := []int{5, 5, 1}
	for i, buf := range pager.pages {
		if got := ItemCount(buf); got != wantItems[i] {
			t.Errorf("page %d: item count = %d, want %d", i, got, wantItems[i])
		}
	}

	for _, s := range result.SlotOf {
		if !s.IsValid() {
			t.Fatal("every node should have a valid resolved slot")
		}
	}
}

func TestBuildPagesEdgeRewriteIsResolvedAndIdempotent(t *testing.T) {
	const mMax0, m = 4, 4
	pager := &fakePager{pageSize: 4096}

	nodes := []BuildNode{
		{SeqID: 0, Label: 100, Level: 0, Neighbors: [][]uint32{{1}}, Vector: []byte{1}},
		{SeqID: 1, Label: 101, Level: 0, Neighbors: [][]uint32{{0}}, Vector: []byte{2}},
	}

	result, err := BuildPages(nodes, mMax0, m, 0x10, pager.allocate)
	if err != nil {
		t.Fatalf("BuildPages: %v", err)
	}

	slot0 := result.SlotOf[0]
	slot1 := result.SlotOf[1]

	buf := pager.pages[slot0.Block]
	raw, err := ReadItem(buf, slot0.Offset)
	if err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	decoded, err := DecodeNodeTuple(raw, mMax0, m)
	if err != nil {
		t.Fatalf("DecodeNodeTuple: %v", err)
	}
	if len(decoded.Neighbors[0]) != 1 || decoded.Neighbors[0][0] != slot1 {
		t.Fatalf("node 0's neighbor was not rewritten to node 1's real slot: got %+v, want [%+v]", decoded.Neighbors[0], slot1)
	}

	// Idempotency: applying the rewrite a second time (writing node 1's
	// resolved slot into the same recorded neighbor bytes) leaves the
	// item's bytes unchanged.
	before := string(raw)
	off := neighborSlotOffset(0, 0, 0, mMax0, m)
	slot1.Encode(raw[off : off+SlotSize])
	raw2, _ := ReadItem(buf, slot0.Offset)
	if string(raw2) != before {
		t.Fatal("expected a second rewrite pass to leave the item's bytes unchanged")
	}
}

func TestBuildPagesEmptyNodeList(t *testing.T) {
	pager := &fakePager{pageSize: 4096}
	result, err := BuildPages(nil, 8, 4, 0x10, pager.allocate)
	if err != nil {
		t.Fatalf("BuildPages: %v", err)
	}
	if result.FirstDataBlock != InvalidBlock || result.LastDataBlock != InvalidBlock {
		t.Fatal("expected no data blocks for an empty node list")
	}
	if len(pager.pages) != 0 {
		t.Fatal("expected no pages allocated for an empty node list")
	}
}
