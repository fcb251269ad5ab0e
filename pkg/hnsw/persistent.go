// pkg/hnsw/persistent.go
package hnsw

import (
	"errors"
	"math/rand"
	"sync"

	"vecindex/pkg/pagelayout"
	"vecindex/pkg/pager"
	"vecindex/pkg/retriever"
	"vecindex/pkg/types"
)

var (
	ErrInvalidMetaPage = errors.New("invalid HNSW meta page")
	ErrNodeNotFound    = errors.New("HNSW node not found")
)

// invalidNodeID is the graph-engine-facing sentinel for "no entry point" /
// "no such neighbor". It is the nodeID a node's own SlotID would produce if
// that SlotID were pagelayout.InvalidSlot, so every comparison against a
// real nodeID (whose Block can never be InvalidBlock) is unambiguous.
var invalidNodeID = slotToNodeID(pagelayout.InvalidSlot)

// slotToNodeID and nodeIDToSlot are the two halves of this index's central
// design choice: rather than keep a nodeID -> page directory (the thing
// that overflowed the old fixed-size meta page past a few hundred nodes),
// the uint64 nodeID the graph engine already passes around everywhere is
// defined to literally be the node's packed 6-byte slot identifier. A node
// is found by decoding its own ID, never by looking it up in a table.
func slotToNodeID(s pagelayout.SlotID) uint64 {
	return uint64(s.Block)<<16 | uint64(s.Offset)
}

func nodeIDToSlot(id uint64) pagelayout.SlotID {
	return pagelayout.SlotID{Block: uint32(id >> 16), Offset: uint16(id)}
}

// PersistentIndex is an HNSW index backed by the pager for disk persistence.
// Nodes live in a chain of data pages reachable from the meta page; there is
// no separate node directory, so a node's existence is exactly what the
// page chain contains and nothing is left to outgrow a fixed-size table.
type PersistentIndex struct {
	mu       sync.RWMutex
	pager    *pager.Pager
	metaPage uint32 // Page number of the metadata page

	config        Config
	entryPoint    uint64 // invalidNodeID when the index is empty
	maxLevel      int    // -1 when the index is empty
	nodeCount     uint64
	lastDataBlock uint32 // pagelayout.InvalidBlock when the index is empty

	// tombstones marks rowIDs removed from this open handle. Deletion never
	// reclaims or rewrites page storage, and the on-page tuple format has no
	// tombstone bit of its own, so the mark lives only in memory for the
	// lifetime of this handle; a deleted node's tuple is still physically
	// present and reappears as an ordinary (if unreferenced) page record on
	// reopen, the same way the graph already tolerates any other stale edge.
	tombstones map[uint64]bool
}

// CreatePersistent creates a new persistent HNSW index.
func CreatePersistent(p *pager.Pager, config Config) (*PersistentIndex, error) {
	metaPage, err := p.Allocate()
	if err != nil {
		return nil, err
	}
	metaPageNo := metaPage.PageNo()
	p.Release(metaPage)

	idx := &PersistentIndex{
		pager:         p,
		metaPage:      metaPageNo,
		config:        config,
		entryPoint:    invalidNodeID,
		maxLevel:      -1,
		lastDataBlock: pagelayout.InvalidBlock,
		tombstones:    make(map[uint64]bool),
	}

	ctx := retriever.NewContext(p)
	if err := ctx.Begin(); err != nil {
		return nil, err
	}
	if err := ctx.StartMutating(); err != nil {
		ctx.Abort()
		return nil, err
	}
	if err := idx.writeMeta(ctx); err != nil {
		ctx.Abort()
		return nil, err
	}
	if err := ctx.Commit(); err != nil {
		return nil, err
	}

	return idx, nil
}

// OpenPersistent opens an existing persistent HNSW index.
func OpenPersistent(p *pager.Pager, metaPageNo uint32) (*PersistentIndex, error) {
	idx := &PersistentIndex{
		pager:      p,
		metaPage:   metaPageNo,
		tombstones: make(map[uint64]bool),
	}

	if err := idx.loadMeta(); err != nil {
		return nil, err
	}

	return idx, nil
}

// MetaPage returns the meta page number (useful for reopening).
func (idx *PersistentIndex) MetaPage() uint32 {
	return idx.metaPage
}

// distance computes the distance between two vectors using the configured metric
func (idx *PersistentIndex) distance(a, b *types.Vector) float32 {
	return a.Distance(b, idx.config.DistanceMetric)
}

// firstDataBlock is the block number of the first data page. CreatePersistent
// always allocates the meta page before anything else, and the very first
// data page is allocated by the first Insert with no intervening
// allocations, so the chain always starts at metaPage+1.
func (idx *PersistentIndex) firstDataBlock() uint32 {
	return idx.metaPage + 1
}

func (idx *PersistentIndex) headerEntrySlot() pagelayout.SlotID {
	if idx.entryPoint == invalidNodeID {
		return pagelayout.InvalidSlot
	}
	return nodeIDToSlot(idx.entryPoint)
}

func (idx *PersistentIndex) headerMaxLevel() uint16 {
	if idx.maxLevel < 0 {
		return 0
	}
	return uint16(idx.maxLevel)
}

// writeMeta writes the superblock to the meta page.
func (idx *PersistentIndex) writeMeta(ctx *retriever.Context) error {
	page, err := ctx.BorrowMut(idx.metaPage)
	if err != nil {
		return err
	}

	data := page.Data()
	data[0] = byte(pager.PageTypeHNSWMeta)

	h := pagelayout.Header{
		Dim:              uint32(idx.config.Dimension),
		M:                uint32(idx.config.M),
		MMax0:            uint32(idx.config.MMax0),
		EfConstruction:   uint32(idx.config.EfConstruction),
		EfSearch:         uint32(idx.config.EfSearch),
		MetricKind:       uint32(idx.config.DistanceMetric),
		Quantization:     uint32(idx.config.Quantization),
		NumNodes:         uint32(idx.nodeCount),
		LastDataBlock:    idx.lastDataBlock,
		EntrySlot:        idx.headerEntrySlot(),
		MaxLevel:         idx.headerMaxLevel(),
		MLInverse:        idx.config.ML,
		UseHeuristic:     idx.config.UseHeuristic,
		ExtendCandidates: idx.config.ExtendCandidates,
	}
	h.Encode(data[1 : 1+pagelayout.HeaderSize])

	return nil
}

// loadMeta reads the superblock from the meta page.
func (idx *PersistentIndex) loadMeta() error {
	ctx := retriever.NewContext(idx.pager)
	if err := ctx.Begin(); err != nil {
		return err
	}
	defer ctx.Abort()

	page, err := ctx.Borrow(idx.metaPage)
	if err != nil {
		return err
	}
	data := page.Data()

	if pager.PageType(data[0]) != pager.PageTypeHNSWMeta {
		return ErrInvalidMetaPage
	}

	h, err := pagelayout.DecodeHeader(data[1 : 1+pagelayout.HeaderSize])
	if err != nil {
		return err
	}

	idx.config = Config{
		M:                int(h.M),
		MMax0:            int(h.MMax0),
		EfConstruction:   int(h.EfConstruction),
		EfSearch:         int(h.EfSearch),
		Dimension:        int(h.Dim),
		ML:               h.MLInverse,
		UseHeuristic:     h.UseHeuristic,
		ExtendCandidates: h.ExtendCandidates,
		DistanceMetric:   types.DistanceMetric(h.MetricKind),
		Quantization:     types.Quantization(h.Quantization),
	}
	idx.nodeCount = uint64(h.NumNodes)
	idx.lastDataBlock = h.LastDataBlock

	if h.EntrySlot.IsValid() {
		idx.entryPoint = slotToNodeID(h.EntrySlot)
		idx.maxLevel = int(h.MaxLevel)
	} else {
		idx.entryPoint = invalidNodeID
		idx.maxLevel = -1
	}

	return nil
}

// Len returns the number of nodes
func (idx *PersistentIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.nodeCount)
}

// Dimension returns the vector dimension
func (idx *PersistentIndex) Dimension() int {
	return idx.config.Dimension
}

// Config returns the index configuration
func (idx *PersistentIndex) Config() Config {
	return idx.config
}

// MaxLevel returns the current maximum level in the graph (-1 when empty).
func (idx *PersistentIndex) MaxLevel() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.maxLevel
}

// allocateDataPage allocates and initializes a fresh data page, linking
// prevBlock's next_block to it unless prevBlock is pagelayout.InvalidBlock
// (the first data page in the index).
func (idx *PersistentIndex) allocateDataPage(ctx *retriever.Context, prevBlock uint32) (uint32, error) {
	newPage, err := idx.pager.Allocate()
	if err != nil {
		return 0, err
	}
	blockNo := newPage.PageNo()
	idx.pager.Release(newPage)

	page, err := ctx.BorrowMut(blockNo)
	if err != nil {
		return 0, err
	}
	pagelayout.InitDataPage(page.Data(), byte(pager.PageTypeHNSWNode))

	if prevBlock != pagelayout.InvalidBlock {
		prevPage, err := ctx.BorrowMut(prevBlock)
		if err != nil {
			return 0, err
		}
		pagelayout.SetNextBlock(prevPage.Data(), blockNo)
	}

	return blockNo, nil
}

// placeTuple encodes tuple and appends it to the index's current last data
// page, allocating and chaining a new page only when the current one has no
// room left - this is the incremental slot reservation the bulk builder's
// BuildPages implements for a whole batch at once.
func (idx *PersistentIndex) placeTuple(ctx *retriever.Context, tuple pagelayout.NodeTuple) (pagelayout.SlotID, error) {
	size := pagelayout.FixedTupleSize(int(tuple.Level), idx.config.MMax0, idx.config.M, len(tuple.Vector))

	if idx.lastDataBlock == pagelayout.InvalidBlock {
		blockNo, err := idx.allocateDataPage(ctx, pagelayout.InvalidBlock)
		if err != nil {
			return pagelayout.SlotID{}, err
		}
		idx.lastDataBlock = blockNo
	} else {
		page, err := ctx.BorrowMut(idx.lastDataBlock)
		if err != nil {
			return pagelayout.SlotID{}, err
		}
		if !pagelayout.Fits(page.Data(), size) {
			blockNo, err := idx.allocateDataPage(ctx, idx.lastDataBlock)
			if err != nil {
				return pagelayout.SlotID{}, err
			}
			idx.lastDataBlock = blockNo
		}
	}

	page, err := ctx.BorrowMut(idx.lastDataBlock)
	if err != nil {
		return pagelayout.SlotID{}, err
	}

	encoded := make([]byte, size)
	pagelayout.EncodeNodeTuple(encoded, tuple, idx.config.MMax0, idx.config.M)

	itemIdx, _, err := pagelayout.AppendItem(page.Data(), encoded)
	if err != nil {
		return pagelayout.SlotID{}, err
	}

	return pagelayout.SlotID{Block: idx.lastDataBlock, Offset: itemIdx}, nil
}

// rewriteTuple decodes the node's tuple, applies mutate, and re-encodes it
// back into the same page bytes. Every level's neighbor list is padded to
// its configured cap when encoded, so a node's tuple size never changes
// over its lifetime - mutate is free to grow a neighbor list up to that cap
// without ever needing to relocate the tuple.
func (idx *PersistentIndex) rewriteTuple(ctx *retriever.Context, nodeID uint64, mutate func(t *pagelayout.NodeTuple)) error {
	slot := nodeIDToSlot(nodeID)
	page, err := ctx.BorrowMut(slot.Block)
	if err != nil {
		return err
	}

	raw, err := pagelayout.ReadItem(page.Data(), slot.Offset)
	if err != nil {
		return err
	}
	t, err := pagelayout.DecodeNodeTuple(raw, idx.config.MMax0, idx.config.M)
	if err != nil {
		return err
	}

	mutate(&t)

	pagelayout.EncodeNodeTuple(raw, t, idx.config.MMax0, idx.config.M)
	return nil
}

// tupleToNode decodes a page tuple into the graph engine's node
// representation, translating every stored SlotID to its nodeID form.
func (idx *PersistentIndex) tupleToNode(slot pagelayout.SlotID, t pagelayout.NodeTuple) (*HNSWNode, error) {
	vector, err := types.DecodeVector(t.Vector, idx.config.Dimension, idx.config.Quantization)
	if err != nil {
		return nil, err
	}

	neighbors := make([][]uint64, len(t.Neighbors))
	for l, slots := range t.Neighbors {
		ids := make([]uint64, len(slots))
		for i, s := range slots {
			ids[i] = slotToNodeID(s)
		}
		neighbors[l] = ids
	}

	return &HNSWNode{
		id:        slotToNodeID(slot),
		rowID:     int64(t.Label),
		vector:    vector,
		level:     int(t.Level),
		neighbors: neighbors,
	}, nil
}

// getNode dereferences a nodeID (its own packed SlotID) back to a node.
func (idx *PersistentIndex) getNode(ctx *retriever.Context, nodeID uint64) *HNSWNode {
	if nodeID == invalidNodeID || idx.tombstones[nodeID] {
		return nil
	}

	slot := nodeIDToSlot(nodeID)
	page, err := ctx.Borrow(slot.Block)
	if err != nil {
		return nil
	}

	raw, err := pagelayout.ReadItem(page.Data(), slot.Offset)
	if err != nil {
		return nil
	}
	t, err := pagelayout.DecodeNodeTuple(raw, idx.config.MMax0, idx.config.M)
	if err != nil {
		return nil
	}

	node, err := idx.tupleToNode(slot, t)
	if err != nil {
		return nil
	}
	return node
}

// forEachNode walks every data page reachable from firstDataBlock, decoding
// every item on every page, in place of the node directory the old meta
// page format silently lost entries from past a few hundred nodes. Tombstoned
// nodes are skipped so callers never have to check for them separately.
func (idx *PersistentIndex) forEachNode(ctx *retriever.Context, fn func(nodeID uint64, node *HNSWNode) bool) {
	if idx.lastDataBlock == pagelayout.InvalidBlock {
		return
	}

	block := idx.firstDataBlock()
	for block != pagelayout.InvalidBlock {
		page, err := ctx.Borrow(block)
		if err != nil {
			return
		}
		data := page.Data()

		count := pagelayout.ItemCount(data)
		for i := 0; i < count; i++ {
			raw, err := pagelayout.ReadItem(data, uint16(i))
			if err != nil {
				continue
			}
			t, err := pagelayout.DecodeNodeTuple(raw, idx.config.MMax0, idx.config.M)
			if err != nil {
				continue
			}

			slot := pagelayout.SlotID{Block: block, Offset: uint16(i)}
			nodeID := slotToNodeID(slot)
			if idx.tombstones[nodeID] {
				continue
			}

			node, err := idx.tupleToNode(slot, t)
			if err != nil {
				continue
			}
			if !fn(nodeID, node) {
				return
			}
		}

		block = pagelayout.NextBlock(data)
	}
}

// Insert adds a vector to the persistent index
func (idx *PersistentIndex) Insert(rowID int64, vector *types.Vector) error {
	if vector.Dimension() != idx.config.Dimension {
		return ErrDimensionMismatch
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	level := idx.randomLevel()
	vecBytes, err := vector.Encode(idx.config.Quantization)
	if err != nil {
		return err
	}

	ctx := retriever.NewContext(idx.pager)
	if err := ctx.Begin(); err != nil {
		return err
	}
	if err := ctx.StartMutating(); err != nil {
		ctx.Abort()
		return err
	}

	if idx.nodeCount == 0 {
		slot, err := idx.placeTuple(ctx, pagelayout.NodeTuple{
			Label:     uint64(rowID),
			Level:     uint16(level),
			Neighbors: make([][]pagelayout.SlotID, level+1),
			Vector:    vecBytes,
		})
		if err != nil {
			ctx.Abort()
			return err
		}

		idx.entryPoint = slotToNodeID(slot)
		idx.maxLevel = level
		idx.nodeCount = 1

		if err := idx.writeMeta(ctx); err != nil {
			ctx.Abort()
			return err
		}
		return ctx.Commit()
	}

	ep := idx.entryPoint
	currentLevel := idx.maxLevel

	// Phase 1: Traverse from top to node's level
	for l := currentLevel; l > level; l-- {
		ep = idx.searchLayerClosest(ctx, vector, ep, l)
	}

	// Phase 2: collect this node's neighbors at each level it participates in
	topInsertLevel := min(level, currentLevel)
	selectedByLevel := make([][]uint64, topInsertLevel+1)
	epForLevel := ep
	for l := topInsertLevel; l >= 0; l-- {
		candidates := idx.searchLayer(ctx, vector, epForLevel, idx.config.EfConstruction, l)

		maxNeighbors := idx.config.M
		if l == 0 {
			maxNeighbors = idx.config.MMax0
		}
		selected := idx.selectNeighbors(ctx, vector, candidates, maxNeighbors)
		selectedByLevel[l] = selected

		if len(selected) > 0 {
			epForLevel = selected[0]
		}
	}

	neighborLists := make([][]pagelayout.SlotID, level+1)
	for l := 0; l <= level; l++ {
		var selected []uint64
		if l <= topInsertLevel {
			selected = selectedByLevel[l]
		}
		slots := make([]pagelayout.SlotID, len(selected))
		for i, nid := range selected {
			slots[i] = nodeIDToSlot(nid)
		}
		neighborLists[l] = slots
	}

	slot, err := idx.placeTuple(ctx, pagelayout.NodeTuple{
		Label:     uint64(rowID),
		Level:     uint16(level),
		Neighbors: neighborLists,
		Vector:    vecBytes,
	})
	if err != nil {
		ctx.Abort()
		return err
	}
	nodeID := slotToNodeID(slot)

	// Phase 3: wire the reverse edges, pruning neighbors that now exceed
	// their level's connection cap.
	for l := 0; l <= topInsertLevel; l++ {
		maxNeighbors := idx.config.M
		if l == 0 {
			maxNeighbors = idx.config.MMax0
		}
		for _, neighborID := range selectedByLevel[l] {
			if err := idx.addBackEdge(ctx, neighborID, l, nodeID, maxNeighbors); err != nil {
				ctx.Abort()
				return err
			}
		}
	}

	idx.nodeCount++

	if level > idx.maxLevel {
		idx.entryPoint = nodeID
		idx.maxLevel = level
	}

	if err := idx.writeMeta(ctx); err != nil {
		ctx.Abort()
		return err
	}
	return ctx.Commit()
}

// addBackEdge adds nodeID as a level-l neighbor of neighborID, pruning by
// distance if that exceeds the level's connection cap.
func (idx *PersistentIndex) addBackEdge(ctx *retriever.Context, neighborID uint64, level int, nodeID uint64, maxNeighbors int) error {
	if neighborID == invalidNodeID || idx.tombstones[neighborID] {
		return nil
	}

	return idx.rewriteTuple(ctx, neighborID, func(t *pagelayout.NodeTuple) {
		if level > int(t.Level) {
			return
		}

		nodeSlot := nodeIDToSlot(nodeID)
		for _, s := range t.Neighbors[level] {
			if s == nodeSlot {
				return
			}
		}

		updated := append(t.Neighbors[level], nodeSlot)
		if len(updated) > maxNeighbors {
			if selfVector, err := types.DecodeVector(t.Vector, idx.config.Dimension, idx.config.Quantization); err == nil {
				updated = idx.pruneSlots(ctx, selfVector, updated, maxNeighbors)
			} else {
				updated = updated[:maxNeighbors]
			}
		}
		t.Neighbors[level] = updated
	})
}

// pruneSlots keeps the maxNeighbors slots closest to selfVector, mirroring
// the distance-based connection pruning the HNSW paper's insert uses.
func (idx *PersistentIndex) pruneSlots(ctx *retriever.Context, selfVector *types.Vector, slots []pagelayout.SlotID, maxNeighbors int) []pagelayout.SlotID {
	type nd struct {
		slot pagelayout.SlotID
		dist float32
	}
	nds := make([]nd, 0, len(slots))
	for _, s := range slots {
		node := idx.getNode(ctx, slotToNodeID(s))
		if node == nil {
			continue
		}
		nds = append(nds, nd{slot: s, dist: idx.distance(selfVector, node.Vector())})
	}

	for i := 0; i < len(nds)-1; i++ {
		for j := i + 1; j < len(nds); j++ {
			if nds[j].dist < nds[i].dist {
				nds[i], nds[j] = nds[j], nds[i]
			}
		}
	}

	if len(nds) > maxNeighbors {
		nds = nds[:maxNeighbors]
	}
	out := make([]pagelayout.SlotID, len(nds))
	for i, n := range nds {
		out[i] = n.slot
	}
	return out
}

// randomLevel generates a random level for a new node
func (idx *PersistentIndex) randomLevel() int {
	level := 0
	for randFloat() < idx.config.ML && level < 32 {
		level++
	}
	return level
}

// searchLayerClosest finds the closest node at the given level
func (idx *PersistentIndex) searchLayerClosest(ctx *retriever.Context, query *types.Vector, ep uint64, level int) uint64 {
	current := ep
	currentNode := idx.getNode(ctx, current)
	if currentNode == nil {
		return ep
	}
	currentDist := idx.distance(query, currentNode.Vector())

	for {
		improved := false
		node := idx.getNode(ctx, current)
		if node == nil {
			break
		}
		for _, neighborID := range node.Neighbors(level) {
			neighborNode := idx.getNode(ctx, neighborID)
			if neighborNode == nil {
				continue
			}
			dist := idx.distance(query, neighborNode.Vector())
			if dist < currentDist {
				current = neighborID
				currentDist = dist
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	return current
}

// searchLayer finds ef closest nodes at the given level
func (idx *PersistentIndex) searchLayer(ctx *retriever.Context, query *types.Vector, ep uint64, ef int, level int) []uint64 {
	epNode := idx.getNode(ctx, ep)
	if epNode == nil {
		return nil
	}

	visited := make(map[uint64]bool)
	visited[ep] = true

	candidates := []distNode{{id: ep, dist: idx.distance(query, epNode.Vector())}}
	results := []distNode{{id: ep, dist: candidates[0].dist}}

	for len(candidates) > 0 {
		closest := candidates[0]
		candidates = candidates[1:]

		if len(results) >= ef && closest.dist > results[len(results)-1].dist {
			break
		}

		currentNode := idx.getNode(ctx, closest.id)
		if currentNode == nil {
			continue
		}

		for _, neighborID := range currentNode.Neighbors(level) {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			neighborNode := idx.getNode(ctx, neighborID)
			if neighborNode == nil {
				continue
			}

			dist := idx.distance(query, neighborNode.Vector())

			if len(results) < ef || dist < results[len(results)-1].dist {
				results = insertSorted(results, distNode{id: neighborID, dist: dist})
				if len(results) > ef {
					results = results[:ef]
				}
				candidates = insertSorted(candidates, distNode{id: neighborID, dist: dist})
			}
		}
	}

	ids := make([]uint64, len(results))
	for i, r := range results {
		ids[i] = r.id
	}
	return ids
}

// selectNeighbors selects the M best neighbors
func (idx *PersistentIndex) selectNeighbors(ctx *retriever.Context, query *types.Vector, candidates []uint64, m int) []uint64 {
	if len(candidates) <= m {
		return candidates
	}

	if idx.config.UseHeuristic {
		return idx.selectNeighborsHeuristic(ctx, query, candidates, m, idx.config.ExtendCandidates)
	}

	return candidates[:m]
}

// selectNeighborsHeuristic implements heuristic neighbor selection
func (idx *PersistentIndex) selectNeighborsHeuristic(ctx *retriever.Context, query *types.Vector, candidates []uint64, m int, extendCandidates bool) []uint64 {
	if len(candidates) == 0 {
		return nil
	}

	candidateSet := make(map[uint64]bool)
	for _, c := range candidates {
		candidateSet[c] = true
	}

	if extendCandidates {
		for _, c := range candidates {
			node := idx.getNode(ctx, c)
			if node == nil {
				continue
			}
			for _, n := range node.Neighbors(0) {
				candidateSet[n] = true
			}
		}
	}

	type candDist struct {
		id   uint64
		dist float32
	}
	workQueue := make([]candDist, 0, len(candidateSet))
	for id := range candidateSet {
		node := idx.getNode(ctx, id)
		if node == nil {
			continue
		}
		dist := idx.distance(query, node.Vector())
		workQueue = append(workQueue, candDist{id: id, dist: dist})
	}

	// Sort by distance
	for i := 0; i < len(workQueue)-1; i++ {
		for j := i + 1; j < len(workQueue); j++ {
			if workQueue[j].dist < workQueue[i].dist {
				workQueue[i], workQueue[j] = workQueue[j], workQueue[i]
			}
		}
	}

	selected := make([]uint64, 0, m)

	for _, cand := range workQueue {
		if len(selected) >= m {
			break
		}

		candNode := idx.getNode(ctx, cand.id)
		if candNode == nil {
			continue
		}

		isGood := true
		for _, selID := range selected {
			selNode := idx.getNode(ctx, selID)
			if selNode == nil {
				continue
			}
			distToNeighbor := idx.distance(candNode.Vector(), selNode.Vector())
			if distToNeighbor < cand.dist {
				isGood = false
				break
			}
		}

		if isGood {
			selected = append(selected, cand.id)
		}
	}

	if len(selected) < m {
		for _, cand := range workQueue {
			if len(selected) >= m {
				break
			}
			alreadySelected := false
			for _, s := range selected {
				if s == cand.id {
					alreadySelected = true
					break
				}
			}
			if !alreadySelected {
				selected = append(selected, cand.id)
			}
		}
	}

	return selected
}

// SearchKNN finds the k nearest neighbors
func (idx *PersistentIndex) SearchKNN(query *types.Vector, k int) ([]SearchResult, error) {
	return idx.SearchKNNWithEf(query, k, idx.config.EfSearch)
}

// SearchKNNWithEf finds the k nearest neighbors with custom ef
func (idx *PersistentIndex) SearchKNNWithEf(query *types.Vector, k int, ef int) ([]SearchResult, error) {
	if query.Dimension() != idx.config.Dimension {
		return nil, ErrDimensionMismatch
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.nodeCount == 0 {
		return []SearchResult{}, nil
	}

	ctx := retriever.NewContext(idx.pager)
	if err := ctx.Begin(); err != nil {
		return nil, err
	}
	defer ctx.Abort()

	ep := idx.entryPoint

	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.searchLayerClosest(ctx, query, ep, l)
	}

	if ef < k {
		ef = k
	}
	candidates := idx.searchLayer(ctx, query, ep, ef, 0)

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, nodeID := range candidates {
		node := idx.getNode(ctx, nodeID)
		if node == nil {
			continue
		}
		results = append(results, SearchResult{
			RowID:    node.RowID(),
			Distance: idx.distance(query, node.Vector()),
		})
	}

	// Sort by distance
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Distance < results[i].Distance {
				results[i], results[j] = results[j], results[i]
			}
		}
	}

	return results, nil
}

// Delete removes a node by rowID. This is a tombstone-only removal: the
// node's back-edges are unlinked so it drops out of graph traversal, but its
// tuple is never physically reclaimed.
func (idx *PersistentIndex) Delete(rowID int64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ctx := retriever.NewContext(idx.pager)
	if err := ctx.Begin(); err != nil {
		return false
	}
	if err := ctx.StartMutating(); err != nil {
		ctx.Abort()
		return false
	}

	var target *HNSWNode
	var targetID uint64
	idx.forEachNode(ctx, func(id uint64, node *HNSWNode) bool {
		if node.rowID == rowID {
			target = node
			targetID = id
			return false
		}
		return true
	})

	if target == nil {
		ctx.Abort()
		return false
	}

	for level := 0; level <= target.level; level++ {
		for _, neighborID := range target.Neighbors(level) {
			if err := idx.removeBackEdge(ctx, neighborID, level, targetID); err != nil {
				ctx.Abort()
				return false
			}
		}
	}

	idx.tombstones[targetID] = true
	idx.nodeCount--

	if idx.entryPoint == targetID {
		idx.updateEntryPoint(ctx)
	}

	if err := idx.writeMeta(ctx); err != nil {
		ctx.Abort()
		return false
	}
	return ctx.Commit() == nil
}

// removeBackEdge drops targetID from neighborID's level-l neighbor list.
func (idx *PersistentIndex) removeBackEdge(ctx *retriever.Context, neighborID uint64, level int, targetID uint64) error {
	if neighborID == invalidNodeID || idx.tombstones[neighborID] {
		return nil
	}

	return idx.rewriteTuple(ctx, neighborID, func(t *pagelayout.NodeTuple) {
		if level > int(t.Level) {
			return
		}
		targetSlot := nodeIDToSlot(targetID)
		kept := t.Neighbors[level][:0]
		for _, s := range t.Neighbors[level] {
			if s != targetSlot {
				kept = append(kept, s)
			}
		}
		t.Neighbors[level] = kept
	})
}

// updateEntryPoint finds a new entry point after deletion
func (idx *PersistentIndex) updateEntryPoint(ctx *retriever.Context) {
	if idx.nodeCount == 0 {
		idx.entryPoint = invalidNodeID
		idx.maxLevel = -1
		return
	}

	maxLevel := -1
	newEntryPoint := invalidNodeID
	idx.forEachNode(ctx, func(id uint64, node *HNSWNode) bool {
		if node.level > maxLevel {
			maxLevel = node.level
			newEntryPoint = id
		}
		return true
	})

	idx.entryPoint = newEntryPoint
	idx.maxLevel = maxLevel
}

// Sync flushes changes to disk
func (idx *PersistentIndex) Sync() error {
	return idx.pager.Sync()
}

// Update updates the vector for an existing rowID
// Returns true if the rowID was found and updated, false otherwise
func (idx *PersistentIndex) Update(rowID int64, newVector *types.Vector) (bool, error) {
	if newVector.Dimension() != idx.config.Dimension {
		return false, ErrDimensionMismatch
	}

	// First delete the old entry
	if !idx.Delete(rowID) {
		return false, nil
	}

	// Then insert the new one
	if err := idx.Insert(rowID, newVector); err != nil {
		return false, err
	}

	return true, nil
}

// GetByRowID retrieves the vector for a given rowID
// Returns nil if not found
func (idx *PersistentIndex) GetByRowID(rowID int64) *types.Vector {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx := retriever.NewContext(idx.pager)
	if err := ctx.Begin(); err != nil {
		return nil
	}
	defer ctx.Abort()

	var found *types.Vector
	idx.forEachNode(ctx, func(id uint64, node *HNSWNode) bool {
		if node.rowID == rowID {
			found = node.vector
			return false
		}
		return true
	})
	return found
}

// Contains checks if a rowID exists in the index
func (idx *PersistentIndex) Contains(rowID int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ctx := retriever.NewContext(idx.pager)
	if err := ctx.Begin(); err != nil {
		return false
	}
	defer ctx.Abort()

	found := false
	idx.forEachNode(ctx, func(id uint64, node *HNSWNode) bool {
		if node.rowID == rowID {
			found = true
			return false
		}
		return true
	})
	return found
}

// randFloat returns a random float64 between 0 and 1
func randFloat() float64 {
	return rand.Float64()
}
