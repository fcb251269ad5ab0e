// Package vecindex exposes the HNSW graph engine and its on-page
// persistence as the thin, host-agnostic contract a relational engine's
// index access method would call: build, insert, and scan. Planning, DDL
// parsing, and vacuum/bulk-delete cost accounting stay on the host side —
// this package only implements what the access method needs from the index
// itself, named after the operations in the storage engine's access-method
// table (ambuild/aminsert/ambeginscan/amrescan/amgettuple/amendscan).
package vecindex

import (
	"context"
	"errors"
	"fmt"

	"vecindex/pkg/hnsw"
	"vecindex/pkg/pager"
	"vecindex/pkg/types"
)

const (
	// MaxDimension bounds a vector to what fits in one data page's node
	// tuple alongside its neighbor lists at the page size this module
	// targets (4096-byte pages, worst case b1 MMax0=256 neighbor slots).
	MaxDimension = 4096
)

var (
	// ErrBadConfig is returned by ParseCreateParams/NewAccessMethod for an
	// unsupported or self-contradictory configuration.
	ErrBadConfig = errors.New("vecindex: invalid index configuration")
	// ErrScanClosed is returned by Scan methods after Close.
	ErrScanClosed = errors.New("vecindex: scan already closed")
)

// CreateParams models the WITH (...) configuration keys a CREATE INDEX
// statement would carry for this access method. Parsing the statement
// itself is the host's job; this struct is what survives that parse.
type CreateParams struct {
	Dim            int
	M              int
	EfConstruction int
	EfSearch       int
	Metric         types.DistanceMetric
	Quantization   types.Quantization

	// PQ and External name features (product-quantization codebook
	// training and an out-of-process remote builder) that this module
	// does not implement; ParseCreateParams accepts the keys so a caller
	// can surface a precise configuration error instead of an unknown-key
	// parse failure, but NewAccessMethod refuses to build with either set.
	PQ            bool
	NumCentroids  int
	NumSubvectors int
	External      bool
}

// ParseCreateParams adapts a WITH (...) key/value map (as a planner would
// hand to the access method after parsing CREATE INDEX ... WITH (...)) into
// a CreateParams. Unknown keys are rejected; missing Dim is an error.
func ParseCreateParams(kv map[string]string) (CreateParams, error) {
	p := CreateParams{
		M:              16,
		EfConstruction: 128,
		EfSearch:       64,
		Metric:         types.DistanceMetricL2Squared,
		Quantization:   types.QuantizationF32,
	}

	for key, val := range kv {
		var err error
		switch key {
		case "dim", "dimensions":
			p.Dim, err = parseIntKey(key, val)
		case "m":
			p.M, err = parseIntKey(key, val)
		case "ef_construction":
			p.EfConstruction, err = parseIntKey(key, val)
		case "ef_search":
			p.EfSearch, err = parseIntKey(key, val)
		case "metric":
			p.Metric, err = types.ParseDistanceMetric(val)
		case "quantization":
			p.Quantization, err = types.ParseQuantization(val)
		case "pq":
			p.PQ, err = parseBoolKey(key, val)
		case "num_centroids":
			p.NumCentroids, err = parseIntKey(key, val)
		case "num_subvectors":
			p.NumSubvectors, err = parseIntKey(key, val)
		case "external":
			p.External, err = parseBoolKey(key, val)
		default:
			err = fmt.Errorf("%w: unknown option %q", ErrBadConfig, key)
		}
		if err != nil {
			return CreateParams{}, err
		}
	}

	if p.Dim <= 0 {
		return CreateParams{}, fmt.Errorf("%w: dim is required and must be positive", ErrBadConfig)
	}
	if p.Dim > MaxDimension {
		return CreateParams{}, fmt.Errorf("%w: dim %d exceeds maximum %d", ErrBadConfig, p.Dim, MaxDimension)
	}
	if p.M > 128 {
		return CreateParams{}, fmt.Errorf("%w: m %d exceeds maximum 128", ErrBadConfig, p.M)
	}
	if p.Metric == types.DistanceMetricHamming && p.Quantization != types.QuantizationB1 {
		return CreateParams{}, fmt.Errorf("%w: hamming metric requires b1 quantization", ErrBadConfig)
	}

	return p, nil
}

func parseIntKey(key, val string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
		return 0, fmt.Errorf("%w: option %q: %v", ErrBadConfig, key, err)
	}
	return n, nil
}

func parseBoolKey(key, val string) (bool, error) {
	switch val {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("%w: option %q: not a boolean", ErrBadConfig, key)
	}
}

func (p CreateParams) toConfig() hnsw.Config {
	cfg := hnsw.DefaultConfig(p.Dim)
	cfg.M = p.M
	cfg.MMax0 = p.M * 2
	cfg.EfConstruction = p.EfConstruction
	cfg.EfSearch = p.EfSearch
	cfg.DistanceMetric = p.Metric
	cfg.Quantization = p.Quantization
	return cfg
}

// BuildStats summarizes a bulk Build call, the way an access method reports
// back to the planner/DDL executor after ambuild.
type BuildStats struct {
	NumVectors int
	MaxLevel   int
}

// YieldFunc is supplied by the host to stream (rowID, vector) pairs for a
// bulk Build. Returning false from yield stops the scan early.
type YieldFunc func(rowID int64, v *types.Vector) bool

// AccessMethod is the host-facing contract: build the index from a full
// table scan, insert incrementally afterward, and answer K-NN scans.
type AccessMethod struct {
	idx *hnsw.PersistentIndex
}

// BuildEmpty creates an empty, persisted index ready for incremental
// Insert calls — the access method's ambuildempty, used for unlogged
// relations whose init fork starts with zero rows.
func BuildEmpty(p *pager.Pager, params CreateParams) (*AccessMethod, error) {
	if params.PQ {
		return nil, fmt.Errorf("%w: product-quantization codebook training is not implemented by this index", ErrBadConfig)
	}
	if params.External {
		return nil, fmt.Errorf("%w: external/remote builder protocol is not implemented by this index", ErrBadConfig)
	}

	idx, err := hnsw.CreatePersistent(p, params.toConfig())
	if err != nil {
		return nil, err
	}
	return &AccessMethod{idx: idx}, nil
}

// Build creates a new persisted index and populates it from a full scan
// supplied by the host, mirroring ambuild: everything is constructed before
// the index is handed back, rather than node by node under WAL batching.
func Build(p *pager.Pager, params CreateParams, scan func(yield YieldFunc)) (*AccessMethod, BuildStats, error) {
	am, err := BuildEmpty(p, params)
	if err != nil {
		return nil, BuildStats{}, err
	}

	var stats BuildStats
	var insertErr error
	scan(func(rowID int64, v *types.Vector) bool {
		if err := am.idx.Insert(rowID, v); err != nil {
			insertErr = err
			return false
		}
		stats.NumVectors++
		return true
	})
	if insertErr != nil {
		return nil, BuildStats{}, insertErr
	}

	stats.MaxLevel = am.idx.MaxLevel()
	return am, stats, nil
}

// Open reopens a persisted index at an already-known meta page, the way a
// host reattaches to an existing relation file on each backend startup.
func Open(p *pager.Pager, metaPageNo uint32) (*AccessMethod, error) {
	idx, err := hnsw.OpenPersistent(p, metaPageNo)
	if err != nil {
		return nil, err
	}
	return &AccessMethod{idx: idx}, nil
}

// MetaPage returns the index's header page number, for a host to persist
// alongside its own catalog entry for this relation.
func (am *AccessMethod) MetaPage() uint32 {
	return am.idx.MetaPage()
}

// Insert adds one row incrementally — aminsert.
func (am *AccessMethod) Insert(rowID int64, v *types.Vector) error {
	return am.idx.Insert(rowID, v)
}

// BulkDelete is a no-op: this index only ever tombstones a row (handled by
// the host dropping it from the entry-point/neighbor traversal results via
// its own visibility check), it never physically reclaims graph nodes.
func (am *AccessMethod) BulkDelete() error { return nil }

// VacuumCleanup is a no-op for the same reason: no physical reclamation or
// compaction of graph storage is implemented.
func (am *AccessMethod) VacuumCleanup() error { return nil }

// Scan is a K-NN scan cursor — ambeginscan/amgettuple/amendscan collapsed
// into one Go-idiomatic iterator type.
type Scan struct {
	am     *AccessMethod
	hits   []hnsw.SearchResult
	cursor int
	closed bool
}

// BeginScan starts a K-NN scan for the k nearest rows to query.
func (am *AccessMethod) BeginScan(ctx context.Context, query *types.Vector, k int) (*Scan, error) {
	s := &Scan{am: am}
	if err := s.Rescan(ctx, query, k); err != nil {
		return nil, err
	}
	return s, nil
}

// Rescan restarts the scan with a new query vector/k, without allocating a
// new cursor — amrescan.
func (s *Scan) Rescan(ctx context.Context, query *types.Vector, k int) error {
	if s.closed {
		return ErrScanClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	hits, err := s.am.idx.SearchKNN(query, k)
	if err != nil {
		return err
	}
	s.hits = hits
	s.cursor = 0
	return nil
}

// GetTuple returns the next (rowID, distance) pair, or ok=false when the
// scan is exhausted — amgettuple.
func (s *Scan) GetTuple() (rowID int64, distance float32, ok bool) {
	if s.closed || s.cursor >= len(s.hits) {
		return 0, 0, false
	}
	hit := s.hits[s.cursor]
	s.cursor++
	return hit.RowID, hit.Distance, true
}

// Close releases the scan's resources — amendscan. Idempotent.
func (s *Scan) Close() error {
	s.closed = true
	s.hits = nil
	return nil
}
