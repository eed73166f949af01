// Package ivf implements the core of an Inverted-File vector index: a
// coarse-quantizer-routed collection of posting lists, searched by
// probing the nprobe nearest lists and merging per-list heap scans.
package ivf

import (
	"sync"

	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/index/stats"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/quantizer"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Index is an Inverted-File index over a pluggable coarse quantizer and
// vector codec.
type Index struct {
	mu sync.RWMutex

	dim         int
	metricType  string
	metric      metric.Metric
	nlist       int
	nprobe      int
	parallel    ParallelMode
	maxCodes    int
	numWorkers  int

	quantizer *level1Quantizer
	codec     codec.Codec
	lists     InvertedLists
	directMap *DirectMap

	trained    bool
	ntotal     int64
	minus1Seen int64 // vectors assigned list -1, counted toward ntotal per spec

	counters *stats.IVFCounters
}

// New constructs an untrained IVF index over q (coarse quantizer) and c
// (vector codec). strategy selects how Train drives q.
func New(dim int, q quantizer.CoarseQuantizer, c codec.Codec, cfg Config, strategy TrainsAlone) (*Index, error) {
	if dim <= 0 {
		return nil, newErr(KindInvariant, "ivf: dimension must be positive")
	}
	if cfg.Nlist <= 0 {
		return nil, newErr(KindInvariant, "ivf: nlist must be positive")
	}
	m, err := metric.New(metric.Type(cfg.Metric))
	if err != nil {
		return nil, err
	}

	codeSize := coarseCodeSize(cfg.Nlist) + c.CodeSize()
	idx := &Index{
		dim:        dim,
		metricType: cfg.Metric,
		metric:     m,
		nlist:      cfg.Nlist,
		nprobe:     cfg.Nprobe,
		parallel:   cfg.ParallelMode,
		maxCodes:   cfg.MaxCodes,
		numWorkers: cfg.NumWorkers,
		quantizer:  newLevel1Quantizer(q, cfg.Nlist, strategy),
		codec:      c,
		lists:      NewArrayInvertedLists(cfg.Nlist, codeSize),
		directMap:  NewDirectMap(cfg.DirectMap),
		counters:   stats.Default,
	}
	if idx.nprobe <= 0 {
		idx.nprobe = 1
	}
	return idx, nil
}

// SetStats redirects counter accumulation to a non-default sink.
func (idx *Index) SetStats(c *stats.IVFCounters) { idx.counters = c }

// SetDirectMap replaces the direct map mode, rebuilding its contents from
// the current inverted lists.
func (idx *Index) SetDirectMap(mode DirectMapMode) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.directMap = NewDirectMap(mode)
	if mode == DirectMapNone {
		return
	}
	for l := 0; l < idx.nlist; l++ {
		ids := idx.lists.GetIDs(int64(l))
		for off, id := range ids {
			idx.directMap.Set(id, packLo(int64(l), int64(off)))
		}
	}
}

// IsTrained reports whether both the coarse quantizer and the codec's
// residual model are trained.
func (idx *Index) IsTrained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

// Ntotal returns the number of vectors added, including -1-assigned ones.
func (idx *Index) Ntotal() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ntotal
}

func (idx *Index) Dimension() int { return idx.dim }
func (idx *Index) Nlist() int     { return idx.nlist }
func (idx *Index) Nprobe() int    { return idx.nprobe }

// SetNprobe changes the default number of lists probed per query.
func (idx *Index) SetNprobe(nprobe int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.nprobe = nprobe
}

// Train fits the coarse quantizer and the codec's residual model.
func (idx *Index) Train(vectors []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := vector.ValidateDimension(vectors, idx.dim); err != nil {
		return err
	}
	if err := idx.quantizer.train(vectors, idx.metric, idx.metricType); err != nil {
		return err
	}

	data := make([][]float32, len(vectors))
	for i, v := range vectors {
		data[i] = v.Data
	}
	assignments := idx.quantizer.q.Assign(data)
	if err := idx.codec.TrainResidual(data, assignments); err != nil {
		return err
	}

	idx.trained = true
	return nil
}

// Add appends vectors with auto-assigned ids ntotal, ntotal+1, ….
func (idx *Index) Add(vectors []vector.Vector) error {
	return idx.AddWithIDs(vectors, nil)
}

// AddWithIDs appends vectors under caller-supplied external ids. If ids is
// nil, ids are auto-assigned starting at the current ntotal.
func (idx *Index) AddWithIDs(vectors []vector.Vector, ids []int64) error {
	if len(vectors) == 0 {
		return nil
	}
	if ids != nil && len(ids) != len(vectors) {
		return newErr(KindInvariant, "ivf: ids length must match vectors length")
	}

	// Blocking: recurse on chunks above AddBlockSize so a single add never
	// holds the lock across pathologically large batches.
	if len(vectors) > AddBlockSize {
		for start := 0; start < len(vectors); start += AddBlockSize {
			end := start + AddBlockSize
			if end > len(vectors) {
				end = len(vectors)
			}
			var chunkIDs []int64
			if ids != nil {
				chunkIDs = ids[start:end]
			}
			if err := idx.AddWithIDs(vectors[start:end], chunkIDs); err != nil {
				return err
			}
		}
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.trained {
		return ErrNotTrained
	}
	if err := vector.ValidateDimension(vectors, idx.dim); err != nil {
		return err
	}
	if err := idx.directMap.CheckCanAdd(ids, idx.ntotal); err != nil {
		return err
	}

	n := len(vectors)
	resolvedIDs := make([]int64, n)
	for i := range vectors {
		if ids != nil {
			resolvedIDs[i] = ids[i]
		} else {
			resolvedIDs[i] = idx.ntotal + int64(i)
		}
	}

	data := make([][]float32, n)
	for i, v := range vectors {
		data[i] = v.Data
	}
	listNos := idx.quantizer.q.Assign(data)

	residualCodeSize := idx.codec.CodeSize()
	residualCodes := make([]byte, n*residualCodeSize)
	idx.codec.EncodeVectors(data, listNos, residualCodes)

	fullCodeSize := idx.lists.CodeSize()
	for i := 0; i < n; i++ {
		list := listNos[i]
		id := resolvedIDs[i]

		if list < 0 {
			idx.directMap.Set(id, -1)
			continue
		}

		code := make([]byte, fullCodeSize)
		idx.quantizer.encodeListno(list, code)
		copy(code[idx.quantizer.codeSize:], residualCodes[i*residualCodeSize:(i+1)*residualCodeSize])

		offset, err := idx.lists.AddEntry(list, id, code)
		if err != nil {
			return err
		}
		idx.directMap.Set(id, packLo(list, offset))
	}

	idx.ntotal += int64(n)
	return nil
}

// Reset discards all entries and the direct map, keeping the trained
// quantizer and codec.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.lists = NewArrayInvertedLists(idx.nlist, idx.lists.CodeSize())
	idx.directMap.Clear()
	idx.ntotal = 0
}

// Stats returns a descriptive snapshot of the index, in the shape the
// rest of the module's index types use.
func (idx *Index) Stats() stats.Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	listSizes := make([]int, idx.nlist)
	for l := 0; l < idx.nlist; l++ {
		listSizes[l] = idx.lists.ListSize(int64(l))
	}
	codeMem := int(idx.ntotal) * idx.lists.CodeSize()

	return stats.Stats{
		TotalVectors:  int(idx.ntotal),
		Dimension:     idx.dim,
		IndexType:     "IVF",
		MemoryUsageMB: float64(codeMem) / (1024 * 1024),
		ExtraInfo: map[string]any{
			"metric":      idx.metricType,
			"nlist":       idx.nlist,
			"nprobe":      idx.nprobe,
			"trained":     idx.trained,
			"listSizes":   listSizes,
			"directMap":   idx.directMap.Mode(),
			"coarseCodeSize": idx.quantizer.codeSize,
		},
	}
}

// SACodeSize returns the standalone encoding width: coarse_code_size + code_size.
func (idx *Index) SACodeSize() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.lists.CodeSize()
}

// SAEncode writes each vector's standalone encoding — [list-id little-endian
// | residual code] — into a contiguous buffer of len(vectors)*SACodeSize() bytes.
func (idx *Index) SAEncode(vectors []vector.Vector) ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.trained {
		return nil, ErrNotTrained
	}
	data := make([][]float32, len(vectors))
	for i, v := range vectors {
		data[i] = v.Data
	}
	listNos := idx.quantizer.q.Assign(data)
	residualSize := idx.codec.CodeSize()
	residuals := make([]byte, len(vectors)*residualSize)
	idx.codec.EncodeVectors(data, listNos, residuals)

	full := idx.lists.CodeSize()
	out := make([]byte, len(vectors)*full)
	for i := range vectors {
		off := i * full
		list := listNos[i]
		if list < 0 {
			list = 0
		}
		idx.quantizer.encodeListno(list, out[off:off+idx.quantizer.codeSize])
		copy(out[off+idx.quantizer.codeSize:off+full], residuals[i*residualSize:(i+1)*residualSize])
	}
	return out, nil
}
