package pq

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ivfgo/ivfgo/pkg/index/stats"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Config configures a standalone PQ index.
type Config struct {
	M     int // number of subspaces
	Nbits int // bits per subspace code, determines Ksub = 2^Nbits
}

// Index is a flat index over product-quantized codes: every stored vector
// is compressed to an M-byte (or M-uint16) code and scored against queries
// with asymmetric distance computation, trading a small accuracy loss for
// a large memory reduction versus storing raw float32 vectors.
type Index struct {
	mu  sync.RWMutex
	dim int
	pq  *ProductQuantizer
	// Ksub is the number of centroids per subspace, 2^Nbits.
	Ksub int

	ids   []int64
	codes []byte
}

// NewIndex validates config against dim and returns an untrained PQ index.
func NewIndex(dim int, config Config) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("pq: dimension must be positive")
	}
	m, err := metric.New(metric.L2)
	if err != nil {
		return nil, err
	}
	quantizer, err := NewProductQuantizer(dim, config.M, config.Nbits, m)
	if err != nil {
		return nil, err
	}
	return &Index{
		dim:  dim,
		pq:   quantizer,
		Ksub: quantizer.ksub,
	}, nil
}

// Train fits the per-subspace codebooks from sample vectors.
func (idx *Index) Train(vectors []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	raw := make([][]float32, len(vectors))
	for i, v := range vectors {
		raw[i] = v.Data
	}
	return idx.pq.TrainResidual(raw, nil)
}

// IsTrained reports whether the codebooks have been fit.
func (idx *Index) IsTrained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.pq.IsTrained()
}

// Add encodes and stores vectors. The index must be trained first.
func (idx *Index) Add(vectors []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.pq.IsTrained() {
		return fmt.Errorf("pq: index must be trained before adding vectors")
	}
	if err := vector.ValidateDimension(vectors, idx.dim); err != nil {
		return err
	}

	raw := make([][]float32, len(vectors))
	for i, v := range vectors {
		raw[i] = v.Data
	}
	stride := idx.pq.CodeSize()
	newCodes := make([]byte, len(vectors)*stride)
	idx.pq.EncodeVectors(raw, nil, newCodes)

	idx.codes = append(idx.codes, newCodes...)
	for _, v := range vectors {
		idx.ids = append(idx.ids, v.ID)
	}
	return nil
}

// Search scores every stored code against query via asymmetric distance
// computation and returns the k nearest.
func (idx *Index) Search(query []float32, k int) ([]vector.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.pq.IsTrained() {
		return nil, fmt.Errorf("pq: index must be trained before searching")
	}
	n := len(idx.ids)
	if n == 0 {
		return []vector.SearchResult{}, nil
	}

	tables := computeDistanceTables(idx.pq, query)
	stride := idx.pq.CodeSize()
	results := make([]vector.SearchResult, n)
	for i := 0; i < n; i++ {
		dist := asymmetricDistance(idx.pq, tables, idx.codes[i*stride:(i+1)*stride])
		results[i] = vector.SearchResult{ID: idx.ids[i], Distance: dist}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	if k <= 0 || k > n {
		k = n
	}
	return results[:k], nil
}

// BatchSearch runs Search for every query.
func (idx *Index) BatchSearch(queries [][]float32, k int) ([][]vector.SearchResult, error) {
	out := make([][]vector.SearchResult, len(queries))
	for i, q := range queries {
		res, err := idx.Search(q, k)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

// Size returns the number of stored vectors.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Stats returns index statistics, including the compression ratio versus
// storing raw float32 vectors.
func (idx *Index) Stats() stats.Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	codeSize := idx.pq.CodeSize()
	rawBytes := idx.dim * 4
	compressionRatio := float64(rawBytes) / float64(codeSize)

	return stats.Stats{
		TotalVectors:  len(idx.ids),
		Dimension:     idx.dim,
		IndexType:     "PQ",
		MemoryUsageMB: float64(len(idx.ids)*codeSize) / (1024 * 1024),
		ExtraInfo: map[string]any{
			"M":                idx.pq.m,
			"nbits":            idx.pq.nbits,
			"ksub":             idx.Ksub,
			"compressionRatio": compressionRatio,
		},
	}
}
