// Package flat implements a brute-force nearest-neighbor index: every
// search scores the query against every stored vector. It is the baseline
// exact-search index type and, via Quantizer, the "fresh flat L2 assigner"
// the IVF core's quantizer_trains_alone == 2 strategy asks for.
package flat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ivfgo/ivfgo/pkg/index/stats"
	internalmath "github.com/ivfgo/ivfgo/internal/math"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Index is a simple flat (brute-force) index.
type Index struct {
	dim        int
	metricType string
	metric     metric.Metric
	vectors    []vector.Vector
	mu         sync.RWMutex
}

// New constructs a flat index over dim-dimensional vectors scored by
// metricType ("l2", "cosine", or "dot").
func New(dim int, metricType string) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	m, err := metric.New(metric.Type(metricType))
	if err != nil {
		return nil, err
	}
	return &Index{
		dim:        dim,
		metricType: metricType,
		metric:     m,
		vectors:    make([]vector.Vector, 0),
	}, nil
}

// Add appends vectors to the index.
func (idx *Index) Add(vectors []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := vector.ValidateDimension(vectors, idx.dim); err != nil {
		return err
	}
	for _, v := range vectors {
		if idx.metricType == "cosine" {
			v.Norm = internalmath.Norm(v.Data)
		}
		idx.vectors = append(idx.vectors, v)
	}
	return nil
}

// Search scores every stored vector and returns the k nearest.
func (idx *Index) Search(query []float32, k int) ([]vector.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", idx.dim, len(query))
	}
	if k <= 0 || k > len(idx.vectors) {
		k = len(idx.vectors)
	}

	results := make([]vector.SearchResult, len(idx.vectors))
	for i, v := range idx.vectors {
		results[i] = vector.SearchResult{ID: v.ID, Distance: idx.metric.Distance(query, v.Data)}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
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
	return len(idx.vectors)
}

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Stats returns index statistics.
func (idx *Index) Stats() stats.Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return stats.Stats{
		TotalVectors:  len(idx.vectors),
		Dimension:     idx.dim,
		IndexType:     "Flat",
		MemoryUsageMB: float64(len(idx.vectors)*idx.dim*4) / (1024 * 1024),
		ExtraInfo: map[string]any{
			"metric": idx.metricType,
		},
	}
}
