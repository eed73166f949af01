package flat

import (
	"math"
	"sort"
	"sync"

	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Quantizer is a brute-force nearest-centroid coarse quantizer: the "fresh
// flat L2 assigner" the IVF core's quantizer_trains_alone == 2 strategy
// uses when no auxiliary clustering index is supplied, and a general
// CoarseQuantizer usable for strategy 0 as well.
type Quantizer struct {
	mu        sync.RWMutex
	dim       int
	metric    metric.Metric
	centroids []vector.Vector
}

// NewQuantizer returns an untrained flat coarse quantizer over dim-dimensional
// vectors scored by m.
func NewQuantizer(dim int, m metric.Metric) *Quantizer {
	return &Quantizer{dim: dim, metric: m}
}

func (q *Quantizer) Dimension() int { return q.dim }

func (q *Quantizer) IsTrained() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.centroids) > 0
}

func (q *Quantizer) Ntotal() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.centroids)
}

// Reset discards every centroid.
func (q *Quantizer) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.centroids = nil
}

// AddCentroids appends already-computed centroids without reclustering.
func (q *Quantizer) AddCentroids(centroids []vector.Vector) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.centroids = append(q.centroids, centroids...)
	return nil
}

// Centroids returns the quantizer's current centroids, for callers
// persisting the quantizer's trained state alongside an owning index.
func (q *Quantizer) Centroids() []vector.Vector {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]vector.Vector, len(q.centroids))
	copy(out, q.centroids)
	return out
}

// LoadCentroids replaces the quantizer's centroids wholesale, restoring a
// state persisted via Centroids without rerunning k-means.
func (q *Quantizer) LoadCentroids(centroids []vector.Vector) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.centroids = centroids
}

// TrainQuantizer clusters vectors into nlist centroids via Lloyd's
// algorithm, satisfying quantizer_trains_alone == 1 for a flat quantizer.
func (q *Quantizer) TrainQuantizer(vectors []vector.Vector, nlist int) error {
	centroids := lloydKMeans(vectors, nlist, q.metric, 25)
	q.mu.Lock()
	q.centroids = centroids
	q.mu.Unlock()
	return nil
}

// Assign returns each query's single nearest centroid, or -1 if untrained.
func (q *Quantizer) Assign(queries [][]float32) []int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]int64, len(queries))
	for i, query := range queries {
		out[i] = q.nearest(query)
	}
	return out
}

func (q *Quantizer) nearest(query []float32) int64 {
	if len(q.centroids) == 0 {
		return -1
	}
	best, bestDist := int64(0), float32(math.Inf(1))
	for i, c := range q.centroids {
		d := q.metric.Distance(query, c.Data)
		if d < bestDist {
			bestDist, best = d, int64(i)
		}
	}
	return best
}

// Search returns, per query, the nprobe nearest centroids and their
// distances, ascending, padded with (-1, +Inf) when there are fewer than
// nprobe centroids.
func (q *Quantizer) Search(queries [][]float32, nprobe int) ([][]int64, [][]float32) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := make([][]int64, len(queries))
	dists := make([][]float32, len(queries))
	for qi, query := range queries {
		type cand struct {
			id   int64
			dist float32
		}
		cands := make([]cand, len(q.centroids))
		for i, c := range q.centroids {
			cands[i] = cand{int64(i), q.metric.Distance(query, c.Data)}
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

		rowIDs := make([]int64, nprobe)
		rowDist := make([]float32, nprobe)
		for j := 0; j < nprobe; j++ {
			if j < len(cands) {
				rowIDs[j] = cands[j].id
				rowDist[j] = cands[j].dist
			} else {
				rowIDs[j] = -1
				rowDist[j] = float32(math.Inf(1))
			}
		}
		ids[qi] = rowIDs
		dists[qi] = rowDist
	}
	return ids, dists
}

// lloydKMeans runs standard (non-spherical) Lloyd's algorithm to nlist
// centroids, shared by Quantizer.TrainQuantizer.
func lloydKMeans(vectors []vector.Vector, nlist int, m metric.Metric, maxIter int) []vector.Vector {
	n := len(vectors)
	if n == 0 || nlist <= 0 {
		return nil
	}
	dim := len(vectors[0].Data)
	centroids := make([]vector.Vector, nlist)
	step := n / nlist
	if step < 1 {
		step = 1
	}
	for i := 0; i < nlist; i++ {
		src := i * step
		if src >= n {
			src = n - 1
		}
		centroids[i] = vector.Vector{ID: int64(i), Data: vector.Copy(vectors[src].Data)}
	}

	assignments := make([]int, n)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, float32(math.Inf(1))
			for c, centroid := range centroids {
				d := m.Distance(v.Data, centroid.Data)
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			if assignments[i] != best {
				changed = true
			}
			assignments[i] = best
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float32, nlist)
		counts := make([]int, nlist)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += v.Data[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c].Data[d] = sums[c][d] / float32(counts[c])
			}
		}
	}
	return centroids
}
