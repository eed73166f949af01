package hnsw

import (
	"math"

	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Quantizer adapts an HNSW graph into an IVF coarse quantizer: assigning a
// vector to a list means finding its nearest neighbor among the graph's
// indexed points. Graph-based quantizers are the natural fit for
// quantizer_trains_alone == 1 — the graph trains itself as points are
// added, rather than taking centroids computed by an outside clustering
// step.
type Quantizer struct {
	dim    int
	config Config
	idx    *Index

	// ordinal maps a graph node id back to its 0-based centroid ordinal.
	// The graph's own node ids must never leak out as list numbers —
	// level1Quantizer/encodeListno/AddEntry all assume Assign/Search return
	// values in [0,nlist), the same contract flat.Quantizer meets by
	// returning a centroid's slice index.
	ordinal  map[int64]int64
	nextNode int64
}

// NewQuantizer returns an untrained HNSW-backed coarse quantizer.
func NewQuantizer(dim int, metricType string, config Config) (*Quantizer, error) {
	idx, err := New(dim, metricType, config)
	if err != nil {
		return nil, err
	}
	return &Quantizer{dim: dim, config: config, idx: idx, ordinal: make(map[int64]int64)}, nil
}

func (q *Quantizer) Dimension() int { return q.dim }

func (q *Quantizer) IsTrained() bool { return q.idx.Size() > 0 }

func (q *Quantizer) Ntotal() int { return q.idx.Size() }

// Reset discards the graph, returning the quantizer to untrained.
func (q *Quantizer) Reset() {
	fresh, _ := New(q.dim, q.idx.metric.Name(), q.config)
	q.idx = fresh
	q.ordinal = make(map[int64]int64)
	q.nextNode = 0
}

// AddCentroids indexes already-chosen centroids into the graph without
// reclustering — used by strategy 0/2 callers that computed centroids
// elsewhere and just need them searchable. Each centroid is relabeled with
// a fresh graph-internal node id (never 0, which Index.Add treats as "auto
// assign") so its ordinal can be recovered later regardless of what id, if
// any, the caller's vector.Vector carried.
func (q *Quantizer) AddCentroids(centroids []vector.Vector) error {
	relabeled := make([]vector.Vector, len(centroids))
	base := int64(len(q.ordinal))
	for i, c := range centroids {
		q.nextNode++
		q.ordinal[q.nextNode] = base + int64(i)
		relabeled[i] = vector.Vector{ID: q.nextNode, Data: c.Data}
	}
	return q.idx.Add(relabeled)
}

// TrainQuantizer implements quantizer_trains_alone == 1: the graph is built
// directly over the training vectors, so nlist must equal len(vectors) —
// every training point becomes a centroid of the quantizer's own graph.
func (q *Quantizer) TrainQuantizer(vectors []vector.Vector, nlist int) error {
	q.Reset()
	sample := vectors
	if len(vectors) > nlist {
		sample = vectors[:nlist]
	}
	return q.AddCentroids(sample)
}

// Assign returns each query's single nearest indexed point, or -1 if the
// graph is empty.
func (q *Quantizer) Assign(queries [][]float32) []int64 {
	out := make([]int64, len(queries))
	for i, query := range queries {
		if q.idx.Size() == 0 {
			out[i] = -1
			continue
		}
		res, err := q.idx.Search(query, 1)
		if err != nil || len(res) == 0 {
			out[i] = -1
			continue
		}
		out[i] = q.toOrdinal(res[0].ID)
	}
	return out
}

// Search returns, per query, the nprobe nearest indexed points and their
// distances, padded with (-1, +Inf) when the graph holds fewer than nprobe
// points.
func (q *Quantizer) Search(queries [][]float32, nprobe int) ([][]int64, [][]float32) {
	ids := make([][]int64, len(queries))
	dists := make([][]float32, len(queries))
	for i, query := range queries {
		res, _ := q.idx.Search(query, nprobe)
		rowIDs := make([]int64, nprobe)
		rowDist := make([]float32, nprobe)
		for j := 0; j < nprobe; j++ {
			if j < len(res) {
				rowIDs[j] = q.toOrdinal(res[j].ID)
				rowDist[j] = res[j].Distance
			} else {
				rowIDs[j] = -1
				rowDist[j] = float32(math.Inf(1))
			}
		}
		ids[i] = rowIDs
		dists[i] = rowDist
	}
	return ids, dists
}

// toOrdinal translates a graph node id back to its centroid ordinal, or -1
// if the id was never assigned by this quantizer (should not happen).
func (q *Quantizer) toOrdinal(nodeID int64) int64 {
	ord, ok := q.ordinal[nodeID]
	if !ok {
		return -1
	}
	return ord
}
