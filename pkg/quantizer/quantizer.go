// Package quantizer defines the coarse-quantizer contract used by the IVF
// search core to route vectors to inverted lists.
package quantizer

import "github.com/ivfgo/ivfgo/pkg/vector"

// CoarseQuantizer assigns vectors to the nearest of nlist centroids and can
// answer nearest-centroid queries for a batch of vectors. Both flat.Index
// and hnsw.Index implement this so either can drive an IVF index.
type CoarseQuantizer interface {
	// Dimension returns the vector dimension this quantizer was built for.
	Dimension() int

	// IsTrained reports whether the quantizer holds ntotal == nlist centroids.
	IsTrained() bool

	// Ntotal returns the number of centroids currently held.
	Ntotal() int

	// TrainQuantizer builds ntotal centroids from the given training vectors.
	// For quantizers that "train alone" this both clusters and populates the
	// quantizer in one step.
	TrainQuantizer(vectors []vector.Vector, nlist int) error

	// Reset discards all centroids, returning the quantizer to untrained.
	Reset()

	// AddCentroids appends already-computed centroids without reclustering.
	AddCentroids(centroids []vector.Vector) error

	// Assign returns, for each query, the id of its single nearest centroid,
	// or -1 if the quantizer holds no centroids.
	Assign(queries [][]float32) []int64

	// Search returns, for each query, the nprobe nearest centroid ids and
	// their coarse distances (lower is always better, see pkg/metric), sorted
	// ascending. Missing probes (fewer centroids than nprobe) are padded with
	// id -1 and +Inf distance.
	Search(queries [][]float32, nprobe int) (ids [][]int64, distances [][]float32)
}
