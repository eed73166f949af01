// Package index defines the common surface every concrete index type
// (flat, hnsw, pq, ivf, ivfpq) exposes, so callers that don't need
// per-type features (IVF's nprobe, PQ's compression stats) can depend on
// one interface instead of a type switch.
package index

import "github.com/ivfgo/ivfgo/pkg/vector"

// Index is the basic vector-indexing contract shared by every concrete
// index type's simplest path. Types whose native Search takes extra
// arguments (IVF's nprobe, IVFPQ's nprobe) are adapted to it through
// pkg/search.Searcher rather than satisfying it directly.
type Index interface {
	Add(vectors []vector.Vector) error
	Search(query []float32, k int) ([]vector.SearchResult, error)
	Remove(id int64) error
	Size() int
}
