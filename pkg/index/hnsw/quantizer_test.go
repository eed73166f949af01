package hnsw

import (
	"context"
	"testing"

	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/index/ivf"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// TestQuantizerAssignReturnsOrdinals checks that Assign/Search return
// 0-based centroid ordinals, not the external vector ids the caller
// happened to attach to its centroids (vector.GenerateRandom assigns ids
// 0..n-1, which is exactly the shape that used to leak straight through).
func TestQuantizerAssignReturnsOrdinals(t *testing.T) {
	q, err := NewQuantizer(4, "l2", DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	centroids := vector.GenerateRandom(5, 4, 1)
	if err := q.AddCentroids(centroids); err != nil {
		t.Fatal(err)
	}
	if q.Ntotal() != 5 {
		t.Fatalf("want 5 centroids, got %d", q.Ntotal())
	}

	assigned := q.Assign([][]float32{centroids[2].Data})
	if len(assigned) != 1 || assigned[0] != 2 {
		t.Fatalf("want ordinal 2 for centroids[2]'s own vector, got %v", assigned)
	}

	ids, _ := q.Search([][]float32{centroids[4].Data}, 1)
	if len(ids) != 1 || len(ids[0]) != 1 || ids[0][0] != 4 {
		t.Fatalf("want ordinal 4 for centroids[4]'s own vector, got %v", ids)
	}

	for _, row := range ids {
		for _, id := range row {
			if id < -1 || id >= 5 {
				t.Fatalf("ordinal %d outside [0,5) (or sentinel -1)", id)
			}
		}
	}
}

// TestQuantizerDrivesIVF wires an hnsw.Quantizer as an IVF index's coarse
// quantizer end-to-end: train, add, and search must all succeed, and every
// returned id must be one of the vectors actually added.
func TestQuantizerDrivesIVF(t *testing.T) {
	const dim, nlist, nprobe = 8, 6, 3
	q, err := NewQuantizer(dim, "l2", DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	m, err := metric.New(metric.L2)
	if err != nil {
		t.Fatal(err)
	}
	c := codec.NewFlatCodec(dim, m)
	cfg := ivf.Config{
		Metric:       "l2",
		Nlist:        nlist,
		Nprobe:       nprobe,
		ParallelMode: ivf.ParallelByQuery,
		DirectMap:    ivf.DirectMapHash,
	}
	idx, err := ivf.New(dim, q, c, cfg, ivf.TrainsAloneYes)
	if err != nil {
		t.Fatal(err)
	}

	train := vector.GenerateRandom(60, dim, 2)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}
	if idx.Ntotal() != 60 {
		t.Fatalf("want ntotal 60, got %d", idx.Ntotal())
	}

	results, err := idx.Search(context.Background(), train[0].Data, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("want at least one search result")
	}
	for _, r := range results {
		if r.ID < 0 || r.ID >= 60 {
			t.Fatalf("search returned id %d outside the added range [0,60)", r.ID)
		}
	}
}
