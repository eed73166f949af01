package ivf

import (
	"context"
	"testing"

	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/index/flat"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// newFlatIVF builds an IVF-Flat index: flat coarse quantizer, uncompressed
// flat codec, direct map enabled so Remove/Update round-trip tests can use
// it directly.
func newFlatIVF(t *testing.T, dim, nlist, nprobe int) *Index {
	t.Helper()
	m, err := metric.New(metric.L2)
	if err != nil {
		t.Fatal(err)
	}
	q := flat.NewQuantizer(dim, m)
	c := codec.NewFlatCodec(dim, m)
	cfg := Config{
		Metric:       "l2",
		Nlist:        nlist,
		Nprobe:       nprobe,
		ParallelMode: ParallelByQuery,
		DirectMap:    DirectMapHash,
	}
	idx, err := New(dim, q, c, cfg, TrainsAloneDefault)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func vecs(rows [][]float32) []vector.Vector {
	out := make([]vector.Vector, len(rows))
	for i, r := range rows {
		out[i] = vector.Vector{ID: int64(i), Data: r}
	}
	return out
}

// TestFourCornersRouting mirrors the textbook d=2, nlist=4 example: four
// well-separated clusters, one per quadrant, should each collapse onto
// their own coarse centroid once trained.
func TestFourCornersRouting(t *testing.T) {
	idx := newFlatIVF(t, 2, 4, 4)

	var train [][]float32
	corners := [][]float32{{-10, -10}, {-10, 10}, {10, -10}, {10, 10}}
	for _, c := range corners {
		for i := 0; i < 20; i++ {
			jitter := float32(i%5) * 0.01
			train = append(train, []float32{c[0] + jitter, c[1] + jitter})
		}
	}
	if err := idx.Train(vecs(train)); err != nil {
		t.Fatal(err)
	}
	if !idx.IsTrained() {
		t.Fatal("index must report trained after Train")
	}
	if err := idx.Add(vecs(train)); err != nil {
		t.Fatal(err)
	}
	if idx.Ntotal() != int64(len(train)) {
		t.Fatalf("want ntotal %d, got %d", len(train), idx.Ntotal())
	}

	results, err := idx.Search(context.Background(), []float32{10, 10}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("want 5 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Distance > 1 {
			t.Fatalf("result %+v is too far from the queried corner", r)
		}
	}
}

func TestSearchErrorsBeforeTrain(t *testing.T) {
	idx := newFlatIVF(t, 4, 4, 2)
	if _, err := idx.Search(context.Background(), []float32{0, 0, 0, 0}, 3); err != ErrNotTrained {
		t.Fatalf("want ErrNotTrained, got %v", err)
	}
	if err := idx.Add(vecs([][]float32{{0, 0, 0, 0}})); err != ErrNotTrained {
		t.Fatalf("want ErrNotTrained on Add, got %v", err)
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := newFlatIVF(t, 4, 2, 1)
	train := vector.GenerateRandom(40, 4, 1)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	err := idx.Add(vecs([][]float32{{1, 2, 3}}))
	if err == nil {
		t.Fatal("want a dimension mismatch error")
	}
}

// TestNprobeMonotonicity checks that widening nprobe never shrinks the
// result set recall-wise: every id found at nprobe=1 must still be found at
// nprobe=nlist (full scan).
func TestNprobeMonotonicity(t *testing.T) {
	idx := newFlatIVF(t, 8, 10, 1)
	train := vector.GenerateRandom(500, 8, 3)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}

	query := train[0].Data
	narrow, err := idx.SearchN(context.Background(), [][]float32{query}, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	wide, err := idx.SearchN(context.Background(), [][]float32{query}, 5, 10)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int64]bool)
	for _, r := range wide[0] {
		seen[r.ID] = true
	}
	for _, r := range narrow[0] {
		if !seen[r.ID] {
			t.Fatalf("id %d found at nprobe=1 but missing at nprobe=10", r.ID)
		}
	}
}

func TestParallelByQueryAndByProbeAgree(t *testing.T) {
	train := vector.GenerateRandom(300, 6, 9)
	query := train[5].Data

	byQuery := newFlatIVF(t, 6, 6, 3)
	if err := byQuery.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := byQuery.Add(train); err != nil {
		t.Fatal(err)
	}

	byProbe := newFlatIVF(t, 6, 6, 3)
	byProbe.parallel = ParallelByProbe
	if err := byProbe.Train(train); err != nil {
		t.Fatal(err)
	}
	// Share byQuery's trained quantizer state so both indexes route
	// identically and only the scan strategy differs.
	byProbe.quantizer = byQuery.quantizer
	if err := byProbe.Add(train); err != nil {
		t.Fatal(err)
	}

	r1, err := byQuery.Search(context.Background(), query, 5)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := byProbe.Search(context.Background(), query, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(r1) != len(r2) {
		t.Fatalf("result count differs: %d vs %d", len(r1), len(r2))
	}
	for i := range r1 {
		if r1[i].ID != r2[i].ID {
			t.Fatalf("position %d: ParallelByQuery found id %d, ParallelByProbe found %d", i, r1[i].ID, r2[i].ID)
		}
	}
}

func TestRemoveIDsRoundTrip(t *testing.T) {
	idx := newFlatIVF(t, 4, 4, 4)
	train := vector.GenerateRandom(100, 4, 11)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}

	removed, err := idx.RemoveIDs([]int64{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("want 3 removed, got %d", removed)
	}
	if idx.Ntotal() != 97 {
		t.Fatalf("want ntotal 97 after removal, got %d", idx.Ntotal())
	}

	// The removed ids must no longer surface in a full scan.
	results, err := idx.SearchN(context.Background(), [][]float32{train[0].Data}, 100, 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results[0] {
		if r.ID == 0 || r.ID == 1 || r.ID == 2 {
			t.Fatalf("removed id %d still present in search results", r.ID)
		}
	}
}

func TestRemoveIDsRequiresDirectMap(t *testing.T) {
	m, err := metric.New(metric.L2)
	if err != nil {
		t.Fatal(err)
	}
	q := flat.NewQuantizer(4, m)
	c := codec.NewFlatCodec(4, m)
	cfg := Config{Metric: "l2", Nlist: 2, Nprobe: 1, ParallelMode: ParallelByQuery, DirectMap: DirectMapNone}
	idx, err := New(4, q, c, cfg, TrainsAloneDefault)
	if err != nil {
		t.Fatal(err)
	}
	train := vector.GenerateRandom(40, 4, 2)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.RemoveIDs([]int64{0}); err != ErrNoDirectMap {
		t.Fatalf("want ErrNoDirectMap, got %v", err)
	}
}

// TestRangeSearchBoundaryInclusive checks that a vector exactly on the
// radius boundary is included, not excluded.
func TestRangeSearchBoundaryInclusive(t *testing.T) {
	idx := newFlatIVF(t, 2, 1, 1)
	train := vecs([][]float32{{0, 0}, {3, 4}, {100, 100}})
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}

	// distance(0,0 -> 3,4) == 25 under squared L2 (3^2+4^2).
	res, err := idx.RangeSearch(context.Background(), [][]float32{{0, 0}}, 25)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range res[0].IDs {
		if id == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("vector exactly at the radius boundary must be included")
	}
}

func TestMergeFromRequiresDirectMapDisabled(t *testing.T) {
	a := newFlatIVF(t, 4, 2, 1)
	b := newFlatIVF(t, 4, 2, 1)
	train := vector.GenerateRandom(40, 4, 5)
	a.Train(train)
	b.Train(train)
	a.Add(train)
	b.Add(train)

	if err := a.MergeFrom(b, 1000); err == nil {
		t.Fatal("want an error when direct maps are enabled on either side")
	}

	a.SetDirectMap(DirectMapNone)
	b.SetDirectMap(DirectMapNone)
	beforeA, beforeB := a.Ntotal(), b.Ntotal()
	if err := a.MergeFrom(b, 1000); err != nil {
		t.Fatal(err)
	}
	if a.Ntotal() != beforeA+beforeB {
		t.Fatalf("want merged ntotal %d, got %d", beforeA+beforeB, a.Ntotal())
	}
	if b.Ntotal() != 0 {
		t.Fatalf("source index must be emptied after merge, got ntotal %d", b.Ntotal())
	}
}

func TestCopySubsetToIDRange(t *testing.T) {
	src := newFlatIVF(t, 4, 2, 1)
	dst := newFlatIVF(t, 4, 2, 1)
	train := vector.GenerateRandom(50, 4, 6)
	src.Train(train)
	dst.Train(train)
	src.Add(train)

	if err := src.CopySubsetTo(dst, SubsetIDRange, 10, 20); err != nil {
		t.Fatal(err)
	}
	if dst.Ntotal() != 10 {
		t.Fatalf("want 10 entries copied for id range [10,20), got %d", dst.Ntotal())
	}
}

// TestCopySubsetToSharding checks that splitting an index into shards via
// SubsetSharding partitions every id disjointly and covers all of them,
// including when ids land unevenly across multiple lists.
func TestCopySubsetToSharding(t *testing.T) {
	src := newFlatIVF(t, 4, 1, 1)
	train := vector.GenerateRandom(4, 4, 7)
	if err := src.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := src.Add(train); err != nil {
		t.Fatal(err)
	}

	shardIDs := func(a1, a2 int64) map[int64]bool {
		dst := newFlatIVF(t, 4, 1, 1)
		if err := dst.Train(train); err != nil {
			t.Fatal(err)
		}
		if err := src.CopySubsetTo(dst, SubsetSharding, a1, a2); err != nil {
			t.Fatal(err)
		}
		got := map[int64]bool{}
		if dst.Ntotal() == 0 {
			return got
		}
		results, err := dst.SearchN(context.Background(), [][]float32{train[0].Data}, int(dst.Ntotal()), 1)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range results[0] {
			got[r.ID] = true
		}
		return got
	}

	shard0 := shardIDs(0, 2)
	shard1 := shardIDs(2, 4)

	if len(shard0) != 2 || len(shard1) != 2 {
		t.Fatalf("want 2 ids per shard, got %d and %d", len(shard0), len(shard1))
	}
	for id := range shard0 {
		if shard1[id] {
			t.Fatalf("id %d present in both shards, shards must be disjoint", id)
		}
	}
	all := map[int64]bool{}
	for id := range shard0 {
		all[id] = true
	}
	for id := range shard1 {
		all[id] = true
	}
	for id := int64(0); id < 4; id++ {
		if !all[id] {
			t.Fatalf("id %d missing from both shards, shards must cover every id", id)
		}
	}
}

// TestCopySubsetToShardingManyLists checks the accumulator-based bounds
// still produce a disjoint, covering partition when ids spread unevenly
// across several lists, not just a single list.
func TestCopySubsetToShardingManyLists(t *testing.T) {
	const n = 4
	src := newFlatIVF(t, 4, n, n)
	train := vector.GenerateRandom(97, 4, 13)
	if err := src.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := src.Add(train); err != nil {
		t.Fatal(err)
	}
	ntotal := src.Ntotal()

	seen := map[int64]int{}
	var total int64
	for k := int64(0); k < n; k++ {
		a1 := k * ntotal / n
		a2 := (k + 1) * ntotal / n
		dst := newFlatIVF(t, 4, n, n)
		if err := dst.Train(train); err != nil {
			t.Fatal(err)
		}
		if err := src.CopySubsetTo(dst, SubsetSharding, a1, a2); err != nil {
			t.Fatal(err)
		}
		total += dst.Ntotal()
		if dst.Ntotal() == 0 {
			continue
		}
		results, err := dst.SearchN(context.Background(), [][]float32{train[0].Data}, int(dst.Ntotal()), n)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range results[0] {
			seen[r.ID]++
		}
	}
	if total != ntotal {
		t.Fatalf("shards copied %d entries total, want %d (ntotal)", total, ntotal)
	}
	for id := int64(0); id < ntotal; id++ {
		if seen[id] != 1 {
			t.Fatalf("id %d copied to %d shards, want exactly 1", id, seen[id])
		}
	}
}

// TestRangeSearchDotMetricScoreThreshold checks that RangeSearch's radius
// is interpreted as a minimum inner-product score for the "dot" metric
// (score >= radius), not compared directly against pkg/metric's internally
// negated distance.
func TestRangeSearchDotMetricScoreThreshold(t *testing.T) {
	m, err := metric.New(metric.Dot)
	if err != nil {
		t.Fatal(err)
	}
	q := flat.NewQuantizer(2, m)
	c := codec.NewFlatCodec(2, m)
	cfg := Config{Metric: "dot", Nlist: 1, Nprobe: 1, ParallelMode: ParallelByQuery, DirectMap: DirectMapHash}
	idx, err := New(2, q, c, cfg, TrainsAloneDefault)
	if err != nil {
		t.Fatal(err)
	}

	vecs := []vector.Vector{
		{ID: 0, Data: []float32{1, 0}},    // dot with query (1,0) = 1
		{ID: 1, Data: []float32{0.5, 0}},  // dot = 0.5
		{ID: 2, Data: []float32{-1, 0}},   // dot = -1
	}
	if err := idx.Train(vecs); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}

	results, err := idx.RangeSearch(context.Background(), [][]float32{{1, 0}}, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if len(results[0].IDs) != 1 || results[0].IDs[0] != 0 {
		t.Fatalf("want only id 0 (score 1 >= 0.6), got %+v", results[0])
	}
}

// TestSearchFilteredExcludesID checks that an id excluded via a
// FilterBitset never surfaces from SearchFiltered, even though an
// unfiltered search returns it.
func TestSearchFilteredExcludesID(t *testing.T) {
	idx := newFlatIVF(t, 4, 2, 2)
	train := vector.GenerateRandom(20, 4, 5)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}

	query := train[0].Data
	unfiltered, err := idx.Search(context.Background(), query, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(unfiltered) == 0 || unfiltered[0].ID != 0 {
		t.Fatalf("want id 0 as nearest neighbor of its own vector, got %+v", unfiltered)
	}

	filter := codec.NewFilterBitset(uint(idx.Ntotal()))
	filter.Exclude(0)

	filtered, err := idx.SearchFiltered(context.Background(), query, 20, filter)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range filtered {
		if r.ID == 0 {
			t.Fatalf("excluded id 0 still present in filtered search results")
		}
	}
}

// TestRangeSearchFilteredExcludesID mirrors TestSearchFilteredExcludesID
// for the range-search path.
func TestRangeSearchFilteredExcludesID(t *testing.T) {
	idx := newFlatIVF(t, 4, 2, 2)
	train := vector.GenerateRandom(20, 4, 9)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(train); err != nil {
		t.Fatal(err)
	}

	query := train[0].Data
	unfiltered, err := idx.RangeSearch(context.Background(), [][]float32{query}, 1e9)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range unfiltered[0].IDs {
		if id == 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("want id 0 within an effectively unbounded radius, got %+v", unfiltered[0])
	}

	filter := codec.NewFilterBitset(uint(idx.Ntotal()))
	filter.Exclude(0)

	filtered, err := idx.RangeSearchFiltered(context.Background(), [][]float32{query}, 1e9, filter)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range filtered[0].IDs {
		if id == 0 {
			t.Fatalf("excluded id 0 still present in filtered range-search results")
		}
	}
}
