package ivf

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ivfgo/ivfgo/internal/interrupt"
	"github.com/ivfgo/ivfgo/pkg/codec"
)

// RangeResult holds every candidate within radius for one query.
type RangeResult struct {
	IDs       []int64
	Distances []float32
}

// RangeSearch returns every vector within radius of each query, probing the
// index's default nprobe lists. radius is always in the caller's natural
// units: for L2 it's a maximum distance (dist <= radius); for the "dot"
// metric it's a minimum inner-product score (score >= radius), matching
// FAISS's METRIC_INNER_PRODUCT range search. pkg/metric internally stores
// dot as -score so every metric's comparisons share one "smaller is
// better" convention — RangeSearch negates radius for that metric before
// scanning so the caller never has to know about the internal sign flip.
func (idx *Index) RangeSearch(ctx context.Context, queries [][]float32, radius float32) ([]RangeResult, error) {
	return idx.RangeSearchFiltered(ctx, queries, radius, nil)
}

// RangeSearchFiltered is RangeSearch with an optional id-exclusion filter:
// any id set in filter (Test returns true) is skipped during the list scan
// and never appears in a query's RangeResult. A nil filter behaves exactly
// like RangeSearch.
func (idx *Index) RangeSearchFiltered(ctx context.Context, queries [][]float32, radius float32, filter *codec.FilterBitset) ([]RangeResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.trained {
		return nil, ErrNotTrained
	}
	if len(queries) == 0 {
		return []RangeResult{}, nil
	}

	if idx.metricType == "dot" {
		radius = -radius
	}

	probeIDs, probeDist := idx.quantizer.q.Search(queries, idx.nprobe)
	return idx.rangeSearchPreassigned(ctx, queries, radius, probeIDs, probeDist, filter)
}

func (idx *Index) rangeSearchPreassigned(ctx context.Context, queries [][]float32, radius float32, probeIDs [][]int64, probeDist [][]float32, filter *codec.FilterBitset) ([]RangeResult, error) {
	sig := interrupt.FromContext(ctx)
	nq := len(queries)
	buffers := make([]*codec.RangeBuffer, nq)
	for i := range buffers {
		buffers[i] = &codec.RangeBuffer{}
	}

	workers := idx.numWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var interruptedFlag atomic.Bool

	switch idx.parallel {
	case ParallelByQuery:
		g, _ := errgroup.WithContext(context.Background())
		chunk := (nq + workers - 1) / workers
		if chunk < 1 {
			chunk = 1
		}
		for w := 0; w < workers; w++ {
			lo, hi := w*chunk, min((w+1)*chunk, nq)
			if lo >= hi {
				continue
			}
			g.Go(func() error {
				scanner := idx.codec.NewScanner(false)
				for qi := lo; qi < hi; qi++ {
					if sig.Interrupted() {
						interruptedFlag.Store(true)
						return nil
					}
					idx.scanQueryRange(scanner, queries[qi], probeIDs[qi], probeDist[qi], radius, buffers[qi], filter)
				}
				return nil
			})
		}
		_ = g.Wait()

	case ParallelByProbe:
		for qi := 0; qi < nq; qi++ {
			if sig.Interrupted() {
				interruptedFlag.Store(true)
				break
			}
			probes := probeIDs[qi]
			dists := probeDist[qi]
			partials := make([]*codec.RangeBuffer, workers)
			g, _ := errgroup.WithContext(context.Background())
			chunk := (len(probes) + workers - 1) / workers
			if chunk < 1 {
				chunk = 1
			}
			for w := 0; w < workers; w++ {
				lo, hi := w*chunk, min((w+1)*chunk, len(probes))
				if lo >= hi {
					continue
				}
				w, lo, hi := w, lo, hi
				partials[w] = &codec.RangeBuffer{}
				g.Go(func() error {
					scanner := idx.codec.NewScanner(false)
					scanner.SetQuery(queries[qi])
					idx.scanProbeRange(scanner, probes[lo:hi], dists[lo:hi], radius, partials[w], filter)
					return nil
				})
			}
			_ = g.Wait()
			for _, p := range partials {
				if p == nil {
					continue
				}
				buffers[qi].IDs = append(buffers[qi].IDs, p.IDs...)
				buffers[qi].Distances = append(buffers[qi].Distances, p.Distances...)
			}
		}

	case ParallelByQueryProbe:
		// Flatten the (query, probe) cartesian product and partition it
		// across workers; each worker's queries are visited in
		// non-decreasing order by construction of the flat index, so a
		// worker's result buckets never interleave two queries out of order.
		type job struct{ qi, p int }
		var jobs []job
		for qi := 0; qi < nq; qi++ {
			for p := range probeIDs[qi] {
				jobs = append(jobs, job{qi, p})
			}
		}
		g, _ := errgroup.WithContext(context.Background())
		chunk := (len(jobs) + workers - 1) / workers
		if chunk < 1 {
			chunk = 1
		}
		localBufs := make([]map[int]*codec.RangeBuffer, workers)
		for w := 0; w < workers; w++ {
			lo, hi := w*chunk, min((w+1)*chunk, len(jobs))
			if lo >= hi {
				continue
			}
			w, lo, hi := w, lo, hi
			localBufs[w] = make(map[int]*codec.RangeBuffer)
			g.Go(func() error {
				scanner := idx.codec.NewScanner(false)
				lastQI := -1
				for j := lo; j < hi; j++ {
					qi, p := jobs[j].qi, jobs[j].p
					if qi != lastQI {
						scanner.SetQuery(queries[qi])
						lastQI = qi
					}
					list := probeIDs[qi][p]
					if list < 0 || int(list) >= idx.nlist || idx.lists.ListSize(list) == 0 {
						continue
					}
					buf := localBufs[w][qi]
					if buf == nil {
						buf = &codec.RangeBuffer{}
						localBufs[w][qi] = buf
					}
					scanner.SetList(list, probeDist[qi][p])
					_ = scanner.ScanCodesRange(idx.lists.GetCodes(list), idx.lists.GetIDs(list), radius, buf, filter)
				}
				return nil
			})
		}
		_ = g.Wait()
		for _, m := range localBufs {
			for qi, buf := range m {
				buffers[qi].IDs = append(buffers[qi].IDs, buf.IDs...)
				buffers[qi].Distances = append(buffers[qi].Distances, buf.Distances...)
			}
		}

	default:
		return nil, ErrUnsupportedParallelMode
	}

	if interruptedFlag.Load() {
		return nil, ErrInterrupted
	}

	out := make([]RangeResult, nq)
	for i, b := range buffers {
		out[i] = RangeResult{IDs: b.IDs, Distances: b.Distances}
	}
	return out, nil
}

func (idx *Index) scanQueryRange(scanner codec.Scanner, query []float32, probes []int64, dists []float32, radius float32, buf *codec.RangeBuffer, filter *codec.FilterBitset) {
	scanner.SetQuery(query)
	idx.scanProbeRange(scanner, probes, dists, radius, buf, filter)
}

func (idx *Index) scanProbeRange(scanner codec.Scanner, probes []int64, dists []float32, radius float32, buf *codec.RangeBuffer, filter *codec.FilterBitset) {
	for p, list := range probes {
		if list < 0 || int(list) >= idx.nlist || idx.lists.ListSize(list) == 0 {
			continue
		}
		scanner.SetList(list, dists[p])
		_ = scanner.ScanCodesRange(idx.lists.GetCodes(list), idx.lists.GetIDs(list), radius, buf, filter)
	}
}
