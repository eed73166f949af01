package ivf

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivfgo/ivfgo/internal/interrupt"
	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// regionCounts accumulates the (nlistv, ndis, nheap) reduction tuple over a
// parallel region, mirroring the source's OpenMP reduction(+:...) clause.
type regionCounts struct {
	nlistv int64
	ndis   int64
	nheap  int64
}

// Search runs Search with the index's default nprobe.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]vector.SearchResult, error) {
	return idx.SearchFiltered(ctx, query, k, nil)
}

// SearchFiltered is Search with an optional id-exclusion filter; see
// SearchNFiltered.
func (idx *Index) SearchFiltered(ctx context.Context, query []float32, k int, filter *codec.FilterBitset) ([]vector.SearchResult, error) {
	idx.mu.RLock()
	nprobe := idx.nprobe
	idx.mu.RUnlock()
	results, err := idx.SearchNFiltered(ctx, [][]float32{query}, k, nprobe, filter)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// BatchSearch runs SearchN with the index's default nprobe.
func (idx *Index) BatchSearch(ctx context.Context, queries [][]float32, k int) ([][]vector.SearchResult, error) {
	idx.mu.RLock()
	nprobe := idx.nprobe
	idx.mu.RUnlock()
	return idx.SearchN(ctx, queries, k, nprobe)
}

// SearchN finds the k nearest neighbors of each query, probing nprobe lists.
func (idx *Index) SearchN(ctx context.Context, queries [][]float32, k int, nprobe int) ([][]vector.SearchResult, error) {
	return idx.SearchNFiltered(ctx, queries, k, nprobe, nil)
}

// SearchNFiltered is SearchN with an optional id-exclusion filter: any id
// set (Test returns true) in filter is skipped during the list scan and
// never reaches a query's result heap. A nil filter behaves exactly like
// SearchN.
func (idx *Index) SearchNFiltered(ctx context.Context, queries [][]float32, k int, nprobe int, filter *codec.FilterBitset) ([][]vector.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained {
		return nil, ErrNotTrained
	}
	if len(queries) == 0 {
		return [][]vector.SearchResult{}, nil
	}
	for _, q := range queries {
		if len(q) != idx.dim {
			return nil, ErrDimensionMismatch
		}
	}
	if nprobe <= 0 {
		nprobe = idx.nprobe
	}

	start := time.Now()
	probeIDs, probeDist := idx.quantizer.q.Search(queries, nprobe)
	idx.counters.AddQuantizationTime(time.Since(start))
	idx.lists.PrefetchLists(flatten(probeIDs))

	heaps, _, _, err := idx.searchPreassigned(ctx, queries, k, probeIDs, probeDist, false, filter)
	if err != nil {
		return nil, err
	}

	out := make([][]vector.SearchResult, len(queries))
	for qi, h := range heaps {
		dist, ids := h.Sorted()
		res := make([]vector.SearchResult, 0, len(dist))
		for i := range dist {
			if ids[i] < 0 {
				continue
			}
			res = append(res, vector.SearchResult{ID: ids[i], Distance: dist[i]})
		}
		out[qi] = res
	}
	idx.counters.AddSearchTime(time.Since(start))
	return out, nil
}

// searchPreassigned scans already-probed lists for every query, honoring
// idx.parallel. storePairs and filter are threaded through to the scanner.
// Returns one ResultHeap per query.
func (idx *Index) searchPreassigned(ctx context.Context, queries [][]float32, k int, probeIDs [][]int64, probeDist [][]float32, storePairs bool, filter *codec.FilterBitset) ([]*ResultHeap, int64, int64, error) {
	sig := interrupt.FromContext(ctx)
	nq := len(queries)
	heaps := make([]*ResultHeap, nq)
	for i := range heaps {
		heaps[i] = NewResultHeap(k)
	}

	workers := idx.numWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var totalNlist, totalNdis, totalNheap int64
	var interruptedFlag atomic.Bool

	switch idx.parallel {
	case ParallelByQuery:
		type acc struct{ nlistv, ndis, nheap int64 }
		accs := make([]acc, workers)
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
			w := w
			g.Go(func() error {
				scanner := idx.codec.NewScanner(storePairs)
				for qi := lo; qi < hi; qi++ {
					if sig.Interrupted() {
						interruptedFlag.Store(true)
						return nil
					}
					scanner.SetQuery(queries[qi])
					var scanned int64
					for p, list := range probeIDs[qi] {
						if list < 0 || int(list) >= idx.nlist {
							continue
						}
						if idx.lists.ListSize(list) == 0 {
							continue
						}
						if idx.maxCodes > 0 && scanned >= int64(idx.maxCodes) {
							break
						}
						scanner.SetList(list, probeDist[qi][p])
						ids := idx.lists.GetIDs(list)
						codes := idx.lists.GetCodes(list)
						var idsArg []int64
						if !storePairs {
							idsArg = ids
						}
						updates := scanner.ScanCodes(codes, idsArg, heaps[qi], filter)
						accs[w].nlistv++
						accs[w].ndis += int64(len(ids))
						accs[w].nheap += int64(updates)
						scanned += int64(len(ids))
					}
				}
				return nil
			})
		}
		_ = g.Wait()
		for _, a := range accs {
			totalNlist += a.nlistv
			totalNdis += a.ndis
			totalNheap += a.nheap
		}

	case ParallelByProbe:
		for qi := 0; qi < nq; qi++ {
			if sig.Interrupted() {
				interruptedFlag.Store(true)
				break
			}
			probes := probeIDs[qi]
			dists := probeDist[qi]
			privateHeaps := make([]*ResultHeap, workers)
			counts := make([]regionCounts, workers)
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
				privateHeaps[w] = NewResultHeap(k)
				g.Go(func() error {
					scanner := idx.codec.NewScanner(storePairs)
					scanner.SetQuery(queries[qi])
					for p := lo; p < hi; p++ {
						list := probes[p]
						if list < 0 || int(list) >= idx.nlist || idx.lists.ListSize(list) == 0 {
							continue
						}
						scanner.SetList(list, dists[p])
						ids := idx.lists.GetIDs(list)
						codes := idx.lists.GetCodes(list)
						var idsArg []int64
						if !storePairs {
							idsArg = ids
						}
						updates := scanner.ScanCodes(codes, idsArg, privateHeaps[w], filter)
						counts[w].nlistv++
						counts[w].ndis += int64(len(ids))
						counts[w].nheap += int64(updates)
					}
					return nil
				})
			}
			_ = g.Wait()
			// barrier-guarded merge: fold every private heap into the query's final heap.
			for w := 0; w < workers; w++ {
				if privateHeaps[w] == nil {
					continue
				}
				heaps[qi].AddFrom(privateHeaps[w])
				totalNlist += counts[w].nlistv
				totalNdis += counts[w].ndis
				totalNheap += counts[w].nheap
			}
		}

	default:
		return nil, 0, 0, ErrUnsupportedParallelMode
	}

	idx.counters.Nq.Add(int64(nq))
	idx.counters.Nlist.Add(totalNlist)
	idx.counters.Ndis.Add(totalNdis)
	idx.counters.NheapUpdates.Add(totalNheap)

	if interruptedFlag.Load() {
		return nil, 0, 0, ErrInterrupted
	}
	return heaps, totalNlist, totalNdis, nil
}

func flatten(ids [][]int64) []int64 {
	var out []int64
	for _, row := range ids {
		out = append(out, row...)
	}
	return out
}

