package ivf

import (
	"context"
	"math"

	"github.com/ivfgo/ivfgo/pkg/vector"
)

// Reconstruct recovers the stored vector for id, requiring a direct map.
func (idx *Index) Reconstruct(id int64) ([]float32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.directMap.Mode() == DirectMapNone {
		return nil, ErrNoDirectMap
	}
	lo, ok := idx.directMap.Get(id)
	if !ok {
		return nil, newErr(KindInvariant, "ivf: no entry for id %d", id)
	}
	return idx.reconstructFromOffset(loListno(lo), loOffset(lo))
}

func (idx *Index) reconstructFromOffset(list, offset int64) ([]float32, error) {
	code := idx.lists.GetSingleCode(list, offset)
	residual := code[idx.quantizer.codeSize:]
	return idx.codec.ReconstructFromOffset(list, residual)
}

// ReconstructN recovers every stored vector whose id lies in [i0, i0+ni).
// Works without a direct map by scanning every list — O(ntotal) by design.
func (idx *Index) ReconstructN(i0, ni int64) ([]vector.Vector, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]vector.Vector, 0, ni)
	for l := int64(0); l < int64(idx.nlist); l++ {
		ids := idx.lists.GetIDs(l)
		for off, id := range ids {
			if id < i0 || id >= i0+ni {
				continue
			}
			v, err := idx.reconstructFromOffset(l, int64(off))
			if err != nil {
				return nil, err
			}
			out = append(out, vector.Vector{ID: id, Data: v})
		}
	}
	return out, nil
}

// SearchAndReconstruct runs Search with store_pairs semantics internally,
// returning both the search results and the reconstructed vector for each.
// Slots whose label resolves to -1 (unused heap slot) get a NaN-filled
// reconstruction.
func (idx *Index) SearchAndReconstruct(ctx context.Context, queries [][]float32, k int, nprobe int) ([][]vector.SearchResult, [][][]float32, error) {
	idx.mu.RLock()
	if !idx.trained {
		idx.mu.RUnlock()
		return nil, nil, ErrNotTrained
	}
	if nprobe <= 0 {
		nprobe = idx.nprobe
	}
	probeIDs, probeDist := idx.quantizer.q.Search(queries, nprobe)
	idx.mu.RUnlock()

	idx.mu.RLock()
	heaps, _, _, err := idx.searchPreassigned(ctx, queries, k, probeIDs, probeDist, true, nil)
	idx.mu.RUnlock()
	if err != nil {
		return nil, nil, err
	}

	results := make([][]vector.SearchResult, len(queries))
	recon := make([][][]float32, len(queries))
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for qi, h := range heaps {
		dist, labels := h.Sorted()
		results[qi] = make([]vector.SearchResult, len(dist))
		recon[qi] = make([][]float32, len(dist))
		for i, lo := range labels {
			if lo < 0 {
				results[qi][i] = vector.SearchResult{ID: -1, Distance: dist[i]}
				recon[qi][i] = nanVector(idx.dim)
				continue
			}
			list, offset := loListno(lo), loOffset(lo)
			realID := idx.lists.GetSingleID(list, offset)
			results[qi][i] = vector.SearchResult{ID: realID, Distance: dist[i]}
			v, err := idx.reconstructFromOffset(list, offset)
			if err != nil {
				return nil, nil, err
			}
			recon[qi][i] = v
		}
	}
	return results, recon, nil
}

func nanVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(math.NaN())
	}
	return v
}
