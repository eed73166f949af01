package ivf

import (
	"math"

	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/quantizer"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// TrainsAlone selects how level1Quantizer.Train drives the coarse quantizer.
type TrainsAlone int

const (
	// TrainsAloneDefault runs k-means on the input and resets+adds the
	// resulting centroids to the quantizer.
	TrainsAloneDefault TrainsAlone = 0
	// TrainsAloneYes delegates fully: the quantizer clusters itself.
	TrainsAloneYes TrainsAlone = 1
	// TrainsAloneL2Explicit requires an L2 metric; centroids are added
	// without resetting the quantizer first.
	TrainsAloneL2Explicit TrainsAlone = 2
)

// level1Quantizer owns the coarse quantizer lifecycle: training strategy,
// nlist, and the little-endian list-id codec used as the coarse code
// prefix of every entry.
type level1Quantizer struct {
	q            quantizer.CoarseQuantizer
	nlist        int
	trainsAlone  TrainsAlone
	codeSize     int // coarse_code_size, in bytes
}

func newLevel1Quantizer(q quantizer.CoarseQuantizer, nlist int, strategy TrainsAlone) *level1Quantizer {
	return &level1Quantizer{
		q:           q,
		nlist:       nlist,
		trainsAlone: strategy,
		codeSize:    coarseCodeSize(nlist),
	}
}

// coarseCodeSize returns ceil(log2(max(1, nlist-1)+1)/8) bytes — the
// minimum byte count sufficient to represent nlist-1.
func coarseCodeSize(nlist int) int {
	maxID := nlist - 1
	if maxID < 1 {
		maxID = 1
	}
	bits := 0
	for v := maxID; v > 0; v >>= 1 {
		bits++
	}
	return (bits + 7) / 8
}

// encodeListno writes list as unsigned little-endian into the coarse code
// slot of the wrapper's codeSize width.
func (l *level1Quantizer) encodeListno(list int64, out []byte) {
	v := uint64(list)
	for i := 0; i < l.codeSize; i++ {
		out[i] = byte(v)
		v >>= 8
	}
}

// decodeListno inverts encodeListno and asserts the result is in [0, nlist).
func (l *level1Quantizer) decodeListno(code []byte) int64 {
	var v uint64
	for i := l.codeSize - 1; i >= 0; i-- {
		v = (v << 8) | uint64(code[i])
	}
	list := int64(v)
	if list < 0 || list >= int64(l.nlist) {
		panic("ivf: decoded list id out of range")
	}
	return list
}

// train implements the quantizer_trains_alone strategies. If the quantizer
// already reports ntotal == nlist centroids, training is a no-op.
func (l *level1Quantizer) train(vectors []vector.Vector, m metric.Metric, metricType string) error {
	if l.q.IsTrained() && l.q.Ntotal() == l.nlist {
		return nil
	}

	switch l.trainsAlone {
	case TrainsAloneYes:
		data := make([]vector.Vector, len(vectors))
		copy(data, vectors)
		if err := l.q.TrainQuantizer(data, l.nlist); err != nil {
			return err
		}
		if l.q.Ntotal() != l.nlist {
			return newErr(KindInvariant, "ivf: quantizer trained with ntotal=%d, want nlist=%d", l.q.Ntotal(), l.nlist)
		}
		return nil
	case TrainsAloneL2Explicit:
		if metricType != "l2" {
			return newErr(KindInvariant, "ivf: quantizer_trains_alone=2 requires metric=l2")
		}
		centroids := kmeansCluster(vectors, l.nlist, m, 25, false)
		l.q.Reset()
		return l.q.AddCentroids(centroids)
	default: // TrainsAloneDefault
		spherical := metricType == "ip" || metricType == "dot"
		centroids := kmeansCluster(vectors, l.nlist, m, 25, spherical)
		l.q.Reset()
		return l.q.AddCentroids(centroids)
	}
}

// kmeansCluster runs Lloyd's algorithm to nlist centroids. When spherical is
// true (inner-product metric), centroids are renormalized to unit length
// after every update, matching the source's spherical k-means for IP.
func kmeansCluster(vectors []vector.Vector, nlist int, m metric.Metric, maxIter int, spherical bool) []vector.Vector {
	n := len(vectors)
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
			if spherical {
				vector.NormalizeInPlace(centroids[c].Data)
			}
		}
	}
	return centroids
}
