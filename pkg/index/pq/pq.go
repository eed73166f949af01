// Package pq implements product quantization: a vector is split into M
// subvectors, each independently vector-quantized against its own
// Ksub-centroid codebook, producing an M-byte (or M-uint16, for Nbits>8)
// compressed code. ProductQuantizer is the codec.Codec adapter the IVF
// search core uses as its residual encoder (IVF-PQ); Index is a standalone
// flat index over PQ codes for callers who want compression without IVF
// routing.
package pq

import (
	"fmt"
	"math"

	internalmath "github.com/ivfgo/ivfgo/internal/math"
	"github.com/ivfgo/ivfgo/pkg/codec"
	"github.com/ivfgo/ivfgo/pkg/metric"
)

// ProductQuantizer implements codec.Codec. Codes are not list-dependent —
// training and encoding act on the raw vector, not a coarse residual —
// which makes it usable both as an IVF-PQ codec (list context ignored) and
// as the engine behind the standalone Index.
type ProductQuantizer struct {
	dim, m, nbits, ksub, dsub int
	bytesPerSub               int         // 1 for nbits<=8, 2 for nbits in (8,16]
	codebooks                 [][]float32 // [m][ksub*dsub]
	metric                    metric.Metric
	trained                   bool
}

// NewProductQuantizer validates (dim, m, nbits) and returns an untrained
// product quantizer. dim must be divisible by m; nbits must be in [1,16].
func NewProductQuantizer(dim, m, nbits int, mtr metric.Metric) (*ProductQuantizer, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("pq: dimension must be positive")
	}
	if m <= 0 || dim%m != 0 {
		return nil, fmt.Errorf("pq: dimension %d must be divisible by M %d", dim, m)
	}
	if nbits <= 0 || nbits > 16 {
		return nil, fmt.Errorf("pq: nbits must be in [1,16], got %d", nbits)
	}
	bytesPerSub := 1
	if nbits > 8 {
		bytesPerSub = 2
	}
	return &ProductQuantizer{
		dim:         dim,
		m:           m,
		nbits:       nbits,
		ksub:        1 << nbits,
		dsub:        dim / m,
		bytesPerSub: bytesPerSub,
		metric:      mtr,
	}, nil
}

func (pq *ProductQuantizer) CodeSize() int { return pq.m * pq.bytesPerSub }

// IsTrained reports whether every subspace codebook has been fit.
func (pq *ProductQuantizer) IsTrained() bool { return pq.trained }

// Codebooks returns the trained per-subspace codebooks, for callers
// persisting the codec's trained state alongside an owning index.
func (pq *ProductQuantizer) Codebooks() [][]float32 { return pq.codebooks }

// LoadCodebooks restores codebooks persisted via Codebooks without
// rerunning k-means.
func (pq *ProductQuantizer) LoadCodebooks(codebooks [][]float32) {
	pq.codebooks = codebooks
	pq.trained = true
}

// TrainResidual fits one Ksub-centroid k-means codebook per subspace.
// listAssignments is ignored: plain PQ (unlike IVF-PQ's residual variant)
// quantizes the vector directly, not a coarse-centroid residual.
func (pq *ProductQuantizer) TrainResidual(vectors [][]float32, listAssignments []int64) error {
	if len(vectors) < pq.ksub {
		return fmt.Errorf("pq: need at least %d training vectors for Ksub=%d, got %d", pq.ksub, pq.ksub, len(vectors))
	}
	pq.codebooks = make([][]float32, pq.m)
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.dsub
		subVectors := make([][]float32, len(vectors))
		for i, v := range vectors {
			subVectors[i] = v[start : start+pq.dsub]
		}
		centroids := kMeansSubspace(subVectors, pq.ksub, 25)
		flat := make([]float32, pq.ksub*pq.dsub)
		for k := 0; k < pq.ksub; k++ {
			copy(flat[k*pq.dsub:(k+1)*pq.dsub], centroids[k])
		}
		pq.codebooks[sub] = flat
	}
	pq.trained = true
	return nil
}

// EncodeVectors writes each vector's per-subspace nearest-centroid indices
// into out, bytesPerSub bytes each.
func (pq *ProductQuantizer) EncodeVectors(vectors [][]float32, listAssignments []int64, out []byte) {
	stride := pq.CodeSize()
	for i, v := range vectors {
		pq.encodeOne(v, out[i*stride:(i+1)*stride])
	}
}

func (pq *ProductQuantizer) encodeOne(v []float32, out []byte) {
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.dsub
		subVector := v[start : start+pq.dsub]
		book := pq.codebooks[sub]
		best, bestDist := 0, float32(math.Inf(1))
		for k := 0; k < pq.ksub; k++ {
			centroid := book[k*pq.dsub : (k+1)*pq.dsub]
			d := internalmath.L2DistanceSquared(subVector, centroid)
			if d < bestDist {
				bestDist, best = d, k
			}
		}
		pq.putSubCode(out[sub*pq.bytesPerSub:(sub+1)*pq.bytesPerSub], best)
	}
}

func (pq *ProductQuantizer) putSubCode(dst []byte, code int) {
	if pq.bytesPerSub == 1 {
		dst[0] = byte(code)
		return
	}
	dst[0] = byte(code)
	dst[1] = byte(code >> 8)
}

func (pq *ProductQuantizer) getSubCode(src []byte) int {
	if pq.bytesPerSub == 1 {
		return int(src[0])
	}
	return int(src[0]) | int(src[1])<<8
}

// ReconstructFromOffset decodes a code back into an approximate dim-length
// vector by concatenating each subspace's chosen centroid. list is unused:
// plain PQ has no coarse centroid to add back.
func (pq *ProductQuantizer) ReconstructFromOffset(list int64, code []byte) ([]float32, error) {
	if !pq.trained {
		return nil, fmt.Errorf("pq: reconstruct requires a trained codebook")
	}
	out := make([]float32, pq.dim)
	for sub := 0; sub < pq.m; sub++ {
		k := pq.getSubCode(code[sub*pq.bytesPerSub : (sub+1)*pq.bytesPerSub])
		centroid := pq.codebooks[sub][k*pq.dsub : (k+1)*pq.dsub]
		copy(out[sub*pq.dsub:(sub+1)*pq.dsub], centroid)
	}
	return out, nil
}

// NewScanner returns a per-goroutine asymmetric-distance scanner.
func (pq *ProductQuantizer) NewScanner(storePairs bool) codec.Scanner {
	return &scanner{pq: pq, storePairs: storePairs}
}

// SACodeSize is the standalone per-entry encoding width (no coarse
// prefix — callers needing the IVF coarse_code_size + code_size form add
// it themselves, per ivf.Index.SACodeSize).
func (pq *ProductQuantizer) SACodeSize() int { return pq.CodeSize() }

// SAEncode writes each vector's standalone PQ code into a contiguous
// buffer of len(vectors)*SACodeSize() bytes.
func (pq *ProductQuantizer) SAEncode(vectors [][]float32) []byte {
	out := make([]byte, len(vectors)*pq.CodeSize())
	pq.EncodeVectors(vectors, nil, out)
	return out
}

// kMeansSubspace runs Lloyd's algorithm over dsub-dimensional subvectors.
func kMeansSubspace(vectors [][]float32, k int, maxIter int) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, k)
	step := len(vectors) / k
	if step < 1 {
		step = 1
	}
	for i := 0; i < k; i++ {
		src := i * step
		if src >= len(vectors) {
			src = len(vectors) - 1
		}
		centroids[i] = make([]float32, dim)
		copy(centroids[i], vectors[src])
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, float32(math.Inf(1))
			for j, c := range centroids {
				d := internalmath.L2DistanceSquared(v, c)
				if d < bestDist {
					bestDist, best = d, j
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

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := range v {
				sums[c][d] += v[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float32(counts[c])
			}
		}
	}
	return centroids
}
