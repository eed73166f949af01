package pq

import (
	"errors"

	internalmath "github.com/ivfgo/ivfgo/internal/math"
	"github.com/ivfgo/ivfgo/pkg/codec"
)

// ErrRangeUnsupported is returned by scanner.ScanCodesRange: asymmetric PQ
// distances are approximate, so a hard radius cutoff has no well-defined
// meaning against them.
var ErrRangeUnsupported = errors.New("pq: range scan not supported")

// scanner implements codec.Scanner via asymmetric distance computation
// (ADC): for the bound query, precompute one distance table per subspace
// (query subvector against every one of that subspace's Ksub centroids),
// then score a code by summing the M looked-up entries — no decoding back
// to float32 required.
type scanner struct {
	pq         *ProductQuantizer
	storePairs bool
	query      []float32
	list       int64
	tables     []float32 // m*ksub, flattened
}

func (s *scanner) SetQuery(query []float32) {
	s.query = query
	s.tables = computeDistanceTables(s.pq, query)
}

func (s *scanner) SetList(list int64, coarseDistance float32) { s.list = list }

func (s *scanner) ScanCodes(codes []byte, ids []int64, heap codec.HeapSink, filter *codec.FilterBitset) int {
	stride := s.pq.CodeSize()
	n := len(codes) / stride
	updates := 0
	for i := 0; i < n; i++ {
		id := lookupID(ids, i)
		if filter != nil && filter.Test(id) {
			continue
		}
		dist := asymmetricDistance(s.pq, s.tables, codes[i*stride:(i+1)*stride])
		label := id
		if s.storePairs {
			label = packLabel(s.list, int64(i))
		}
		if heap.Push(dist, label) {
			updates++
		}
	}
	return updates
}

func (s *scanner) ScanCodesRange(codes []byte, ids []int64, radius float32, out *codec.RangeBuffer, filter *codec.FilterBitset) error {
	return ErrRangeUnsupported
}

// computeDistanceTables precomputes, for each of the m subspaces, the
// squared L2 distance from the query's subvector to each of the ksub
// codebook centroids.
func computeDistanceTables(pq *ProductQuantizer, query []float32) []float32 {
	tables := make([]float32, pq.m*pq.ksub)
	for sub := 0; sub < pq.m; sub++ {
		start := sub * pq.dsub
		qsub := query[start : start+pq.dsub]
		book := pq.codebooks[sub]
		for k := 0; k < pq.ksub; k++ {
			centroid := book[k*pq.dsub : (k+1)*pq.dsub]
			tables[sub*pq.ksub+k] = internalmath.L2DistanceSquared(qsub, centroid)
		}
	}
	return tables
}

// asymmetricDistance sums the m table lookups a code selects.
func asymmetricDistance(pq *ProductQuantizer, tables []float32, code []byte) float32 {
	var sum float32
	for sub := 0; sub < pq.m; sub++ {
		k := pq.getSubCode(code[sub*pq.bytesPerSub : (sub+1)*pq.bytesPerSub])
		sum += tables[sub*pq.ksub+k]
	}
	return sum
}

func lookupID(ids []int64, offset int) int64 {
	if ids == nil {
		return int64(offset)
	}
	return ids[offset]
}

// packLabel mirrors pkg/index/ivf's lo-handle packing (32:32 split) without
// importing the ivf package, matching pkg/codec's flatScanner convention.
func packLabel(list, offset int64) int64 {
	return (list << 32) | (offset & 0xffffffff)
}
