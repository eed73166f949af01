package codec

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/ivfgo/ivfgo/pkg/metric"
)

// ErrRangeUnsupported is returned by a Scanner whose ScanCodesRange has no
// meaningful radius semantics for the underlying encoding.
var ErrRangeUnsupported = errors.New("codec: range scan not supported")

// FlatCodec stores each vector as its raw little-endian float32 bytes —
// the "no secondary compression" codec used by IVF-Flat. It performs no
// residual subtraction: codes are independent of the assigned list.
type FlatCodec struct {
	dim int
	m   metric.Metric
}

// NewFlatCodec returns a FlatCodec for dim-dimensional vectors scored by m.
func NewFlatCodec(dim int, m metric.Metric) *FlatCodec {
	return &FlatCodec{dim: dim, m: m}
}

func (c *FlatCodec) CodeSize() int { return 4 * c.dim }

func (c *FlatCodec) TrainResidual(vectors [][]float32, listAssignments []int64) error {
	return nil
}

func (c *FlatCodec) EncodeVectors(vectors [][]float32, listAssignments []int64, out []byte) {
	stride := c.CodeSize()
	for i, v := range vectors {
		off := i * stride
		for d := 0; d < c.dim; d++ {
			binary.LittleEndian.PutUint32(out[off+4*d:off+4*d+4], math.Float32bits(v[d]))
		}
	}
}

func (c *FlatCodec) ReconstructFromOffset(list int64, code []byte) ([]float32, error) {
	return decodeFloat32s(code, c.dim), nil
}

func (c *FlatCodec) NewScanner(storePairs bool) Scanner {
	return &flatScanner{dim: c.dim, m: c.m, storePairs: storePairs}
}

func decodeFloat32s(code []byte, dim int) []float32 {
	out := make([]float32, dim)
	for d := 0; d < dim; d++ {
		out[d] = math.Float32frombits(binary.LittleEndian.Uint32(code[4*d : 4*d+4]))
	}
	return out
}

type flatScanner struct {
	dim        int
	m          metric.Metric
	storePairs bool
	query      []float32
	list       int64
}

func (s *flatScanner) SetQuery(query []float32) { s.query = query }

func (s *flatScanner) SetList(list int64, coarseDistance float32) { s.list = list }

func (s *flatScanner) ScanCodes(codes []byte, ids []int64, heap HeapSink, filter *FilterBitset) int {
	stride := 4 * s.dim
	n := len(codes) / stride
	updates := 0
	for i := 0; i < n; i++ {
		id := lookupID(ids, i)
		if filter != nil && filter.Test(id) {
			continue
		}
		v := decodeFloat32s(codes[i*stride:(i+1)*stride], s.dim)
		dist := s.m.Distance(s.query, v)
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

func (s *flatScanner) ScanCodesRange(codes []byte, ids []int64, radius float32, out *RangeBuffer, filter *FilterBitset) error {
	stride := 4 * s.dim
	n := len(codes) / stride
	for i := 0; i < n; i++ {
		id := lookupID(ids, i)
		if filter != nil && filter.Test(id) {
			continue
		}
		v := decodeFloat32s(codes[i*stride:(i+1)*stride], s.dim)
		dist := s.m.Distance(s.query, v)
		if dist <= radius {
			label := id
			if s.storePairs {
				label = packLabel(s.list, int64(i))
			}
			out.Append(label, dist)
		}
	}
	return nil
}

func lookupID(ids []int64, offset int) int64 {
	if ids == nil {
		return int64(offset)
	}
	return ids[offset]
}

// packLabel mirrors pkg/index/ivf's lo-handle packing (32:32 split) without
// importing the ivf package, to avoid an import cycle between codec and ivf.
func packLabel(list, offset int64) int64 {
	return (list << 32) | (offset & 0xffffffff)
}
