// Package codec defines the vector-encoding contract consumed by the IVF
// search core: turning a raw float32 vector into a fixed-width byte code
// (optionally list-dependent, e.g. a residual encoding), and scanning a
// posting list's codes against a query.
package codec

import "github.com/willf/bitset"

// FilterBitset excludes candidate ids from a search. A nil FilterBitset
// admits every id.
type FilterBitset struct {
	bits *bitset.BitSet
}

// NewFilterBitset returns a bitset-backed filter sized for ids up to size-1.
func NewFilterBitset(size uint) *FilterBitset {
	return &FilterBitset{bits: bitset.New(size)}
}

// Exclude marks id as filtered out.
func (f *FilterBitset) Exclude(id int64) {
	if f == nil || id < 0 {
		return
	}
	f.bits.Set(uint(id))
}

// Test reports whether id is excluded. A nil receiver admits every id.
func (f *FilterBitset) Test(id int64) bool {
	if f == nil || f.bits == nil {
		return false
	}
	return f.bits.Test(uint(id))
}

// Codec encodes vectors into per-entry byte codes and, optionally, trains a
// residual model and reconstructs vectors from their stored code.
type Codec interface {
	// CodeSize returns the fixed width in bytes of one entry's code.
	CodeSize() int

	// TrainResidual fits any secondary model (e.g. product-quantizer
	// codebooks) from sample vectors and their assigned list ids. A codec
	// with no secondary model (e.g. FlatCodec) treats this as a no-op.
	TrainResidual(vectors [][]float32, listAssignments []int64) error

	// EncodeVectors writes n codes of CodeSize() bytes each into out.
	// listAssignments carries the list each vector was routed to so
	// residual codecs can subtract the coarse centroid; pass nil ids if the
	// codec does not need list context.
	EncodeVectors(vectors [][]float32, listAssignments []int64, out []byte)

	// ReconstructFromOffset decodes a single stored code back into a
	// dim-length float32 vector, given the list it lives in (residual
	// codecs add the list's centroid back in).
	ReconstructFromOffset(list int64, code []byte) ([]float32, error)

	// NewScanner returns a per-goroutine Scanner. storePairs, when true,
	// tells the scanner to emit lo-handles instead of external ids — used by
	// search-and-reconstruct.
	NewScanner(storePairs bool) Scanner
}

// Scanner scores a single posting list's codes against one query vector.
type Scanner interface {
	// SetQuery binds the query vector used by subsequent SetList/ScanCodes calls.
	SetQuery(query []float32)

	// SetList configures the scanner for list id `list` whose centroid is at
	// coarse distance `coarseDistance` from the bound query.
	SetList(list int64, coarseDistance float32)

	// ScanCodes scores every entry in a posting list and pushes candidates
	// into the caller-provided bounded heap. ids may be nil; when nil, the
	// positional offset within the list doubles as the id lookup key via the
	// store-pairs lo-handle convention. Returns the number of heap updates.
	ScanCodes(codes []byte, ids []int64, heap HeapSink, filter *FilterBitset) int

	// ScanCodesRange appends every entry within radius to out. Returns
	// ErrRangeUnsupported if the codec has no meaningful radius semantics.
	ScanCodesRange(codes []byte, ids []int64, radius float32, out *RangeBuffer, filter *FilterBitset) error
}

// HeapSink is the subset of ResultHeap a Scanner needs to push candidates.
// Defined here (not in pkg/index/ivf) so pkg/codec has no import cycle back
// to the IVF core.
type HeapSink interface {
	Push(distance float32, id int64) bool
}

// RangeBuffer accumulates (id, distance) pairs found during a range scan.
type RangeBuffer struct {
	IDs       []int64
	Distances []float32
}

// Append adds one candidate to the buffer.
func (b *RangeBuffer) Append(id int64, distance float32) {
	b.IDs = append(b.IDs, id)
	b.Distances = append(b.Distances, distance)
}
