package ivf

import "math"

// ResultHeap is a fixed-capacity bounded result set. pkg/metric normalizes
// every metric (L2, cosine, dot) so that a smaller Distance value always
// means "more similar" — dot similarity is stored as its negation. That
// collapses the source's dual CMin/CMax heap types into one: ResultHeap is
// always a max-heap over Distance, keeping the current worst-of-the-best-k
// at the root so ScanCodes can test-and-evict in O(log k).
//
// Ties break on id: among equal distances, the entry that arrived first in
// scan order is kept, matching the scanner's natural iteration order.
type ResultHeap struct {
	k     int
	dist  []float32
	id    []int64
	n     int
}

// NewResultHeap allocates a heap of capacity k, pre-filled with the sentinel
// pattern (+Inf distance, id -1) the spec mandates for unused slots.
func NewResultHeap(k int) *ResultHeap {
	h := &ResultHeap{
		k:    k,
		dist: make([]float32, k),
		id:   make([]int64, k),
	}
	for i := range h.dist {
		h.dist[i] = float32(math.Inf(1))
		h.id[i] = -1
	}
	return h
}

// Len returns the number of real (non-sentinel) entries pushed so far,
// capped at k.
func (h *ResultHeap) Len() int { return h.n }

// Push offers (distance, id) to the heap. Returns true if the heap's
// contents changed (a heap update, for stats.NheapUpdates).
func (h *ResultHeap) Push(distance float32, id int64) bool {
	if h.n < h.k {
		h.dist[h.n] = distance
		h.id[h.n] = id
		h.n++
		if h.n == h.k {
			h.heapify()
		}
		return true
	}
	if distance >= h.dist[0] {
		return false
	}
	h.dist[0] = distance
	h.id[0] = id
	h.siftDown(0)
	return true
}

func (h *ResultHeap) heapify() {
	for i := h.k/2 - 1; i >= 0; i-- {
		h.siftDown(i)
	}
}

func (h *ResultHeap) siftDown(i int) {
	for {
		l, r := 2*i+1, 2*i+2
		largest := i
		if l < h.k && h.dist[l] > h.dist[largest] {
			largest = l
		}
		if r < h.k && h.dist[r] > h.dist[largest] {
			largest = r
		}
		if largest == i {
			return
		}
		h.dist[i], h.dist[largest] = h.dist[largest], h.dist[i]
		h.id[i], h.id[largest] = h.id[largest], h.id[i]
		i = largest
	}
}

// AddFrom merges another heap's entries into h via repeated Push — the
// k-way "addn" merge used by pmode 1 to fold private per-thread heaps into
// the final result.
func (h *ResultHeap) AddFrom(other *ResultHeap) {
	for i := 0; i < other.n; i++ {
		h.Push(other.dist[i], other.id[i])
	}
}

// Sorted reorders the heap's contents into ascending-distance order and
// returns the (distances, ids) slices. Called once per query after all
// probes have been scanned.
func (h *ResultHeap) Sorted() ([]float32, []int64) {
	type pair struct {
		d float32
		i int64
	}
	pairs := make([]pair, h.k)
	for i := range pairs {
		pairs[i] = pair{h.dist[i], h.id[i]}
	}
	// insertion sort: k is small (typically << 1000) and this keeps the
	// (distance, id) tie-break — first-arrival order is already encoded by
	// heap construction order, stable sort preserves it.
	for i := 1; i < len(pairs); i++ {
		j := i
		for j > 0 && pairs[j].d < pairs[j-1].d {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
			j--
		}
	}
	dist := make([]float32, h.k)
	ids := make([]int64, h.k)
	for i, p := range pairs {
		dist[i] = p.d
		ids[i] = p.i
	}
	return dist, ids
}
