package ivf

// DirectMapMode selects how (if at all) external ids are indexed back to
// their (list, offset) location.
type DirectMapMode int

const (
	// DirectMapNone disables reconstruct/remove/update-by-id.
	DirectMapNone DirectMapMode = iota
	// DirectMapArray requires dense, contiguous external ids in [0, ntotal).
	DirectMapArray
	// DirectMapHash supports arbitrary sparse external ids.
	DirectMapHash
)

// DirectMap is the optional external-id -> lo-handle index. Invariant: for
// every live entry at (list, offset) with id x, Array/Hash mode satisfies
// get(x) == packLo(list, offset), and vice versa.
type DirectMap struct {
	mode  DirectMapMode
	array []int64         // dense: array[id] = lo-handle, or -1 if id has no entry (-1 assignment)
	hash  map[int64]int64 // sparse: id -> lo-handle
}

// NewDirectMap returns a DirectMap in the given mode.
func NewDirectMap(mode DirectMapMode) *DirectMap {
	dm := &DirectMap{mode: mode}
	if mode == DirectMapHash {
		dm.hash = make(map[int64]int64)
	}
	return dm
}

func (dm *DirectMap) Mode() DirectMapMode { return dm.mode }

// CheckCanAdd rejects insertions that would violate Array mode's
// contiguous-ids requirement when the caller supplies explicit non-matching ids.
func (dm *DirectMap) CheckCanAdd(ids []int64, ntotal int64) error {
	if dm.mode != DirectMapArray || ids == nil {
		return nil
	}
	for i, id := range ids {
		if id != ntotal+int64(i) {
			return newErr(KindInvariant, "ivf: direct map in Array mode requires sequential ids starting at ntotal, got id %d at position %d (expected %d)", id, i, ntotal+int64(i))
		}
	}
	return nil
}

// Get resolves an external id to its lo-handle. The second return is false
// if the id has no entry or the direct map is disabled.
func (dm *DirectMap) Get(id int64) (int64, bool) {
	switch dm.mode {
	case DirectMapArray:
		if id < 0 || int(id) >= len(dm.array) {
			return 0, false
		}
		lo := dm.array[id]
		return lo, lo != -1
	case DirectMapHash:
		lo, ok := dm.hash[id]
		return lo, ok
	default:
		return 0, false
	}
}

// Set records id -> lo. In Array mode it grows the backing slice as needed.
func (dm *DirectMap) Set(id, lo int64) {
	switch dm.mode {
	case DirectMapArray:
		for int64(len(dm.array)) <= id {
			dm.array = append(dm.array, -1)
		}
		dm.array[id] = lo
	case DirectMapHash:
		dm.hash[id] = lo
	}
}

// Delete removes id's entry.
func (dm *DirectMap) Delete(id int64) {
	switch dm.mode {
	case DirectMapArray:
		if id >= 0 && int(id) < len(dm.array) {
			dm.array[id] = -1
		}
	case DirectMapHash:
		delete(dm.hash, id)
	}
}

// Clear discards every entry.
func (dm *DirectMap) Clear() {
	dm.array = nil
	if dm.mode == DirectMapHash {
		dm.hash = make(map[int64]int64)
	}
}
