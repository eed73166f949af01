package ivf

// SubsetType selects copy_subset_to's partition rule.
type SubsetType int

const (
	// SubsetIDRange copies entries whose id is in [a1, a2).
	SubsetIDRange SubsetType = 0
	// SubsetIDModulo copies entries where id % a1 == a2.
	SubsetIDModulo SubsetType = 1
	// SubsetSharding copies entries whose global rank falls in the
	// half-open range [a1, a2) out of idx.ntotal, where a1 and a2 are
	// absolute cumulative counts (not list-relative). A caller splitting
	// the index into n shards calls this once per shard k with
	// a1=k*ntotal/n, a2=(k+1)*ntotal/n.
	SubsetSharding SubsetType = 2
)

// MergeFrom requires identical dimension, nlist, code size and direct maps
// disabled on both sides, then appends other's lists onto self with ids
// shifted by addID, transferring ntotal and leaving other empty.
func (idx *Index) MergeFrom(other *Index, addID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if idx.dim != other.dim || idx.nlist != other.nlist || idx.lists.CodeSize() != other.lists.CodeSize() {
		return ErrIncompatibleMerge
	}
	if idx.directMap.Mode() != DirectMapNone || other.directMap.Mode() != DirectMapNone {
		return newErr(KindInvariant, "ivf: merge_from requires direct maps disabled on both sides")
	}

	if err := idx.lists.MergeFrom(other.lists, addID); err != nil {
		return err
	}
	idx.ntotal += other.ntotal
	other.ntotal = 0
	return nil
}

// CopySubsetTo copies a structural subset of this index's entries into
// other, according to subsetType and its parameters a1, a2.
func (idx *Index) CopySubsetTo(other *Index, subsetType SubsetType, a1, a2 int64) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if idx.dim != other.dim || idx.nlist != other.nlist || idx.lists.CodeSize() != other.lists.CodeSize() {
		return ErrIncompatibleMerge
	}

	var cumulative, accuA1, accuA2 int64
	ntotal := idx.ntotal

	for l := 0; l < idx.nlist; l++ {
		ids := idx.lists.GetIDs(int64(l))
		codes := idx.lists.GetCodes(int64(l))
		codeSize := idx.lists.CodeSize()

		switch subsetType {
		case SubsetIDRange:
			for off, id := range ids {
				if id >= a1 && id < a2 {
					code := codes[off*codeSize : (off+1)*codeSize]
					if _, err := other.lists.AddEntry(int64(l), id, code); err != nil {
						return err
					}
					other.ntotal++
				}
			}
		case SubsetIDModulo:
			for off, id := range ids {
				if a1 != 0 && id%a1 == a2 {
					code := codes[off*codeSize : (off+1)*codeSize]
					if _, err := other.lists.AddEntry(int64(l), id, code); err != nil {
						return err
					}
					other.ntotal++
				}
			}
		case SubsetSharding:
			// a1 and a2 are independent cumulative bounds over the whole
			// index (fractions of ntotal, not of each other). Track their
			// running allocations separately across lists — accuA1,
			// accuA2 — so each list's local [i1, i2) falls out as the
			// delta between this list's cumulative allocation and the
			// previous one, the same way FAISS's copy_subset_to avoids
			// drift without ever materializing a global offset array.
			listLen := int64(len(ids))
			nextCum := cumulative + listLen
			i1, i2, nextAccuA1, nextAccuA2 := shardRange(cumulative, nextCum, accuA1, accuA2, a1, a2, ntotal)
			accuA1, accuA2, cumulative = nextAccuA1, nextAccuA2, nextCum
			for off := i1; off < i2 && off < listLen; off++ {
				id := ids[off]
				code := codes[off*int64(codeSize) : (off+1)*int64(codeSize)]
				if _, err := other.lists.AddEntry(int64(l), id, code); err != nil {
					return err
				}
				other.ntotal++
			}
		default:
			return ErrUnsupportedParallelMode
		}
	}
	return nil
}

// shardRange computes list-local bounds [i1, i2) for SubsetSharding: the
// portion of the list spanning [prevCum, nextCum) whose global rank falls
// in [a1, a2) out of ntotal. accuA1/accuA2 are the caller's running
// cumulative allocations for a1/a2 as of prevCum; it also returns the
// updated allocations at nextCum for the caller to carry into the next
// list. i1/i2 are clamped to the list's own length.
func shardRange(prevCum, nextCum, accuA1, accuA2, a1, a2, ntotal int64) (i1, i2, nextAccuA1, nextAccuA2 int64) {
	if ntotal <= 0 {
		return 0, 0, accuA1, accuA2
	}
	nextAccuA1 = nextCum * a1 / ntotal
	nextAccuA2 = nextCum * a2 / ntotal
	i1 = nextAccuA1 - accuA1
	i2 = nextAccuA2 - accuA2
	listLen := nextCum - prevCum
	if i1 < 0 {
		i1 = 0
	}
	if i2 > listLen {
		i2 = listLen
	}
	if i1 > i2 {
		i1 = i2
	}
	return i1, i2, nextAccuA1, nextAccuA2
}

// ReplaceInvLists atomically swaps the inverted-lists container, returning
// the displaced container for the caller to discard (no implicit
// ownership — the spec models own_invlists as an explicit owner handle).
func (idx *Index) ReplaceInvLists(lists InvertedLists) InvertedLists {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old := idx.lists
	idx.lists = lists
	return old
}

// ToReadOnly transitions the inverted-lists container to read-only,
// returning false if the container does not support the transition.
func (idx *Index) ToReadOnly() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ro, ok := idx.lists.ToReadOnly()
	if !ok {
		return false
	}
	idx.lists = ro
	return true
}
