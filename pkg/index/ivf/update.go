package ivf

import "github.com/ivfgo/ivfgo/pkg/vector"

// RemoveIDs deletes every entry whose id is in ids, via swap-with-tail, and
// updates the direct map for the moved tail entry. Returns the number of
// ids actually found and removed.
func (idx *Index) RemoveIDs(ids []int64) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.directMap.Mode() == DirectMapNone {
		return 0, ErrNoDirectMap
	}

	removed := 0
	for _, id := range ids {
		lo, ok := idx.directMap.Get(id)
		if !ok {
			continue
		}
		list, offset := loListno(lo), loOffset(lo)
		movedID, movedOffset, err := idx.lists.RemoveEntry(list, offset)
		if err != nil {
			return removed, err
		}
		idx.directMap.Delete(id)
		if movedID >= 0 {
			idx.directMap.Set(movedID, packLo(list, movedOffset))
		}
		removed++
		idx.ntotal--
	}
	return removed, nil
}

// UpdateVectors reassigns, re-encodes, and relocates the vectors stored
// under ids. Hashtable mode implements this as delete-then-re-add and
// requires every id to already exist; Array mode updates in place via
// DirectMap.update_codes semantics (swap-with-tail in the old list,
// append in the new list).
func (idx *Index) UpdateVectors(ids []int64, vectors []vector.Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(ids) != len(vectors) {
		return newErr(KindInvariant, "ivf: ids and vectors must have equal length")
	}
	if err := vector.ValidateDimension(vectors, idx.dim); err != nil {
		return err
	}

	switch idx.directMap.Mode() {
	case DirectMapNone:
		return ErrNoDirectMap

	case DirectMapHash:
		for _, id := range ids {
			if _, ok := idx.directMap.Get(id); !ok {
				return ErrMissingIDs
			}
		}
		for _, id := range ids {
			lo, _ := idx.directMap.Get(id)
			list, offset := loListno(lo), loOffset(lo)
			movedID, movedOffset, err := idx.lists.RemoveEntry(list, offset)
			if err != nil {
				return err
			}
			idx.directMap.Delete(id)
			if movedID >= 0 {
				idx.directMap.Set(movedID, packLo(list, movedOffset))
			}
			idx.ntotal--
		}
		return idx.addLocked(vectors, ids)

	default: // DirectMapArray
		for i, id := range ids {
			lo, ok := idx.directMap.Get(id)
			if !ok {
				return ErrMissingIDs
			}
			oldList, oldOffset := loListno(lo), loOffset(lo)

			data := [][]float32{vectors[i].Data}
			newList := idx.quantizer.q.Assign(data)[0]
			residualSize := idx.codec.CodeSize()
			residual := make([]byte, residualSize)
			idx.codec.EncodeVectors(data, []int64{newList}, residual)

			fullCodeSize := idx.lists.CodeSize()
			newCode := make([]byte, fullCodeSize)
			idx.quantizer.encodeListno(newList, newCode)
			copy(newCode[idx.quantizer.codeSize:], residual)

			if newList == oldList {
				if err := idx.lists.UpdateEntry(oldList, oldOffset, id, newCode); err != nil {
					return err
				}
				continue
			}

			movedID, movedOffset, err := idx.lists.RemoveEntry(oldList, oldOffset)
			if err != nil {
				return err
			}
			if movedID >= 0 {
				idx.directMap.Set(movedID, packLo(oldList, movedOffset))
			}
			newOffset, err := idx.lists.AddEntry(newList, id, newCode)
			if err != nil {
				return err
			}
			idx.directMap.Set(id, packLo(newList, newOffset))
		}
		return nil
	}
}

// addLocked is AddWithIDs's body without the public lock/blocking wrapper,
// used by UpdateVectors (Hashtable mode) which already holds idx.mu.
func (idx *Index) addLocked(vectors []vector.Vector, ids []int64) error {
	n := len(vectors)
	data := make([][]float32, n)
	for i, v := range vectors {
		data[i] = v.Data
	}
	listNos := idx.quantizer.q.Assign(data)

	residualCodeSize := idx.codec.CodeSize()
	residualCodes := make([]byte, n*residualCodeSize)
	idx.codec.EncodeVectors(data, listNos, residualCodes)

	fullCodeSize := idx.lists.CodeSize()
	for i := 0; i < n; i++ {
		list := listNos[i]
		id := ids[i]
		if list < 0 {
			idx.directMap.Set(id, -1)
			continue
		}
		code := make([]byte, fullCodeSize)
		idx.quantizer.encodeListno(list, code)
		copy(code[idx.quantizer.codeSize:], residualCodes[i*residualCodeSize:(i+1)*residualCodeSize])

		offset, err := idx.lists.AddEntry(list, id, code)
		if err != nil {
			return err
		}
		idx.directMap.Set(id, packLo(list, offset))
	}
	idx.ntotal += int64(n)
	return nil
}
