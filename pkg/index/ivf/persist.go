package ivf

import "github.com/ivfgo/ivfgo/pkg/storage"

// Save writes the index's structural state: header fields, the inverted
// lists, and the direct map. The coarse quantizer and codec are owned by
// the caller (they are external collaborators per this package's design)
// and must be persisted separately via their own Save/Load, then
// reattached with Quantizer()/SetQuantizer() equivalents before Load.
func (idx *Index) Save(w storage.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := w.Encode(idx.dim); err != nil {
		return err
	}
	if err := w.Encode(idx.metricType); err != nil {
		return err
	}
	if err := w.Encode(idx.nlist); err != nil {
		return err
	}
	if err := w.Encode(idx.nprobe); err != nil {
		return err
	}
	if err := w.Encode(int(idx.parallel)); err != nil {
		return err
	}
	if err := w.Encode(idx.maxCodes); err != nil {
		return err
	}
	if err := w.Encode(int(idx.directMap.Mode())); err != nil {
		return err
	}
	if err := w.Encode(idx.trained); err != nil {
		return err
	}
	if err := w.Encode(idx.ntotal); err != nil {
		return err
	}

	codeSize := idx.lists.CodeSize()
	if err := w.Encode(codeSize); err != nil {
		return err
	}
	for l := 0; l < idx.nlist; l++ {
		ids := idx.lists.GetIDs(int64(l))
		codes := idx.lists.GetCodes(int64(l))
		if err := w.Encode(ids); err != nil {
			return err
		}
		if err := w.Encode(codes); err != nil {
			return err
		}
	}
	return nil
}

// Load restores structural state written by Save into an Index already
// constructed with the same quantizer and codec instances (via New) — this
// matches the module's storage.Serializable contract while keeping the
// quantizer/codec lifecycle explicit, per this package's ownership model.
func (idx *Index) Load(r storage.Reader) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := r.Decode(&idx.dim); err != nil {
		return err
	}
	if err := r.Decode(&idx.metricType); err != nil {
		return err
	}
	if err := r.Decode(&idx.nlist); err != nil {
		return err
	}
	if err := r.Decode(&idx.nprobe); err != nil {
		return err
	}
	var pmode int
	if err := r.Decode(&pmode); err != nil {
		return err
	}
	idx.parallel = ParallelMode(pmode)
	if err := r.Decode(&idx.maxCodes); err != nil {
		return err
	}
	var dmMode int
	if err := r.Decode(&dmMode); err != nil {
		return err
	}
	if err := r.Decode(&idx.trained); err != nil {
		return err
	}
	if err := r.Decode(&idx.ntotal); err != nil {
		return err
	}

	var codeSize int
	if err := r.Decode(&codeSize); err != nil {
		return err
	}
	idx.lists = NewArrayInvertedLists(idx.nlist, codeSize)
	for l := 0; l < idx.nlist; l++ {
		var ids []int64
		var codes []byte
		if err := r.Decode(&ids); err != nil {
			return err
		}
		if err := r.Decode(&codes); err != nil {
			return err
		}
		for i, id := range ids {
			code := codes[i*codeSize : (i+1)*codeSize]
			if _, err := idx.lists.AddEntry(int64(l), id, code); err != nil {
				return err
			}
		}
	}

	idx.directMap = NewDirectMap(DirectMapMode(dmMode))
	if DirectMapMode(dmMode) != DirectMapNone {
		for l := 0; l < idx.nlist; l++ {
			ids := idx.lists.GetIDs(int64(l))
			for off, id := range ids {
				idx.directMap.Set(id, packLo(int64(l), int64(off)))
			}
		}
	}
	return nil
}
