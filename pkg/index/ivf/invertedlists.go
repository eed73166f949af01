package ivf

// InvertedLists maps a list id in [0, nlist) to an ordered sequence of
// (external-id, code-bytes) entries. Concurrent reads on distinct lists are
// safe; writes must be serialized per list by the caller — the add
// protocol enforces this via list-to-thread partitioning.
type InvertedLists interface {
	// Nlist returns the number of lists.
	Nlist() int
	// CodeSize returns the uniform per-entry code width in bytes.
	CodeSize() int
	// ListSize returns the number of entries currently in list l.
	ListSize(l int64) int
	// AddEntry appends one entry to list l and returns its offset.
	AddEntry(l int64, id int64, code []byte) (int64, error)
	// GetIDs returns a view of list l's ids. Callers must not mutate it.
	GetIDs(l int64) []int64
	// GetCodes returns a view of list l's codes, code-size-byte entries
	// concatenated. Callers must not mutate it.
	GetCodes(l int64) []byte
	// GetSingleID returns the id stored at (l, offset).
	GetSingleID(l, offset int64) int64
	// GetSingleCode returns the code stored at (l, offset).
	GetSingleCode(l, offset int64) []byte
	// UpdateEntry overwrites the id and code stored at (l, offset).
	UpdateEntry(l, offset int64, id int64, code []byte) error
	// RemoveEntry swaps the tail entry of list l into offset and truncates
	// the list by one, returning the id that was moved into offset (or -1 if
	// offset was already the tail).
	RemoveEntry(l, offset int64) (movedID int64, movedOffset int64, err error)
	// PrefetchLists is an advisory hint; implementations may no-op.
	PrefetchLists(ids []int64)
	// MergeFrom appends other's lists onto self, shifting external ids by
	// idOffset, and empties other.
	MergeFrom(other InvertedLists, idOffset int64) error
	// ToReadOnly returns a read-only snapshot, or (nil, false) if the
	// implementation does not support the transition.
	ToReadOnly() (InvertedLists, bool)
	// IsReadOnly reports whether mutation is rejected.
	IsReadOnly() bool
}

// entry is one (id, code) pair inside an ArrayInvertedLists list.
type entry struct {
	id   int64
	code []byte
}

// ArrayInvertedLists is the default growable-slice-of-slices InvertedLists
// implementation — one []entry per list.
type ArrayInvertedLists struct {
	nlist    int
	codeSize int
	lists    [][]entry
	readOnly bool
}

// NewArrayInvertedLists allocates nlist empty posting lists for codeSize-byte codes.
func NewArrayInvertedLists(nlist, codeSize int) *ArrayInvertedLists {
	return &ArrayInvertedLists{
		nlist:    nlist,
		codeSize: codeSize,
		lists:    make([][]entry, nlist),
	}
}

func (a *ArrayInvertedLists) Nlist() int     { return a.nlist }
func (a *ArrayInvertedLists) CodeSize() int  { return a.codeSize }
func (a *ArrayInvertedLists) IsReadOnly() bool { return a.readOnly }

func (a *ArrayInvertedLists) ListSize(l int64) int {
	return len(a.lists[l])
}

func (a *ArrayInvertedLists) AddEntry(l int64, id int64, code []byte) (int64, error) {
	if a.readOnly {
		return 0, ErrReadOnly
	}
	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)
	a.lists[l] = append(a.lists[l], entry{id: id, code: codeCopy})
	return int64(len(a.lists[l]) - 1), nil
}

func (a *ArrayInvertedLists) GetIDs(l int64) []int64 {
	es := a.lists[l]
	ids := make([]int64, len(es))
	for i, e := range es {
		ids[i] = e.id
	}
	return ids
}

func (a *ArrayInvertedLists) GetCodes(l int64) []byte {
	es := a.lists[l]
	out := make([]byte, len(es)*a.codeSize)
	for i, e := range es {
		copy(out[i*a.codeSize:(i+1)*a.codeSize], e.code)
	}
	return out
}

func (a *ArrayInvertedLists) GetSingleID(l, offset int64) int64 {
	return a.lists[l][offset].id
}

func (a *ArrayInvertedLists) GetSingleCode(l, offset int64) []byte {
	return a.lists[l][offset].code
}

func (a *ArrayInvertedLists) UpdateEntry(l, offset int64, id int64, code []byte) error {
	if a.readOnly {
		return ErrReadOnly
	}
	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)
	a.lists[l][offset] = entry{id: id, code: codeCopy}
	return nil
}

func (a *ArrayInvertedLists) RemoveEntry(l, offset int64) (int64, int64, error) {
	if a.readOnly {
		return 0, 0, ErrReadOnly
	}
	list := a.lists[l]
	last := int64(len(list) - 1)
	if offset == last {
		a.lists[l] = list[:last]
		return -1, -1, nil
	}
	movedID := list[last].id
	list[offset] = list[last]
	a.lists[l] = list[:last]
	return movedID, offset, nil
}

func (a *ArrayInvertedLists) PrefetchLists(ids []int64) {}

func (a *ArrayInvertedLists) MergeFrom(other InvertedLists, idOffset int64) error {
	if a.readOnly {
		return ErrReadOnly
	}
	o, ok := other.(*ArrayInvertedLists)
	if !ok || o.nlist != a.nlist || o.codeSize != a.codeSize {
		return ErrIncompatibleMerge
	}
	for l := 0; l < a.nlist; l++ {
		for _, e := range o.lists[l] {
			a.lists[l] = append(a.lists[l], entry{id: e.id + idOffset, code: e.code})
		}
		o.lists[l] = nil
	}
	return nil
}

func (a *ArrayInvertedLists) ToReadOnly() (InvertedLists, bool) {
	ro := &ArrayInvertedLists{nlist: a.nlist, codeSize: a.codeSize, lists: a.lists, readOnly: true}
	return ro, true
}
