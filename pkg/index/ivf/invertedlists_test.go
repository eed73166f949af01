package ivf

import "testing"

func TestArrayInvertedListsAddAndGet(t *testing.T) {
	lists := NewArrayInvertedLists(2, 3)
	off, err := lists.AddEntry(0, 100, []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if off != 0 {
		t.Fatalf("want first offset 0, got %d", off)
	}
	if _, err := lists.AddEntry(0, 101, []byte{4, 5, 6}); err != nil {
		t.Fatal(err)
	}

	if lists.ListSize(0) != 2 {
		t.Fatalf("want list size 2, got %d", lists.ListSize(0))
	}
	ids := lists.GetIDs(0)
	if ids[0] != 100 || ids[1] != 101 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	codes := lists.GetCodes(0)
	if len(codes) != 6 {
		t.Fatalf("want 6 code bytes, got %d", len(codes))
	}
	if codes[3] != 4 {
		t.Fatalf("second entry's code not laid out contiguously: %v", codes)
	}
}

func TestArrayInvertedListsRemoveSwapsTail(t *testing.T) {
	lists := NewArrayInvertedLists(1, 1)
	lists.AddEntry(0, 10, []byte{1})
	lists.AddEntry(0, 20, []byte{2})
	lists.AddEntry(0, 30, []byte{3})

	movedID, movedOffset, err := lists.RemoveEntry(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if movedID != 30 {
		t.Fatalf("want tail id 30 moved into offset 0, got %d", movedID)
	}
	if movedOffset != 0 {
		t.Fatalf("want moved offset 0, got %d", movedOffset)
	}
	if lists.ListSize(0) != 2 {
		t.Fatalf("want list size 2 after removal, got %d", lists.ListSize(0))
	}
	if lists.GetSingleID(0, 0) != 30 {
		t.Fatalf("want id 30 at offset 0 after swap, got %d", lists.GetSingleID(0, 0))
	}
}

func TestArrayInvertedListsRemoveTailNoSwap(t *testing.T) {
	lists := NewArrayInvertedLists(1, 1)
	lists.AddEntry(0, 10, []byte{1})
	lists.AddEntry(0, 20, []byte{2})

	movedID, movedOffset, err := lists.RemoveEntry(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if movedID != -1 || movedOffset != -1 {
		t.Fatalf("removing the tail entry must report no move, got (%d, %d)", movedID, movedOffset)
	}
	if lists.ListSize(0) != 1 {
		t.Fatalf("want list size 1, got %d", lists.ListSize(0))
	}
}

func TestArrayInvertedListsMergeFrom(t *testing.T) {
	a := NewArrayInvertedLists(2, 1)
	a.AddEntry(0, 1, []byte{1})
	b := NewArrayInvertedLists(2, 1)
	b.AddEntry(0, 1, []byte{2})
	b.AddEntry(1, 2, []byte{3})

	if err := a.MergeFrom(b, 100); err != nil {
		t.Fatal(err)
	}
	if a.ListSize(0) != 2 {
		t.Fatalf("want list 0 size 2 after merge, got %d", a.ListSize(0))
	}
	if a.GetSingleID(0, 1) != 101 {
		t.Fatalf("want merged id shifted by addID to 101, got %d", a.GetSingleID(0, 1))
	}
	if a.GetSingleID(1, 0) != 102 {
		t.Fatalf("want merged id shifted by addID to 102, got %d", a.GetSingleID(1, 0))
	}
	if b.ListSize(0) != 0 || b.ListSize(1) != 0 {
		t.Fatal("source lists must be emptied after merge")
	}
}

func TestArrayInvertedListsToReadOnlyRejectsWrites(t *testing.T) {
	a := NewArrayInvertedLists(1, 1)
	a.AddEntry(0, 1, []byte{1})
	ro, ok := a.ToReadOnly()
	if !ok {
		t.Fatal("ToReadOnly must succeed for ArrayInvertedLists")
	}
	if !ro.IsReadOnly() {
		t.Fatal("converted lists must report read-only")
	}
	if _, err := ro.AddEntry(0, 2, []byte{2}); err != ErrReadOnly {
		t.Fatalf("want ErrReadOnly, got %v", err)
	}
}
