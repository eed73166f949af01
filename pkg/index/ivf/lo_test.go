package ivf

import "testing"

func TestPackLoRoundTrip(t *testing.T) {
	cases := []struct{ list, offset int64 }{
		{0, 0},
		{1, 0},
		{0, 1},
		{42, 12345},
		{1 << 20, 1 << 20},
	}
	for _, c := range cases {
		lo := packLo(c.list, c.offset)
		if got := loListno(lo); got != c.list {
			t.Errorf("packLo(%d,%d): loListno = %d, want %d", c.list, c.offset, got, c.list)
		}
		if got := loOffset(lo); got != c.offset {
			t.Errorf("packLo(%d,%d): loOffset = %d, want %d", c.list, c.offset, got, c.offset)
		}
	}
}

func TestPackLoOffsetOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on offset overflow")
		}
	}()
	packLo(0, loOffsetMask+1)
}
