package ivf

import (
	"math"
	"testing"
)

func TestResultHeapSentinels(t *testing.T) {
	h := NewResultHeap(4)
	dist, ids := h.Sorted()
	for i := range dist {
		if !math.IsInf(float64(dist[i]), 1) {
			t.Fatalf("slot %d: want +Inf sentinel, got %v", i, dist[i])
		}
		if ids[i] != -1 {
			t.Fatalf("slot %d: want id -1 sentinel, got %d", i, ids[i])
		}
	}
}

func TestResultHeapKeepsKSmallest(t *testing.T) {
	h := NewResultHeap(3)
	values := []float32{5, 1, 9, 2, 8, 0, 7}
	for i, v := range values {
		h.Push(v, int64(i))
	}
	dist, _ := h.Sorted()
	want := []float32{0, 1, 2}
	for i, w := range want {
		if dist[i] != w {
			t.Fatalf("position %d: want %v, got %v", i, w, dist[i])
		}
	}
}

func TestResultHeapPushReturnsWhetherChanged(t *testing.T) {
	h := NewResultHeap(2)
	if !h.Push(3, 0) {
		t.Fatal("first push into an unfilled heap must report a change")
	}
	if !h.Push(1, 1) {
		t.Fatal("second push into an unfilled heap must report a change")
	}
	if h.Push(10, 2) {
		t.Fatal("pushing a worse candidate once full must report no change")
	}
	if !h.Push(0, 3) {
		t.Fatal("pushing a better candidate once full must report a change")
	}
}

func TestResultHeapAddFromMerges(t *testing.T) {
	a := NewResultHeap(2)
	a.Push(5, 0)
	a.Push(6, 1)

	b := NewResultHeap(2)
	b.Push(1, 2)
	b.Push(2, 3)

	a.AddFrom(b)
	dist, ids := a.Sorted()
	if dist[0] != 1 || ids[0] != 2 {
		t.Fatalf("want best entry (1, id 2), got (%v, %d)", dist[0], ids[0])
	}
	if dist[1] != 2 || ids[1] != 3 {
		t.Fatalf("want second entry (2, id 3), got (%v, %d)", dist[1], ids[1])
	}
}
