package ivf

import (
	"testing"

	"github.com/ivfgo/ivfgo/pkg/index/flat"
	"github.com/ivfgo/ivfgo/pkg/metric"
	"github.com/ivfgo/ivfgo/pkg/vector"
)

// TestCoarseCodeSizeMinimal checks coarseCodeSize returns the minimum byte
// count that can represent nlist-1, including the nlist=300 case spelled
// out explicitly.
func TestCoarseCodeSizeMinimal(t *testing.T) {
	cases := []struct {
		nlist int
		want  int
	}{
		{1, 1},
		{2, 1},
		{256, 1},
		{257, 2},
		{300, 2},
		{65536, 3},
	}
	for _, c := range cases {
		if got := coarseCodeSize(c.nlist); got != c.want {
			t.Errorf("coarseCodeSize(%d) = %d, want %d", c.nlist, got, c.want)
		}
	}
}

func newFlatLevel1(t *testing.T, nlist int) *level1Quantizer {
	t.Helper()
	m, err := metric.New(metric.L2)
	if err != nil {
		t.Fatal(err)
	}
	q := flat.NewQuantizer(4, m)
	return newLevel1Quantizer(q, nlist, TrainsAloneDefault)
}

// TestEncodeDecodeListnoRoundTrip checks encodeListno/decodeListno invert
// each other, including the literal nlist=300, list=259 -> [0x03,0x01] case.
func TestEncodeDecodeListnoRoundTrip(t *testing.T) {
	l1 := newFlatLevel1(t, 300)

	buf := make([]byte, l1.codeSize)
	l1.encodeListno(259, buf)
	if buf[0] != 0x03 || buf[1] != 0x01 {
		t.Fatalf("encodeListno(259) = %#v, want [0x03 0x01]", buf)
	}
	if got := l1.decodeListno(buf); got != 259 {
		t.Fatalf("decodeListno(encodeListno(259)) = %d, want 259", got)
	}

	for _, list := range []int64{0, 1, 299} {
		b := make([]byte, l1.codeSize)
		l1.encodeListno(list, b)
		if got := l1.decodeListno(b); got != list {
			t.Errorf("round trip for list %d: got %d", list, got)
		}
	}
}

// TestDecodeListnoRejectsOutOfRange checks decodeListno panics on a decoded
// value outside [0, nlist).
func TestDecodeListnoRejectsOutOfRange(t *testing.T) {
	l1 := newFlatLevel1(t, 4)

	buf := make([]byte, l1.codeSize)
	l1.encodeListno(10, buf)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("want panic decoding a list id outside [0,4)")
		}
	}()
	l1.decodeListno(buf)
}

// TestSAEncodeLength checks SAEncode's output is exactly
// len(vectors)*SACodeSize() bytes, the sa_encode length property.
func TestSAEncodeLength(t *testing.T) {
	idx := newFlatIVF(t, 4, 5, 2)
	train := vector.GenerateRandom(30, 4, 3)
	if err := idx.Train(train); err != nil {
		t.Fatal(err)
	}

	encoded, err := idx.SAEncode(train)
	if err != nil {
		t.Fatal(err)
	}
	want := len(train) * idx.SACodeSize()
	if len(encoded) != want {
		t.Fatalf("SAEncode produced %d bytes, want %d (%d vectors * SACodeSize %d)",
			len(encoded), want, len(train), idx.SACodeSize())
	}
	if idx.SACodeSize() != coarseCodeSize(5)+idx.codec.CodeSize() {
		t.Fatalf("SACodeSize() = %d, want coarse_code_size + codec code size", idx.SACodeSize())
	}
}
