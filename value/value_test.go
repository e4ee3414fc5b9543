package value

import "testing"

func TestEmbeddedIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 12345, MinEmbeddedInt, MaxEmbeddedInt}
	for _, c := range cases {
		if !FitsEmbedded(c) {
			t.Fatalf("expected %d to fit embedded range", c)
		}
		v := FromInt64(c)
		if !v.IsInt() {
			t.Fatalf("FromInt64(%d) is not tagged as int", c)
		}
		if got := v.Int64(); got != c {
			t.Fatalf("round trip mismatch: %d -> %d", c, got)
		}
	}
}

func TestFitsEmbeddedBounds(t *testing.T) {
	if FitsEmbedded(MaxEmbeddedInt + 1) {
		t.Fatalf("MaxEmbeddedInt+1 must not fit")
	}
	if FitsEmbedded(MinEmbeddedInt - 1) {
		t.Fatalf("MinEmbeddedInt-1 must not fit")
	}
}

func TestNullIsDistinctFromZeroInt(t *testing.T) {
	zero := FromInt64(0)
	if Null.IsInt() {
		t.Fatalf("Null must not be tagged as an int")
	}
	if !zero.IsInt() {
		t.Fatalf("embedded zero must be tagged as an int")
	}
	if Null == zero {
		t.Fatalf("Null and embedded 0 must have distinct representations")
	}
	if !Null.IsNull() {
		t.Fatalf("Null.IsNull() must be true")
	}
}

func TestHeapValueTagging(t *testing.T) {
	r := newTestRegistry()
	s := r.Alloc(TypeStringObj, 0)
	if !s.IsHeap() {
		t.Fatalf("allocated value must be tagged as heap")
	}
	if s.IsInt() || s.IsNull() {
		t.Fatalf("heap value must not also read as int or null")
	}
}
