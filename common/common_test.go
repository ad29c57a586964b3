package common

import (
	"slices"
	"testing"
)

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "", "label"); got != "label" {
		t.Errorf("Coalesce() = %q, want %q", got, "label")
	}
	if got := Coalesce(0, 3, 4); got != 3 {
		t.Errorf("Coalesce() = %d, want 3", got)
	}
	if got := Coalesce[int](); got != 0 {
		t.Errorf("Coalesce() = %d, want 0", got)
	}
}

func TestAlignment(t *testing.T) {
	tests := []struct {
		n, align    uint64
		wantCeil    uint64
		wantAligned uint64
		isAligned   bool
	}{
		{0, 4, 0, 0, true},
		{1, 4, 1, 4, false},
		{4, 4, 1, 4, true},
		{17, 16, 2, 32, false},
		{992, 16, 62, 992, true},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.n, tt.align); got != tt.wantCeil {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.wantCeil)
		}
		if got := AlignUp(tt.n, tt.align); got != tt.wantAligned {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.wantAligned)
		}
		if got := IsAligned(tt.n, tt.align); got != tt.isAligned {
			t.Errorf("IsAligned(%d, %d) = %t, want %t", tt.n, tt.align, got, tt.isAligned)
		}
	}
}

func TestSliceToBytes(t *testing.T) {
	if got := SliceToBytes([]uint32(nil)); got != nil {
		t.Errorf("SliceToBytes(nil) = %v, want nil", got)
	}
	got := SliceToBytes([]uint32{1, 2, 3})
	if len(got) != 12 {
		t.Fatalf("len(SliceToBytes()) = %d, want 12", len(got))
	}
	// Assumes a little-endian host.
	if want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}; !slices.Equal(got, want) {
		t.Errorf("SliceToBytes() = %v, want %v", got, want)
	}
}
