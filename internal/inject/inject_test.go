package inject

import "testing"

func TestUTF16Units(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"r", 1},
		{"rx", 2},
		{"é", 1},
		{"日本", 2},
		{"𝄞", 2}, // outside the BMP: surrogate pair
	}
	for _, tt := range tests {
		if got := utf16Units(tt.in); len(got) != tt.want {
			t.Errorf("utf16Units(%q) = %d units, want %d", tt.in, len(got), tt.want)
		}
	}
}

func TestExpandPairsPerUnit(t *testing.T) {
	// "rx" must become exactly 4 transitions: r down, r up, x down,
	// x up, in that order.
	seq := expand(utf16Units("rx"))
	if len(seq) != 4 {
		t.Fatalf("expand produced %d transitions, want 4", len(seq))
	}

	want := []keyUnit{
		{unit: 'r', up: false},
		{unit: 'r', up: true},
		{unit: 'x', up: false},
		{unit: 'x', up: true},
	}
	for i, k := range seq {
		if k != want[i] {
			t.Errorf("transition %d = %+v, want %+v", i, k, want[i])
		}
	}
}

func TestExpandSurrogatePair(t *testing.T) {
	// A character beyond the BMP injects both surrogate halves, each
	// with its own down+up pair.
	seq := expand(utf16Units("𝄞"))
	if len(seq) != 4 {
		t.Fatalf("expand produced %d transitions, want 4", len(seq))
	}
	if seq[0].unit == seq[2].unit {
		t.Error("surrogate halves should differ")
	}
	if seq[0].unit != seq[1].unit || seq[2].unit != seq[3].unit {
		t.Error("down and up of a unit must carry the same code unit")
	}
}

func TestExpandEmpty(t *testing.T) {
	if seq := expand(nil); len(seq) != 0 {
		t.Errorf("expand(nil) = %d transitions, want 0", len(seq))
	}
}
