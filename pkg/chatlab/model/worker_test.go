package model

import "testing"

func TestComputePercentageRounds(t *testing.T) {
	cases := []struct {
		read, total int64
		want        int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{1, 3, 33},
		{2, 3, 67},
		{100, 100, 100},
		{150, 100, 100}, // clamped even if a caller overshoots
		{10, 0, 0},      // unknown total reports 0, not a divide-by-zero
	}
	for _, c := range cases {
		if got := ComputePercentage(c.read, c.total); got != c.want {
			t.Errorf("ComputePercentage(%d, %d) = %d, want %d", c.read, c.total, got, c.want)
		}
	}
}
