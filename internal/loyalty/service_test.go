package loyalty

import "testing"

func TestPoints(t *testing.T) {
	cases := []struct {
		name  string
		final int64
		bps   int32
		want  int64
	}{
		{"one percent", 100_000, 100, 1_000},
		{"floors fraction", 99_990, 100, 999},
		{"zero rate", 100_000, 0, 0},
		{"zero amount", 0, 100, 0},
		{"negative amount", -5_000, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Points(tc.final, tc.bps); got != tc.want {
				t.Fatalf("Points(%d, %d) = %d, want %d", tc.final, tc.bps, got, tc.want)
			}
		})
	}
}
