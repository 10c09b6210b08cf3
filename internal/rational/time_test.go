package rational

import "testing"

func TestCmpCrossRate(t *testing.T) {
	a := New(30, 30, 1)  // 1 second at 30fps
	b := New(60, 60, 1)  // 1 second at 60fps
	if a.Cmp(b) != 0 {
		t.Fatalf("expected equal, got %d", a.Cmp(b))
	}
	c := New(31, 30, 1)
	if c.Cmp(a) <= 0 {
		t.Fatalf("expected c > a")
	}
}

func TestRescaleExact(t *testing.T) {
	a := New(15, 30, 1) // 0.5s at 30fps
	r := a.Rescale(60, 1)
	if r.Frames != 30 {
		t.Fatalf("expected 30 frames at 60fps, got %d", r.Frames)
	}
}

func TestAddRescalesSmallerDen(t *testing.T) {
	a := New(10, 30, 1)
	b := New(10, 30000, 1001) // NTSC-ish rate, larger den
	sum := a.Add(b)
	if sum.Den != 1001 {
		t.Fatalf("expected result rescaled to larger den 1001, got %d", sum.Den)
	}
}

func TestFromMSRoundsHalfEven(t *testing.T) {
	// 24fps: one frame = 41.6666ms. 20.8333ms should round to nearest even.
	tests := []struct {
		ms   float64
		want int64
	}{
		{0, 0},
		{1000, 24},
		{1000.0 / 24.0 / 2.0, 0}, // exactly half a frame, rounds to even (0)
	}
	for _, tc := range tests {
		got := FromMS(tc.ms, 24, 1)
		if got.Frames != tc.want {
			t.Errorf("FromMS(%v) = %d, want %d", tc.ms, got.Frames, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	lo := New(0, 30, 1)
	hi := New(100, 30, 1)
	if got := Clamp(New(-5, 30, 1), lo, hi); !got.Equal(lo) {
		t.Fatalf("expected clamp to lo, got %v", got)
	}
	if got := Clamp(New(500, 30, 1), lo, hi); !got.Equal(hi) {
		t.Fatalf("expected clamp to hi, got %v", got)
	}
	if got := Clamp(New(50, 30, 1), lo, hi); got.Frames != 50 {
		t.Fatalf("expected unclamped value, got %v", got)
	}
}

func TestHydrateBareNumberUsesDefaultRate(t *testing.T) {
	got, err := Hydrate(int64(10), 30, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Num != 30 || got.Den != 1 {
		t.Fatalf("expected default rate applied, got %d/%d", got.Num, got.Den)
	}
}

func TestHydrateTable(t *testing.T) {
	got, err := Hydrate(map[string]any{"frames": int64(5), "num": uint32(24), "den": uint32(1)}, 30, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Frames != 5 || got.Num != 24 {
		t.Fatalf("unexpected hydrate result: %+v", got)
	}
}

func TestHydrateRejectsUnsupportedShape(t *testing.T) {
	if _, err := Hydrate("nope", 30, 1); err == nil {
		t.Fatal("expected error for unsupported shape")
	}
}
