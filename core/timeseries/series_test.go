package timeseries

import "testing"

func TestSeriesExactAndFallback(t *testing.T) {
	s := New()
	s.Set(2, 0.30)
	s.Set(5, 0.10)

	if v, exact := s.ValueAt(2); !exact || v != 0.30 {
		t.Fatalf("ValueAt(2) = %.2f exact=%v", v, exact)
	}
	// gap falls back to the last known value
	if v, exact := s.ValueAt(4); exact || v != 0.30 {
		t.Fatalf("ValueAt(4) = %.2f exact=%v, want fallback 0.30", v, exact)
	}
	if v, exact := s.ValueAt(9); exact || v != 0.10 {
		t.Fatalf("ValueAt(9) = %.2f exact=%v, want fallback 0.10", v, exact)
	}
	// before the first value: zero, not exact
	if v, exact := s.ValueAt(0); exact || v != 0 {
		t.Fatalf("ValueAt(0) = %.2f exact=%v, want 0", v, exact)
	}
}

func TestSeriesFromValues(t *testing.T) {
	s := FromValues(3, []float64{1, 2, 3})
	if s.Len() != 3 {
		t.Fatalf("len = %d", s.Len())
	}
	if v, ok := s.At(4); !ok || v != 2 {
		t.Fatalf("At(4) = %.1f ok=%v", v, ok)
	}
	steps := s.Steps()
	if steps[0] != 3 || steps[2] != 5 {
		t.Fatalf("steps = %v", steps)
	}
}

func TestSeriesSetReplaces(t *testing.T) {
	s := New()
	s.Set(1, 10)
	s.Set(1, 20)
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	if v, _ := s.At(1); v != 20 {
		t.Fatalf("At(1) = %.1f, want 20", v)
	}
}
