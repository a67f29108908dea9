// Package timeseries provides step-indexed value sequences used for price,
// external load and schedule inputs. Lookups fall back to the most recent
// known value; a lookup before the first value yields zero. Callers record
// a warning when the fallback path is taken.
package timeseries

import "sort"

// Series is an ordered sequence of (timestep, value) pairs aligned to the
// scenario's timestep grid. The zero value is an empty series.
type Series struct {
	steps  []int
	values map[int]float64
}

// New returns an empty series.
func New() *Series {
	return &Series{values: make(map[int]float64)}
}

// FromValues builds a series from consecutive per-step values starting at
// step start.
func FromValues(start int, vals []float64) *Series {
	s := New()
	for i, v := range vals {
		s.Set(start+i, v)
	}
	return s
}

// Set stores the value for the given step, replacing any previous one.
func (s *Series) Set(step int, v float64) {
	if s.values == nil {
		s.values = make(map[int]float64)
	}
	if _, ok := s.values[step]; !ok {
		i := sort.SearchInts(s.steps, step)
		s.steps = append(s.steps, 0)
		copy(s.steps[i+1:], s.steps[i:])
		s.steps[i] = step
	}
	s.values[step] = v
}

// Len returns the number of stored points.
func (s *Series) Len() int { return len(s.steps) }

// At returns the exact value stored for the step, if any.
func (s *Series) At(step int) (float64, bool) {
	v, ok := s.values[step]
	return v, ok
}

// ValueAt returns the value effective at the step. When no exact value is
// stored it falls back to the most recent earlier value, or zero if the
// series holds nothing before the step. exact reports whether the value was
// stored for this very step.
func (s *Series) ValueAt(step int) (v float64, exact bool) {
	if v, ok := s.values[step]; ok {
		return v, true
	}
	// index of the first stored step > step
	i := sort.SearchInts(s.steps, step+1)
	if i == 0 {
		return 0, false
	}
	return s.values[s.steps[i-1]], false
}

// Steps returns the stored steps in ascending order.
func (s *Series) Steps() []int {
	out := make([]int, len(s.steps))
	copy(out, s.steps)
	return out
}
