// Package ivalset implements a canonicalised set of disjoint closed
// intervals over the reals, used by the temporal-constraint engine to
// describe the allowed delta-t windows between two event emissions.
package ivalset

import "sort"

// Interval is a closed interval [Lo, Hi], Lo <= Hi.
type Interval struct {
	Lo float64
	Hi float64
}

// Set is a canonical, ascending, non-overlapping list of Intervals.
// The zero value is an empty set, which means "no constraint" when used
// as a temporal edge label.
type Set struct {
	intervals []Interval
}

// New builds a Set from zero or more (a, b) pairs, merging as it goes.
func New(pairs ...[2]float64) *Set {
	s := &Set{}
	for _, p := range pairs {
		s.Add(p[0], p[1])
	}
	return s
}

// IsEmpty reports whether the set carries no intervals at all.
func (s *Set) IsEmpty() bool {
	return s == nil || len(s.intervals) == 0
}

// Len returns the number of disjoint intervals currently stored.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.intervals)
}

// Each calls fn once per interval in ascending order. Iteration stops early
// if fn returns false.
func (s *Set) Each(fn func(Interval) bool) {
	if s == nil {
		return
	}
	for _, iv := range s.intervals {
		if !fn(iv) {
			return
		}
	}
}

// Add merges [a, b] into the set, absorbing every interval it overlaps or
// touches, and keeps the canonical ascending, non-overlapping form. If
// a > b the bounds are swapped, so [b, a] is added.
func (s *Set) Add(a, b float64) {
	if a > b {
		a, b = b, a
	}

	// lo is the first index whose Hi >= a (first interval that could overlap).
	lo := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Hi >= a
	})
	// hi is the first index whose Lo > b (first interval strictly after).
	hi := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Lo > b
	})

	merged := Interval{Lo: a, Hi: b}
	for i := lo; i < hi; i++ {
		if s.intervals[i].Lo < merged.Lo {
			merged.Lo = s.intervals[i].Lo
		}
		if s.intervals[i].Hi > merged.Hi {
			merged.Hi = s.intervals[i].Hi
		}
	}

	next := make([]Interval, 0, len(s.intervals)-(hi-lo)+1)
	next = append(next, s.intervals[:lo]...)
	next = append(next, merged)
	next = append(next, s.intervals[hi:]...)
	s.intervals = next
}

// Include reports whether x falls within any stored interval.
func (s *Set) Include(x float64) bool {
	if s == nil {
		return false
	}
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Hi >= x
	})
	return i < len(s.intervals) && s.intervals[i].Lo <= x
}

// Union returns a new Set containing every interval of both s and other.
// Neither input is mutated.
func (s *Set) Union(other *Set) *Set {
	out := &Set{}
	s.Each(func(iv Interval) bool {
		out.Add(iv.Lo, iv.Hi)
		return true
	})
	other.Each(func(iv Interval) bool {
		out.Add(iv.Lo, iv.Hi)
		return true
	})
	return out
}

// Negate returns a new Set where every interval [lo, hi] is replaced by
// [-hi, -lo]. Used to derive the reverse side of a declared forward
// temporal constraint (§3: "A->B with [a,b] implies B->A with [-b,-a]").
func (s *Set) Negate() *Set {
	out := &Set{}
	s.Each(func(iv Interval) bool {
		out.Add(-iv.Hi, -iv.Lo)
		return true
	})
	return out
}

// Max returns the upper bound of the interval whose window opens soonest
// and is still in the future relative to elapsed, i.e. the smallest Hi
// among intervals with Hi >= elapsed. ok is false for an empty set.
//
// The temporal engine uses this to compute the deadline inserted for a
// pending forward constraint: the upper bound of the first window that
// has not yet closed.
func (s *Set) Max(elapsed float64) (hi float64, ok bool) {
	found := false
	s.Each(func(iv Interval) bool {
		if iv.Hi >= elapsed {
			hi = iv.Hi
			found = true
			return false
		}
		return true
	})
	return hi, found
}

// Equal reports whether s and other contain the same canonical intervals.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	a, b := s.Slice(), other.Slice()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Slice returns a copy of the canonical intervals, ascending.
func (s *Set) Slice() []Interval {
	if s == nil {
		return nil
	}
	out := make([]Interval, len(s.intervals))
	copy(out, s.intervals)
	return out
}
