package world

import (
	"math"
	"sort"
)

// Change records one scalar's old and new values across a transition.
type Change struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// Diff returns the change in value.
func (c Change) Diff() float64 {
	return c.New - c.Old
}

// Delta maps fully qualified path strings to the change observed at that
// path. A path present in only one of the two states appears with the
// missing side reported as zero; deletions and creations are therefore
// visible as transitions to or from zero magnitude at a path that exists
// on one side only.
type Delta map[string]Change

// Diff computes the delta from state a to state b: Old values come from
// a, New values from b. The turn counter is not part of the delta.
func Diff(a, b *State) Delta {
	d := make(Delta)
	am := a.PathMap()
	bm := b.PathMap()
	for k, old := range am {
		if nw, ok := bm[k]; ok {
			if nw != old {
				d[k] = Change{Old: old, New: nw}
			}
		} else {
			d[k] = Change{Old: old, New: 0}
		}
	}
	for k, nw := range bm {
		if _, ok := am[k]; !ok {
			d[k] = Change{Old: 0, New: nw}
		}
	}
	return d
}

// Magnitude returns the sum of absolute changes across all paths.
// A zero magnitude means the delta is fully explained.
func (d Delta) Magnitude() float64 {
	var m float64
	for _, c := range d {
		m += math.Abs(c.New - c.Old)
	}
	return m
}

// Paths returns the delta's path strings in sorted order for
// deterministic iteration.
func (d Delta) Paths() []string {
	paths := make([]string, 0, len(d))
	for k := range d {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns an independent copy of the delta.
func (d Delta) Clone() Delta {
	c := make(Delta, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}
