// Package rank maintains the dense, gap-tolerant ordering of backlog items
// within a (project, partition) scope. Positions are spaced int64 ranks;
// insertion takes the midpoint of its neighbors so arbitrary re-ranking does
// not renumber every sibling. When a gap is exhausted the scope is renumbered
// once and the insert retried.
package rank

import (
	"math"

	"scrumcore/pkg/domain"
)

// Spacing is the gap left between adjacent ranks by a renumber pass.
const Spacing int64 = 1 << 16

// Scope identifies one independent ordering of backlog items.
type Scope struct {
	ProjectID string
	Partition domain.Partition
}

// ScopeOf returns the ordering scope an item currently ranks within.
func ScopeOf(item domain.BacklogItem) Scope {
	return Scope{ProjectID: item.ProjectID, Partition: item.Partition()}
}

// Target names the requested insertion rank. The zero value targets the
// head of the scope, matching the default for items moving across
// partitions.
type Target struct {
	last bool
	rank int // 1-based when set
}

// First targets the head of the scope. It is the default for items moving
// across partitions.
func First() Target { return Target{} }

// Last targets the tail of the scope.
func Last() Target { return Target{last: true} }

// At targets the given 1-based rank. Ranks past the tail clamp to Last.
func At(rank int) Target {
	if rank <= 0 {
		return First()
	}
	return Target{rank: rank}
}

// PositionFor computes the rank position for inserting into an ordered slice
// of sibling positions at the target. The second return is false when the
// neighboring gap is exhausted and the scope must be renumbered first.
func PositionFor(siblings []int64, target Target) (int64, bool) {
	n := len(siblings)
	if n == 0 {
		return Spacing, true
	}
	var idx int
	switch {
	case target.last:
		idx = n
	case target.rank == 0:
		idx = 0
	case target.rank-1 < n:
		idx = target.rank - 1
	default:
		idx = n
	}
	switch idx {
	case 0:
		head := siblings[0]
		if head <= 1 {
			return 0, false
		}
		return head / 2, true
	case n:
		tail := siblings[n-1]
		if tail > math.MaxInt64-Spacing {
			return 0, false
		}
		return tail + Spacing, true
	default:
		lo, hi := siblings[idx-1], siblings[idx]
		if hi-lo <= 1 {
			return 0, false
		}
		return lo + (hi-lo)/2, true
	}
}

// Renumbered returns fresh evenly spaced positions for n siblings.
func Renumbered(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i+1) * Spacing
	}
	return out
}
