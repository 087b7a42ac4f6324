// Package probe implements the per-segment probing/slot statistics
// aggregator (spec.md §4.2): per-slot histograms of group-chain distance,
// collision key comparisons, and distance to the allocation-index
// boundary, additively combinable across segments for diagnostics dumps.
package probe

import "github.com/smoothie-map/smoothiemap/internal/swisstable"

// Aggregator accumulates per-slot statistics for one or more ordinary
// segments. RecordSlot expects segments with NumGroups groups; Combine
// also merges aggregators built for different group counts.
type Aggregator struct {
	NumGroups int

	// ChainGroupLength[g] counts filled slots whose probe needed g steps
	// to reach their group, per the precomputed chain-length table.
	ChainGroupLength []int

	// NumCollisionKeyComparisons[n] counts filled slots that required n
	// false topHash-matched key comparisons before landing.
	NumCollisionKeyComparisons []int

	// DistanceToAllocBoundary[d] counts filled slots at distance d (per
	// spec.md §4.2's asymmetric formula) from the segment's
	// allocation-index boundary.
	DistanceToAllocBoundary []int

	NumSegments                int
	NumInflatedSegments        int
	NumFullSlots                int
	NumSegmentsPerAllocCapacity map[int]int

	chainLen []int
}

// NewAggregator returns an Aggregator for segments with numGroups groups
// (a power of two) and slotCapacity = numGroups*swisstable.GroupSlots.
func NewAggregator(numGroups int) *Aggregator {
	cap := numGroups * swisstable.GroupSlots
	return &Aggregator{
		NumGroups:                   numGroups,
		ChainGroupLength:            make([]int, numGroups),
		NumCollisionKeyComparisons:  make([]int, cap+1),
		DistanceToAllocBoundary:     make([]int, cap+1),
		NumSegmentsPerAllocCapacity: make(map[int]int),
		chainLen:                    swisstable.BuildChainLen(numGroups),
	}
}

// distanceToAllocBoundary implements spec.md §4.2's asymmetric distance:
// the boundary itself (and the slot just below it) are both distance 0,
// since the boundary demarcates the "upper" half that includes it.
func distanceToAllocBoundary(allocIdx, boundary int) int {
	diff := allocIdx - boundary
	if diff < 0 {
		diff = -diff
	}
	if allocIdx >= boundary {
		return diff
	}
	return diff - 1
}

// RecordSlot folds one filled slot's bookkeeping (as reported by
// swisstable.Table.Insert or Table.Groups) into the histograms.
func (a *Aggregator) RecordSlot(res swisstable.InsertResult, boundary int) {
	offset := ((res.GroupIdx-res.BaseGroupIdx)%a.NumGroups + a.NumGroups) % a.NumGroups
	chainLen := a.chainLen[offset]
	a.growTo(&a.ChainGroupLength, chainLen)
	a.ChainGroupLength[chainLen]++

	a.growTo(&a.NumCollisionKeyComparisons, res.Comparisons)
	a.NumCollisionKeyComparisons[res.Comparisons]++

	dist := distanceToAllocBoundary(res.AllocIdx, boundary)
	if dist < 0 {
		dist = 0
	}
	a.growTo(&a.DistanceToAllocBoundary, dist)
	a.DistanceToAllocBoundary[dist]++

	a.NumFullSlots++
}

// RecordSegment accounts for one segment's existence, independent of its
// filled slots (so empty segments still show up in NumSegments and the
// capacity histogram).
func (a *Aggregator) RecordSegment(capacity int) {
	a.NumSegments++
	a.NumSegmentsPerAllocCapacity[capacity]++
}

// RecordInflatedSegment accounts for an inflated segment, which spec.md
// §4.3 excludes from the slot histograms but still counts.
func (a *Aggregator) RecordInflatedSegment() {
	a.NumSegments++
	a.NumInflatedSegments++
}

func (a *Aggregator) growTo(s *[]int, index int) {
	if index < len(*s) {
		return
	}
	grown := make([]int, index+1)
	copy(grown, *s)
	*s = grown
}

// Combine returns a new Aggregator holding the sum of a and b. a and b
// may come from segments of different orders (and therefore different
// NumGroups, since a diagnostics dump's Total/ByNumNonEmptySlots spans
// every order in the map) -- the histograms merge by dynamic growth
// rather than requiring a shared length, and out.NumGroups records
// whichever of the two is larger, for reference only.
func (a *Aggregator) Combine(b *Aggregator) *Aggregator {
	numGroups := a.NumGroups
	if b.NumGroups > numGroups {
		numGroups = b.NumGroups
	}
	out := NewAggregator(numGroups)
	addInto(&out.ChainGroupLength, a.ChainGroupLength)
	addInto(&out.ChainGroupLength, b.ChainGroupLength)
	addInto(&out.NumCollisionKeyComparisons, a.NumCollisionKeyComparisons)
	addInto(&out.NumCollisionKeyComparisons, b.NumCollisionKeyComparisons)
	addInto(&out.DistanceToAllocBoundary, a.DistanceToAllocBoundary)
	addInto(&out.DistanceToAllocBoundary, b.DistanceToAllocBoundary)
	out.NumSegments = a.NumSegments + b.NumSegments
	out.NumInflatedSegments = a.NumInflatedSegments + b.NumInflatedSegments
	out.NumFullSlots = a.NumFullSlots + b.NumFullSlots
	for k, v := range a.NumSegmentsPerAllocCapacity {
		out.NumSegmentsPerAllocCapacity[k] += v
	}
	for k, v := range b.NumSegmentsPerAllocCapacity {
		out.NumSegmentsPerAllocCapacity[k] += v
	}
	return out
}

func addInto(dst *[]int, src []int) {
	if len(src) > len(*dst) {
		grown := make([]int, len(src))
		copy(grown, *dst)
		*dst = grown
	}
	for i, v := range src {
		(*dst)[i] += v
	}
}
