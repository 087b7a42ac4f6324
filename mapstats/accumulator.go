// Package mapstats implements the map-level stats accumulator (spec.md
// §4.3): a two-dimensional sparse table of probe.Aggregators keyed by
// (segment order, number of non-empty slots), used only on demand for
// diagnostics dumps.
package mapstats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smoothie-map/smoothiemap/probe"
)

type bucketKey struct {
	order            int
	numNonEmptySlots int
}

// Accumulator buckets per-segment probe.Aggregators by
// (segmentOrder, numNonEmptySlots). Inflated segments are counted
// separately and never aggregated into a bucket, per spec.md §4.3.
type Accumulator struct {
	numGroups        int
	buckets          map[bucketKey]*probe.Aggregator
	perOrderSegments map[int]int
	inflatedByOrder  map[int]int
}

// NewAccumulator returns an Accumulator for ordinary segments with
// numGroups groups each.
func NewAccumulator(numGroups int) *Accumulator {
	return &Accumulator{
		numGroups:        numGroups,
		buckets:          make(map[bucketKey]*probe.Aggregator),
		perOrderSegments: make(map[int]int),
		inflatedByOrder:  make(map[int]int),
	}
}

// RecordSegment folds one ordinary segment's aggregator into the bucket
// for its (order, numNonEmptySlots) pair.
func (a *Accumulator) RecordSegment(order, numNonEmptySlots int, seg *probe.Aggregator) {
	k := bucketKey{order, numNonEmptySlots}
	if existing, ok := a.buckets[k]; ok {
		a.buckets[k] = existing.Combine(seg)
	} else {
		a.buckets[k] = seg
	}
	a.perOrderSegments[order]++
}

// RecordInflatedSegment counts an inflated segment against its order,
// without aggregating slot-level statistics for it.
func (a *Accumulator) RecordInflatedSegment(order int) {
	a.perOrderSegments[order]++
	a.inflatedByOrder[order]++
}

// PerOrderSegmentCounts returns the number of segments (ordinary and
// inflated) recorded at each order.
func (a *Accumulator) PerOrderSegmentCounts() map[int]int {
	out := make(map[int]int, len(a.perOrderSegments))
	for k, v := range a.perOrderSegments {
		out[k] = v
	}
	return out
}

// Total combines every recorded bucket into a single aggregator.
func (a *Accumulator) Total() *probe.Aggregator {
	total := probe.NewAggregator(a.numGroups)
	for _, agg := range a.buckets {
		total = total.Combine(agg)
	}
	for _, n := range a.inflatedByOrder {
		for i := 0; i < n; i++ {
			total.RecordInflatedSegment()
		}
	}
	return total
}

// ByNumNonEmptySlots combines every bucket with the given numNonEmptySlots
// across all segment orders.
func (a *Accumulator) ByNumNonEmptySlots(numNonEmptySlots int) *probe.Aggregator {
	total := probe.NewAggregator(a.numGroups)
	for k, agg := range a.buckets {
		if k.numNonEmptySlots == numNonEmptySlots {
			total = total.Combine(agg)
		}
	}
	return total
}

// Report renders the "segment order and load distribution" dump: per-order
// segment counts (ordinary + inflated, with inflated called out), in the
// teacher's plain fmt-based style.
func (a *Accumulator) Report() string {
	orders := make([]int, 0, len(a.perOrderSegments))
	for o := range a.perOrderSegments {
		orders = append(orders, o)
	}
	sort.Ints(orders)

	var sb strings.Builder
	for _, o := range orders {
		n := a.perOrderSegments[o]
		inflated := a.inflatedByOrder[o]
		fmt.Fprintf(&sb, "order %d: %d segments (%d inflated)\n", o, n, inflated)
	}
	sb.WriteString(a.Total().Report())
	return sb.String()
}
