// Package smoothiemap implements the hash-distribution monitoring
// subsystem for a SmoothieMap-style segmented hash table: it watches the
// host's segment splits and inflated segments for outcomes that would be
// statistically implausible under a well-behaved hash function, and
// reports the ones that clear a configurable probability threshold.
//
// The monitor never mutates the host map directly. It calls back into
// the host (TrySplit, Reporter) and otherwise only accumulates counters;
// all detection logic runs on numbers the host supplies.
package smoothiemap

import "fmt"

// Monitor tracks inflated-segment sizes and segment-split skew across a
// single host map's lifetime. The zero value is not usable; construct
// one with New.
type Monitor struct {
	minReportingProb float64
	reporter         Reporter

	// Debug, when set, makes the monitor print its slow-path decisions
	// to stdout via fmt.Printf, in the teacher's tracing style.
	Debug bool

	averageOrder int

	// Inflated-segment cache (spec.md §4.4).
	reportTooLargeInflated       bool
	sizeMaxNonReported           int
	orderForWhichComputed        int
	minMapSizeForWhichCacheValid uint64

	// reportTooManyInflated backs IsReportingTooManyInflatedSegments, an
	// interface hole reserved for a future check on the count of
	// inflated segments across the map (spec.md §9 "unused future
	// feature"). Nothing ever clears it; the monitor never constructs a
	// TooManyInflatedSegments occasion.
	reportTooManyInflated bool

	// Skewed-split generations (spec.md §3, §4.5).
	current *splitGeneration
	next    *splitGeneration

	hasReportedTooManySkewed bool
}

// New returns a Monitor that reports occasions whose probability under a
// fair hash function is at most minReportingProb (a value in (0,1]) to
// reporter.
func New(minReportingProb float64, reporter Reporter) *Monitor {
	if minReportingProb <= 0 || minReportingProb > 1 {
		panic("smoothiemap: minReportingProb must be in (0,1]")
	}
	if reporter == nil {
		panic("smoothiemap: reporter must not be nil")
	}
	return &Monitor{
		minReportingProb: minReportingProb,
		reporter:         reporter,

		reportTooLargeInflated: true,
		reportTooManyInflated:  true,

		current: newSplitGeneration(),
		next:    newSplitGeneration(),
	}
}

// IsReportingTooLargeInflatedSegment reports whether the monitor would
// still evaluate a newly inflated segment for a TooLargeInflatedSegment
// occasion, or whether that check has latched off (spec.md §6's query
// outbound call, used by the host to skip even the fast-path check once
// it knows the answer is always "no").
func (m *Monitor) IsReportingTooLargeInflatedSegment() bool {
	return m.reportTooLargeInflated
}

// IsReportingTooManyInflatedSegments is the query side of the reserved
// TooManyInflatedSegments occasion (spec.md §9): it always reports true,
// since nothing in the monitor ever evaluates or latches this check off.
func (m *Monitor) IsReportingTooManyInflatedSegments() bool {
	return m.reportTooManyInflated
}

// AverageSegmentOrderUpdated notifies the monitor that the host's
// computed average segment order changed from oldOrder to newOrder, and
// rotates the skew-split generations accordingly (spec.md §3):
//
//	Δ = +1  Next becomes Current; Next is reset.
//	Δ = -1  Current becomes Next; Current is reset.
//	Δ <= -2 both generations are reset.
//	otherwise: ErrIllegalState (the average cannot jump by more than
//	one order per split, nor stay unchanged and still be "updated").
func (m *Monitor) AverageSegmentOrderUpdated(oldOrder, newOrder int) error {
	delta := newOrder - oldOrder
	switch {
	case delta == 1:
		m.current, m.next = m.next, newSplitGeneration()
	case delta == -1:
		m.next, m.current = m.current, newSplitGeneration()
	case delta <= -2:
		m.current = newSplitGeneration()
		m.next = newSplitGeneration()
	default:
		return fmt.Errorf("%w: average segment order changed by %d (old=%d new=%d)",
			ErrIllegalState, delta, oldOrder, newOrder)
	}
	m.averageOrder = newOrder
	return nil
}

func (m *Monitor) reportTooManySkewed(level, count, nSplits int) {
	debugInfo := func() DebugMap {
		return NewDebugMap(
			"level", level,
			"count", count,
			"n_splits", nSplits,
			"p_skew", pSkew[level],
		)
	}
	occ := &Occasion{
		Type: TooManySkewedSegmentSplits,
		Message: fmt.Sprintf(
			"%d of the last %d segment splits produced a skew of level %d or worse, statistically implausible for a fair hash function",
			count, nSplits, level),
		DebugInfo: debugInfo,
	}
	// The return value is meaningless here: there is no single element
	// or segment a skew report could ask the host to remove.
	m.reporter(occ)
}

// GenerationSnapshot is a read-only view of one split generation's
// accounting state, for diagnostics and tests.
type GenerationSnapshot struct {
	NSplits    int
	SkewCounts [numSkewLevels]int
}

func snapshotGeneration(g *splitGeneration) GenerationSnapshot {
	s := GenerationSnapshot{NSplits: g.nSplits}
	for l := 0; l < numSkewLevels; l++ {
		s.SkewCounts[l] = g.levelStat(l).count
	}
	return s
}

// Snapshot is a read-only view of the monitor's internal state, for
// diagnostics and tests; it exposes no way to mutate the monitor.
type Snapshot struct {
	AverageOrder                 int
	Current, Next                GenerationSnapshot
	ReportTooLargeInflated       bool
	HasReportedTooManySkewed     bool
	SizeMaxNonReported           int
	OrderForWhichComputed        int
	MinMapSizeForWhichCacheValid uint64
}

// Snapshot returns the monitor's current state.
func (m *Monitor) Snapshot() Snapshot {
	return Snapshot{
		AverageOrder:                 m.averageOrder,
		Current:                      snapshotGeneration(m.current),
		Next:                         snapshotGeneration(m.next),
		ReportTooLargeInflated:       m.reportTooLargeInflated,
		HasReportedTooManySkewed:     m.hasReportedTooManySkewed,
		SizeMaxNonReported:           m.sizeMaxNonReported,
		OrderForWhichComputed:        m.orderForWhichComputed,
		MinMapSizeForWhichCacheValid: m.minMapSizeForWhichCacheValid,
	}
}
