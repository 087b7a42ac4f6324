package smoothiemap

import (
	"fmt"

	"github.com/smoothie-map/smoothiemap/stats"
)

// numSkewLevels is the number of tracked skewness levels (spec.md §3,
// §4.5): level 0 is the mildest accounted skew, level 3 the most severe.
const numSkewLevels = 4

// pSkew holds P_skew[level], the probability that an unbiased hash
// function produces a split whose larger half has at least
// 29+level keys out of 48, equal to 2*Binomial(48, 0.5).CCDF(28+level)
// (checked by TestPSkewValues in package stats).
var pSkew = [numSkewLevels]float64{
	0.19341,
	0.11140,
	0.05946,
	0.02930,
}

// skewnessLevel maps a split's larger half key count to an accounted
// skew level in [0,3], or -1 if the split isn't skewed enough to track
// at all. See DESIGN.md's "skewness level formula" resolution: spec.md
// §4.5's literal formula saturates at level 3 for every maxKeysHalf
// above 24 and is superseded here by §3's clamp(maxKeysHalf-29, 0, 3).
// Level 0 is maxKeysHalf >= 29 exactly -- pSkew[0] is P(maxKeysHalf >=
// 29) under a fair hash, so a split below 29 isn't skewed enough to
// count against any level's bound.
func skewnessLevel(maxKeysHalf int) int {
	if maxKeysHalf < 29 {
		return -1
	}
	level := maxKeysHalf - 29
	if level > 3 {
		level = 3
	}
	return level
}

// skewLevelStat is the per-level accounting state within a generation:
// how many splits have landed at this level or worse, and the highest
// count known not to warrant a report the last time it was checked.
type skewLevelStat struct {
	count                      int
	maxNonReportedLastComputed int
}

// splitGeneration accounts splits sharing a prior segment order relative
// to the map's current average order (spec.md §3). nSplits counts every
// split landing in this generation; levels is allocated lazily, on the
// first split skewed enough to track, and is never freed -- a generation
// that never sees a skewed split carries no extra allocation.
type splitGeneration struct {
	nSplits int
	levels  *[numSkewLevels]skewLevelStat
}

func newSplitGeneration() *splitGeneration {
	return &splitGeneration{}
}

func (g *splitGeneration) ensureLevels() *[numSkewLevels]skewLevelStat {
	if g.levels == nil {
		g.levels = &[numSkewLevels]skewLevelStat{}
	}
	return g.levels
}

// levelStat returns the stat for level, or a zero value if levels hasn't
// been allocated yet (read-only access, e.g. for snapshots).
func (g *splitGeneration) levelStat(level int) skewLevelStat {
	if g.levels == nil {
		return skewLevelStat{}
	}
	return g.levels[level]
}

// AccountSegmentSplit records one segment split and reports
// TooManySkewedSegmentSplits if an accounted level's observed count
// becomes statistically implausible given a fair hash function, per
// spec.md §4.5. priorSegmentOrder is the order of the segment that was
// split; numKeysHalf1 and numKeysHalf2 are the resulting two segments'
// key counts.
//
// Once a skew occasion has been reported, subsequent calls are no-ops:
// the condition latches for the monitor's lifetime (spec.md §4.5).
func (m *Monitor) AccountSegmentSplit(host Host, priorSegmentOrder, numKeysHalf1, numKeysHalf2 int) error {
	if m.hasReportedTooManySkewed {
		return nil
	}

	var gen *splitGeneration
	switch priorSegmentOrder {
	case m.averageOrder - 1:
		gen = m.current
	case m.averageOrder:
		gen = m.next
	default:
		if priorSegmentOrder > host.MaxSplittableSegmentOrder(m.averageOrder) {
			return fmt.Errorf("%w: split reported for segment order %d, beyond max splittable order for average %d",
				ErrConcurrentModification, priorSegmentOrder, m.averageOrder)
		}
		// A split reported against a stale, now-behind-the-average
		// order: harmless, nothing to account.
		return nil
	}
	gen.nSplits++

	maxHalf := numKeysHalf1
	if numKeysHalf2 > maxHalf {
		maxHalf = numKeysHalf2
	}
	level := skewnessLevel(maxHalf)
	if level < 0 {
		return nil
	}

	levels := gen.ensureLevels()
	for l := level; l >= 0; l-- {
		stat := &levels[l]
		stat.count++

		if stat.count <= stat.maxNonReportedLastComputed {
			continue
		}

		// Cheap necessary condition before reaching for the exact
		// Binomial machinery: the expected count at this level.
		cheapBound := int(pSkew[l] * float64(gen.nSplits))
		if stat.count <= cheapBound {
			stat.maxNonReportedLastComputed = cheapBound
			continue
		}

		prevBound := stat.maxNonReportedLastComputed
		if cheapBound > prevBound {
			prevBound = cheapBound
		}
		// q = 1 - minReportingProb, the same near-1 convention the
		// inflated-segment slow path uses: CDF(k) >= q iff
		// P(X > k) <= minReportingProb, i.e. k is the largest count
		// not yet implausible.
		b := stats.Binomial{N: gen.nSplits, P: pSkew[l]}
		threshold := b.InverseCDF(1-m.minReportingProb, prevBound)
		if stat.count <= threshold {
			stat.maxNonReportedLastComputed = threshold
			continue
		}

		m.trace("reporting too many skewed splits: level=%d count=%d nSplits=%d", l, stat.count, gen.nSplits)
		m.reportTooManySkewed(l, stat.count, gen.nSplits)
		m.hasReportedTooManySkewed = true
		return nil
	}
	return nil
}
