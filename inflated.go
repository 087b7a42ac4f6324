package smoothiemap

import (
	"fmt"
	"math"
	"math/big"

	"github.com/smoothie-map/smoothiemap/stats"
)

func (m *Monitor) trace(format string, args ...any) {
	if m.Debug {
		fmt.Printf("smoothiemap: "+format+"\n", args...)
	}
}

// CheckAndReportTooLargeInflatedSegment implements spec.md §4.4: a fast
// path that almost always concludes "not implausible" using only cached
// state, and a slow path that asks the host to try relieving the segment
// by splitting it, recomputes the Poisson threshold if necessary, and
// otherwise reports a TooLargeInflatedSegment occasion.
//
// mapSize is the map's current key count, excluding the in-flight insert
// that produced excludedKeyHash/excludedKey (which has not yet been
// committed to segment, hence "excluded").
func (m *Monitor) CheckAndReportTooLargeInflatedSegment(segment *InflatedSegment, host Host, mapSize uint64, excludedKeyHash uint64, excludedKey any) error {
	if !m.reportTooLargeInflated {
		return nil
	}

	mightBeImplausible := mapSize < m.minMapSizeForWhichCacheValid ||
		compareNormalized(uint64(segment.Size), segment.Order, uint64(m.sizeMaxNonReported), m.orderForWhichComputed) > 0
	if !mightBeImplausible {
		return nil
	}

	return m.checkTooLargeInflatedSlow(segment, host, mapSize, excludedKeyHash, excludedKey)
}

func (m *Monitor) checkTooLargeInflatedSlow(segment *InflatedSegment, host Host, mapSize uint64, excludedKeyHash uint64, excludedKey any) error {
	average := host.ComputeAverageSegmentOrder(mapSize)
	m.trace("slow path: segment order=%d size=%d average=%d mapSize=%d", segment.Order, segment.Size, average, mapSize)

	if segment.TrySplit(host, excludedKeyHash) {
		m.trace("slow path: host split the inflated segment, condition relieved")
		// The segment is no longer inflated; the condition that
		// triggered this check no longer holds.
		return nil
	}

	if segment.Order < average {
		return fmt.Errorf("%w: inflated segment at order %d below the map's average order %d after a failed split",
			ErrAssertion, segment.Order, average)
	}

	numSegmentsAtAverage := uint64(1) << uint(average)
	mean := float64(mapSize) / float64(numSegmentsAtAverage)
	q := math.Pow(m.minReportingProb, 1/float64(numSegmentsAtAverage))

	poisson := stats.Poisson{Mean: mean}
	sizeMaxNonReported := poisson.InverseCDF(q, 0)

	var maxMeanStillInvalid float64
	if sizeMaxNonReported > 0 {
		maxMeanStillInvalid = stats.PoissonMeanByCDF(sizeMaxNonReported-1, q)
	}
	minMapSizeForWhichCacheValid := uint64(math.Ceil(maxMeanStillInvalid * float64(numSegmentsAtAverage)))
	if minMapSizeForWhichCacheValid > mapSize {
		return fmt.Errorf("%w: computed min map size for cache validity %d exceeds current map size %d",
			ErrAssertion, minMapSizeForWhichCacheValid, mapSize)
	}
	nudge := (mapSize - minMapSizeForWhichCacheValid) / 100
	if nudge < 1 {
		nudge = 1
	}
	minMapSizeForWhichCacheValid += nudge

	m.sizeMaxNonReported = sizeMaxNonReported
	m.orderForWhichComputed = average
	m.minMapSizeForWhichCacheValid = minMapSizeForWhichCacheValid

	sizeVirtual := uint64(segment.Size) << uint(segment.Order-average)
	if sizeVirtual <= uint64(sizeMaxNonReported) {
		return nil
	}

	occasionProbability := poisson.CCDF(int(sizeVirtual) - 1)
	order, size := segment.Order, segment.Size
	debugInfo := func() DebugMap {
		return NewDebugMap(
			"average_segment_order", average,
			"num_segments_at_average", numSegmentsAtAverage,
			"mean", mean,
			"min_reporting_prob_per_segment", q,
			"segment_size", size,
			"segment_order", order,
			"size_virtual", sizeVirtual,
			"occasion_probability", occasionProbability,
			"size_max_non_reported", sizeMaxNonReported,
			"min_map_size_for_which_cache_valid", minMapSizeForWhichCacheValid,
		)
	}

	occ := &Occasion{
		Type: TooLargeInflatedSegment,
		Message: fmt.Sprintf(
			"inflated segment at order %d holds %d keys (virtual size %d at average order %d), statistically implausible for a map of %d keys",
			order, size, sizeVirtual, average, mapSize),
		DebugInfo:   debugInfo,
		Segment:     segment,
		ExcludedKey: excludedKey,
	}
	m.trace("reporting too-large inflated segment: size_virtual=%d threshold=%d probability=%g", sizeVirtual, sizeMaxNonReported, occasionProbability)
	removedSomeElement := m.reporter(occ)
	m.reportTooLargeInflated = removedSomeElement

	return nil
}

// compareNormalized compares size1 at order1 against size2 at order2 by
// shifting the size with the lower order left by the difference of the
// two orders, using widened arithmetic so that no precision is lost
// regardless of how far apart order1 and order2 are. The sign of the
// result is the sign of size1*2^-order1 - size2*2^-order2.
func compareNormalized(size1 uint64, order1 int, size2 uint64, order2 int) int {
	shift1, shift2 := 0, 0
	if order2 > order1 {
		shift1 = order2 - order1
	} else {
		shift2 = order1 - order2
	}
	a := new(big.Int).Lsh(new(big.Int).SetUint64(size1), uint(shift1))
	b := new(big.Int).Lsh(new(big.Int).SetUint64(size2), uint(shift2))
	return a.Cmp(b)
}
