package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatHistogram renders one histogram in the textual format spec.md
// §4.2/§6 describes: "<prefix> <index>: <count> <name>, <pct>% <cum_pct>%",
// with the index column right-padded to the width of the largest index and
// the count column right-padded to the width of the largest count. Rows
// whose count is zero are elided.
func FormatHistogram(prefix, name string, counts []int) string {
	total := 0
	maxVal := 0
	for _, c := range counts {
		total += c
		if c > maxVal {
			maxVal = c
		}
	}
	if total == 0 {
		return ""
	}

	indexWidth := len(strconv.Itoa(len(counts) - 1))
	countWidth := len(strconv.Itoa(maxVal))

	var sb strings.Builder
	cum := 0
	for i, c := range counts {
		if c == 0 {
			continue
		}
		cum += c
		pct := 100 * float64(c) / float64(total)
		cumPct := 100 * float64(cum) / float64(total)
		fmt.Fprintf(&sb, "%s %*d: %*d %s, %.2f%% %.2f%%\n",
			prefix, indexWidth, i, countWidth, c, name, pct, cumPct)
	}
	return sb.String()
}

func average(counts []int) float64 {
	var total, weighted int
	for i, c := range counts {
		total += c
		weighted += i * c
	}
	if total == 0 {
		return 0
	}
	return float64(weighted) / float64(total)
}

// Report renders the full per-segment statistics dump: averages for each
// histogram followed by the histograms themselves, matching the teacher's
// plain fmt-based debug trace style rather than pulling in a table
// library.
func (a *Aggregator) Report() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "segments: %d (%d inflated), full slots: %d\n",
		a.NumSegments, a.NumInflatedSegments, a.NumFullSlots)
	fmt.Fprintf(&sb, "avg chain group length: %.3f\n", average(a.ChainGroupLength))
	fmt.Fprintf(&sb, "avg collision key comparisons: %.3f\n", average(a.NumCollisionKeyComparisons))
	fmt.Fprintf(&sb, "avg distance to alloc boundary: %.3f\n", average(a.DistanceToAllocBoundary))

	if s := FormatHistogram("chain group length", "slots", a.ChainGroupLength); s != "" {
		sb.WriteString(s)
	}
	if s := FormatHistogram("collision key comparisons", "slots", a.NumCollisionKeyComparisons); s != "" {
		sb.WriteString(s)
	}
	if s := FormatHistogram("distance to alloc boundary", "slots", a.DistanceToAllocBoundary); s != "" {
		sb.WriteString(s)
	}

	if len(a.NumSegmentsPerAllocCapacity) > 0 {
		maxCap := 0
		for cap := range a.NumSegmentsPerAllocCapacity {
			if cap > maxCap {
				maxCap = cap
			}
		}
		counts := make([]int, maxCap+1)
		for cap, n := range a.NumSegmentsPerAllocCapacity {
			counts[cap] = n
		}
		if s := FormatHistogram("segments per alloc capacity", "segments", counts); s != "" {
			sb.WriteString(s)
		}
	}

	return sb.String()
}
