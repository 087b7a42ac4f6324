package smoothiemap

import (
	"errors"
	"testing"
)

// TestSkewBalancedSplitsNoReport is spec.md §8 scenario S1: 1000 splits
// from order A-1 with a near-even split never triggers a report, and the
// per-level counts stay at or below the conservative lower bound.
func TestSkewBalancedSplitsNoReport(t *testing.T) {
	host := &fakeHost{average: 6, maxSplittable: 8}
	var reported int
	m := New(1e-6, func(occ *Occasion) bool {
		reported++
		return false
	})
	m.averageOrder = host.average

	halves := [3]int{23, 24, 25}
	for i := 0; i < 1000; i++ {
		h1 := halves[i%3]
		h2 := 48 - h1
		if err := m.AccountSegmentSplit(host, host.average-1, h1, h2); err != nil {
			t.Fatalf("AccountSegmentSplit(%d) = %v", i, err)
		}
	}

	if reported != 0 {
		t.Fatalf("reported = %d, want 0", reported)
	}
	snap := m.Snapshot()
	if snap.Current.NSplits != 1000 {
		t.Errorf("Current.NSplits = %d, want 1000", snap.Current.NSplits)
	}
	for level := 0; level < numSkewLevels; level++ {
		bound := int(pSkew[level] * 1000)
		if snap.Current.SkewCounts[level] > bound+1 {
			t.Errorf("level %d count = %d, want <= conservative bound %d", level, snap.Current.SkewCounts[level], bound)
		}
	}
}

// TestSkewPathologicalSplitsReportsOnce is spec.md §8 scenario S2: 200
// maximally skewed splits (48/0) trigger exactly one occasion, and the
// latch silences all further accounting.
func TestSkewPathologicalSplitsReportsOnce(t *testing.T) {
	host := &fakeHost{average: 6, maxSplittable: 8}
	var occasions []*Occasion
	m := New(1e-6, func(occ *Occasion) bool {
		occasions = append(occasions, occ)
		return false
	})
	m.averageOrder = host.average

	for i := 0; i < 200; i++ {
		if err := m.AccountSegmentSplit(host, host.average, 48, 0); err != nil {
			t.Fatalf("AccountSegmentSplit(%d) = %v", i, err)
		}
	}

	if len(occasions) != 1 {
		t.Fatalf("got %d occasions, want 1", len(occasions))
	}
	if occasions[0].Type != TooManySkewedSegmentSplits {
		t.Errorf("occasion type = %v, want TooManySkewedSegmentSplits", occasions[0].Type)
	}
	if !m.hasReportedTooManySkewed {
		t.Error("hasReportedTooManySkewed not latched")
	}

	snapBefore := m.Snapshot()
	if err := m.AccountSegmentSplit(host, host.average, 48, 0); err != nil {
		t.Fatalf("AccountSegmentSplit after latch = %v", err)
	}
	snapAfter := m.Snapshot()
	if snapBefore.Next != snapAfter.Next {
		t.Errorf("accounting state changed after latch: before=%+v after=%+v", snapBefore.Next, snapAfter.Next)
	}
	if len(occasions) != 1 {
		t.Errorf("got %d occasions after latch, want still 1", len(occasions))
	}
}

// TestAverageSegmentOrderUpdatedRotation exercises the Δ rotation table
// from spec.md §3; see DESIGN.md for why this deviates from §8 S3's
// prose (which names the two generations the other way around).
func TestAverageSegmentOrderUpdatedRotation(t *testing.T) {
	host := &fakeHost{average: 6, maxSplittable: 8}
	m := New(1e-6, func(occ *Occasion) bool { return false })

	if err := m.AverageSegmentOrderUpdated(5, 6); err != nil {
		t.Fatalf("AverageSegmentOrderUpdated(5,6) = %v", err)
	}
	m.averageOrder = 6
	host.average = 6

	for i := 0; i < 10; i++ {
		if err := m.AccountSegmentSplit(host, 5, 24, 24); err != nil {
			t.Fatalf("AccountSegmentSplit(%d) = %v", i, err)
		}
	}
	if got := m.Snapshot().Current.NSplits; got != 10 {
		t.Fatalf("Current.NSplits = %d, want 10 before second rotation", got)
	}

	if err := m.AverageSegmentOrderUpdated(6, 5); err != nil {
		t.Fatalf("AverageSegmentOrderUpdated(6,5) = %v", err)
	}

	snap := m.Snapshot()
	if snap.Next.NSplits != 10 {
		t.Errorf("Next.NSplits = %d, want 10 (old Current relabeled)", snap.Next.NSplits)
	}
	if snap.Current.NSplits != 0 {
		t.Errorf("Current.NSplits = %d, want 0 (fresh generation)", snap.Current.NSplits)
	}
}

func TestAverageSegmentOrderUpdatedBigDropResetsBoth(t *testing.T) {
	m := New(1e-6, func(occ *Occasion) bool { return false })
	host := &fakeHost{average: 6, maxSplittable: 8}
	m.averageOrder = 6
	for i := 0; i < 5; i++ {
		m.AccountSegmentSplit(host, 5, 24, 24)
	}
	if err := m.AverageSegmentOrderUpdated(6, 3); err != nil {
		t.Fatalf("AverageSegmentOrderUpdated(6,3) = %v", err)
	}
	snap := m.Snapshot()
	if snap.Current.NSplits != 0 || snap.Next.NSplits != 0 {
		t.Errorf("expected both generations reset, got %+v", snap)
	}
}

func TestAverageSegmentOrderUpdatedRejectsImplausibleDelta(t *testing.T) {
	m := New(1e-6, func(occ *Occasion) bool { return false })
	if err := m.AverageSegmentOrderUpdated(5, 5); err == nil {
		t.Error("expected error for zero delta")
	}
	if err := m.AverageSegmentOrderUpdated(5, 7); err == nil {
		t.Error("expected error for +2 delta")
	}
}

// TestAccountSegmentSplitConcurrentModification is spec.md §8 scenario S6.
func TestAccountSegmentSplitConcurrentModification(t *testing.T) {
	host := &fakeHost{average: 6, maxSplittable: 7}
	m := New(1e-6, func(occ *Occasion) bool { return false })
	m.averageOrder = 6

	err := m.AccountSegmentSplit(host, 8, 24, 24)
	if err == nil {
		t.Fatal("expected ConcurrentModification error")
	}
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("err = %v, want wrapping ErrConcurrentModification", err)
	}
}

func TestAccountSegmentSplitStaleOrderIgnored(t *testing.T) {
	host := &fakeHost{average: 6, maxSplittable: 8}
	m := New(1e-6, func(occ *Occasion) bool { return false })
	m.averageOrder = 6

	if err := m.AccountSegmentSplit(host, 2, 24, 24); err != nil {
		t.Fatalf("stale split should be ignored, got %v", err)
	}
	snap := m.Snapshot()
	if snap.Current.NSplits != 0 || snap.Next.NSplits != 0 {
		t.Errorf("stale split should not be accounted, got %+v", snap)
	}
}

func TestSkewnessLevel(t *testing.T) {
	tests := []struct {
		maxHalf int
		want    int
	}{
		{24, -1},
		{25, -1},
		{28, -1},
		{29, 0},
		{30, 1},
		{31, 2},
		{32, 3},
		{48, 3},
	}
	for _, tt := range tests {
		if got := skewnessLevel(tt.maxHalf); got != tt.want {
			t.Errorf("skewnessLevel(%d) = %d, want %d", tt.maxHalf, got, tt.want)
		}
	}
}
