package smoothiemap

import "testing"

func TestNewPanicsOnInvalidArgs(t *testing.T) {
	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}
	mustPanic("zero prob", func() { New(0, func(*Occasion) bool { return false }) })
	mustPanic("negative prob", func() { New(-0.5, func(*Occasion) bool { return false }) })
	mustPanic("prob over one", func() { New(1.5, func(*Occasion) bool { return false }) })
	mustPanic("nil reporter", func() { New(0.5, nil) })
}

func TestNewDefaultsReportTrue(t *testing.T) {
	m := New(0.5, func(*Occasion) bool { return false })
	if !m.IsReportingTooLargeInflatedSegment() {
		t.Error("new monitor should start reporting too-large inflated segments")
	}
	if m.hasReportedTooManySkewed {
		t.Error("new monitor should not have latched the skewed-split report")
	}
	if !m.IsReportingTooManyInflatedSegments() {
		t.Error("IsReportingTooManyInflatedSegments should always be true (reserved, unlatchable)")
	}
}

func TestOccasionTypeString(t *testing.T) {
	if got := TooLargeInflatedSegment.String(); got == "" {
		t.Error("TooLargeInflatedSegment.String() is empty")
	}
	if got := TooManySkewedSegmentSplits.String(); got == "" {
		t.Error("TooManySkewedSegmentSplits.String() is empty")
	}
}

func TestOccasionDebugEvaluatedOnce(t *testing.T) {
	calls := 0
	occ := &Occasion{
		DebugInfo: func() DebugMap {
			calls++
			return NewDebugMap("k", calls)
		},
	}
	first := occ.Debug()
	second := occ.Debug()
	if calls != 1 {
		t.Errorf("DebugInfo called %d times, want 1", calls)
	}
	if first.String() != second.String() {
		t.Errorf("Debug() not stable across calls: %q vs %q", first, second)
	}
}

func TestOccasionDebugNilWhenUnset(t *testing.T) {
	occ := &Occasion{}
	if d := occ.Debug(); d != nil {
		t.Errorf("Debug() = %v, want nil", d)
	}
}

func TestDebugMapString(t *testing.T) {
	d := NewDebugMap("a", 1, "b", "two")
	want := "a=1, b=two"
	if got := d.String(); got != want {
		t.Errorf("DebugMap.String() = %q, want %q", got, want)
	}
}
