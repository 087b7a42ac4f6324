package smoothiemap

// fakeHost is a scriptable smoothiemap.Host for tests that want to drive
// Monitor without a real segmented map underneath.
type fakeHost struct {
	average       int
	maxSplittable int
}

func (h *fakeHost) ComputeAverageSegmentOrder(mapSize uint64) int { return h.average }
func (h *fakeHost) MaxSplittableSegmentOrder(average int) int     { return h.maxSplittable }
