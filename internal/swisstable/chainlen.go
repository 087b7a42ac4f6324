package swisstable

// BuildChainLen returns, for a table of numGroups groups (a power of two),
// a table of length numGroups mapping a group offset relative to a probe's
// base group -- (groupIdx - baseGroupIdx) mod numGroups -- back to the
// number of quadratic-probe steps needed to reach it. Because the
// triangular-number probe sequence's relative offsets don't depend on the
// base group, one table built relative to base 0 is valid for every probe
// in the table.
//
// Construction walks the chain starting at group 0: assign
// chainLen[currentGroup] = stepCount, advance
// currentGroup = (currentGroup + step) mod numGroups, step++. Grounded on
// spec.md §4.2's construction algorithm and the teacher's Get/Set
// triangular-number stepping (map.go's probeCount/group update).
func BuildChainLen(numGroups int) []int {
	if numGroups <= 0 || numGroups&(numGroups-1) != 0 {
		panic("swisstable: numGroups must be a positive power of two")
	}
	chainLen := make([]int, numGroups)
	for i := range chainLen {
		chainLen[i] = -1
	}

	mask := uint64(numGroups - 1)
	current := uint64(0)
	var step uint64 = 1
	for stepCount := 0; stepCount < numGroups; stepCount++ {
		chainLen[current] = stepCount
		current = (current + step) & mask
		step++
	}
	return chainLen
}
