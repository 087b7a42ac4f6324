// Package testmap is a minimal directory-of-segments host map used to
// drive smoothiemap.Monitor end to end: it implements the monitor's
// Host contract (spec.md §6) on top of internal/swisstable tables, with
// an extendible-hashing directory whose entries fan out as segments
// split. The directory shape -- a slice indexed by a hash prefix, with
// several consecutive entries sharing one segment below the directory's
// current order -- is grounded on the other_examples/ SmoothieMap-style
// directory layout (see DESIGN.md).
//
// It is deliberately not a general-purpose map: deletion, resizing the
// directory back down, and concurrent access are all out of scope, the
// same way they are out of scope for the monitor itself.
package testmap

import (
	"github.com/smoothie-map/smoothiemap"
	"github.com/smoothie-map/smoothiemap/internal/swisstable"
)

// segment is either ordinary (table non-nil) or inflated (inflated
// non-nil), never both -- the tagged-variant shape spec.md §4.2/§9 asks
// for, realized here as a two-field struct rather than an interface
// since only this package ever switches on which field is set.
type segment struct {
	order    int
	table    *swisstable.Table
	inflated map[uint64]uint64
}

// Map is a toy host map wired to a smoothiemap.Monitor.
type Map struct {
	directory []*segment
	dirBits   int

	// inflateAtOrder is the order at which a full ordinary segment is
	// converted to inflated representation instead of split further.
	// Lower values make inflation (and thus the monitor's inflated-size
	// checks) easier to trigger in tests.
	inflateAtOrder int
	// maxInflatedSplitOrder caps how far an inflated segment's TrySplit
	// is allowed to grow the directory trying to relieve itself. Set it
	// equal to inflateAtOrder to make every TrySplit fail deterministically.
	maxInflatedSplitOrder int

	monitor      *smoothiemap.Monitor
	hash         func(key uint64) uint64
	size         uint64
	averageOrder int
}

// New returns a Map with one order-0 segment, wired to monitor.
// inflateAtOrder and maxInflatedSplitOrder tune when segments inflate
// and whether they can ever be split back out of that state; see their
// field docs.
func New(monitor *smoothiemap.Monitor, inflateAtOrder, maxInflatedSplitOrder int) *Map {
	root := &segment{order: 0, table: swisstable.NewTable(1)}
	return &Map{
		directory:             []*segment{root},
		dirBits:               0,
		inflateAtOrder:        inflateAtOrder,
		maxInflatedSplitOrder: maxInflatedSplitOrder,
		monitor:               monitor,
		hash:                  splitmix64,
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Len returns the number of keys inserted.
func (m *Map) Len() uint64 { return m.size }

// ComputeAverageSegmentOrder implements smoothiemap.Host. This harness's
// directory only ever grows to the order its actual splits have reached
// (dirBits), so that order -- not an independent estimate from mapSize
// alone -- is the average: a single, still-inflated root segment must
// report an average order of 0 no matter how many keys it has absorbed,
// since no other segment in the directory has split past it.
func (m *Map) ComputeAverageSegmentOrder(mapSize uint64) int {
	return m.dirBits
}

// MaxSplittableSegmentOrder implements smoothiemap.Host: this harness
// never refuses a split outright, but bounds how far above the average
// a legitimate split can still be reported from, to let tests exercise
// the concurrent-modification error path.
func (m *Map) MaxSplittableSegmentOrder(average int) int {
	return average + 2
}

func (m *Map) dirIndex(hash uint64) int {
	return int(hash >> uint(64-m.dirBits))
}

// ensureDirBits doubles the directory until it has at least minBits of
// addressable prefix, the standard extendible-hashing growDirectory step.
func (m *Map) ensureDirBits(minBits int) {
	for m.dirBits < minBits {
		grown := make([]*segment, len(m.directory)*2)
		for i, s := range m.directory {
			grown[2*i] = s
			grown[2*i+1] = s
		}
		m.directory = grown
		m.dirBits++
	}
}

// installSplit repoints every directory entry currently pointing at old
// to whichever of seg0/seg1 matches the next hash bit.
func (m *Map) installSplit(old, seg0, seg1 *segment) {
	shift := uint(m.dirBits - seg0.order)
	for i, s := range m.directory {
		if s != old {
			continue
		}
		if (uint64(i)>>shift)&1 == 0 {
			m.directory[i] = seg0
		} else {
			m.directory[i] = seg1
		}
	}
}

func (m *Map) updateAverage() error {
	oldAverage := m.averageOrder
	newAverage := m.ComputeAverageSegmentOrder(m.size)
	if newAverage == oldAverage {
		return nil
	}
	if err := m.monitor.AverageSegmentOrderUpdated(oldAverage, newAverage); err != nil {
		return err
	}
	m.averageOrder = newAverage
	return nil
}

// Insert adds key/value, splitting or inflating segments as needed and
// driving the monitor the same way a production host would.
func (m *Map) Insert(key, value uint64) error {
	hash := m.hash(key)
	for {
		seg := m.directory[m.dirIndex(hash)]

		if seg.inflated != nil {
			// Check (and possibly split) before committing key: Size and
			// the split's partition must both exclude this still-in-flight
			// insert, per CheckAndReportTooLargeInflatedSegment's contract.
			if err := m.checkInflated(seg, hash, key); err != nil {
				return err
			}
			seg = m.directory[m.dirIndex(hash)]
			if seg.inflated != nil {
				seg.inflated[key] = value
				m.size++
				return nil
			}
			continue
		}

		if seg.table.Len() < seg.table.Cap() {
			seg.table.Insert(hash, key, value)
			m.size++
			return nil
		}

		if seg.order >= m.inflateAtOrder {
			m.inflate(seg)
			continue
		}
		if err := m.splitOrdinary(seg); err != nil {
			return err
		}
	}
}

func (m *Map) inflate(seg *segment) {
	seg.inflated = make(map[uint64]uint64, seg.table.Len())
	seg.table.Each(func(k, v uint64) { seg.inflated[k] = v })
	seg.table = nil
}

func (m *Map) splitOrdinary(seg *segment) error {
	priorOrder := seg.order
	newOrder := priorOrder + 1
	m.ensureDirBits(newOrder)

	bit := uint(64 - newOrder)
	seg0 := &segment{order: newOrder, table: swisstable.NewTable(1)}
	seg1 := &segment{order: newOrder, table: swisstable.NewTable(1)}
	var n0, n1 int
	seg.table.Each(func(k, v uint64) {
		h := m.hash(k)
		if (h>>bit)&1 == 0 {
			seg0.table.Insert(h, k, v)
			n0++
		} else {
			seg1.table.Insert(h, k, v)
			n1++
		}
	})
	m.installSplit(seg, seg0, seg1)

	if err := m.updateAverage(); err != nil {
		return err
	}
	return m.monitor.AccountSegmentSplit(m, priorOrder, n0, n1)
}

func (m *Map) checkInflated(seg *segment, excludedHash, excludedKey uint64) error {
	is := &smoothiemap.InflatedSegment{
		Size:  len(seg.inflated),
		Order: seg.order,
		TrySplit: func(host smoothiemap.Host, exHash uint64) bool {
			return m.trySplitInflated(seg, excludedKey)
		},
	}
	return m.monitor.CheckAndReportTooLargeInflatedSegment(is, m, m.size, excludedHash, excludedKey)
}

// trySplitInflated attempts to relieve an inflated segment by splitting
// it into two ordinary segments one order higher, excluding excludedKey
// (still mid-insertion from the caller's point of view) from the
// partition. It refuses if the directory would have to grow past
// maxInflatedSplitOrder, or if either resulting half would itself
// overflow an ordinary table -- both realistic reasons a host's own
// TrySplit can fail.
func (m *Map) trySplitInflated(seg *segment, excludedKey uint64) bool {
	newOrder := seg.order + 1
	if newOrder > m.maxInflatedSplitOrder {
		return false
	}

	bit := uint(64 - newOrder)
	capacity := swisstable.GroupSlots
	var n0, n1 int
	for k := range seg.inflated {
		if k == excludedKey {
			continue
		}
		if (m.hash(k)>>bit)&1 == 0 {
			n0++
		} else {
			n1++
		}
	}
	if n0 > capacity || n1 > capacity {
		return false
	}

	m.ensureDirBits(newOrder)
	seg0 := &segment{order: newOrder, table: swisstable.NewTable(1)}
	seg1 := &segment{order: newOrder, table: swisstable.NewTable(1)}
	for k, v := range seg.inflated {
		if k == excludedKey {
			continue
		}
		h := m.hash(k)
		if (h>>bit)&1 == 0 {
			seg0.table.Insert(h, k, v)
		} else {
			seg1.table.Insert(h, k, v)
		}
	}
	m.installSplit(seg, seg0, seg1)

	if err := m.updateAverage(); err != nil {
		return false
	}
	if err := m.monitor.AccountSegmentSplit(m, seg.order, n0, n1); err != nil {
		return false
	}
	return true
}

// Walk calls visit once per segment currently in the directory (each
// shared segment visited once, not once per directory entry), for
// probe/mapstats-style diagnostics dumps.
func (m *Map) Walk(visit func(order int, table *swisstable.Table, inflated bool)) {
	seen := make(map[*segment]bool)
	for _, s := range m.directory {
		if seen[s] {
			continue
		}
		seen[s] = true
		visit(s.order, s.table, s.inflated != nil)
	}
}
