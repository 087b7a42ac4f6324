package swisstable

import "math/bits"

// Table is a minimal single-segment open-addressing hash table: a
// power-of-two number of 16-wide control-byte groups searched with
// MatchByte, and quadratic inter-group probing via triangular numbers.
// Adapted directly from the teacher's Map type (map.go Get/Set), reduced
// to uint64 keys/values and generalized to take the hash as a parameter
// (a directory, not this table, owns which high bits select a segment).
//
// Table also tracks the bump-allocated "alloc index" each slot was filled
// at, which feeds the probe aggregator's distance-to-alloc-boundary
// histogram (spec.md §4.2): it is a monotonically increasing counter, not
// a reused slot position, modeling the arena-style allocation the
// monitor's host is documented to use without requiring us to implement
// that allocator.
type Table struct {
	groups    []group
	groupMask uint64
	size      int
	nextAlloc int
}

type group struct {
	control [GroupSlots]byte
	keys    [GroupSlots]uint64
	values  [GroupSlots]uint64
	allocAt [GroupSlots]int
}

// NewTable returns a Table with numGroups groups (must be a power of two).
func NewTable(numGroups int) *Table {
	if numGroups <= 0 || numGroups&(numGroups-1) != 0 {
		panic("swisstable: numGroups must be a positive power of two")
	}
	return &Table{
		groups:    make([]group, numGroups),
		groupMask: uint64(numGroups) - 1,
	}
}

func (t *Table) NumGroups() int { return len(t.groups) }
func (t *Table) Len() int       { return t.size }
func (t *Table) Cap() int       { return len(t.groups) * GroupSlots }

// Boundary is the allocation-index midpoint used by the aggregator's
// distance-to-alloc-boundary histogram.
func (t *Table) Boundary() int { return t.Cap() / 2 }

func topHashOf(hash uint64) uint8 {
	h := uint8(hash >> 56)
	if h == 0 {
		h = 1
	}
	return h
}

// InsertResult carries the per-slot bookkeeping the probe aggregator
// (package probe) needs: which group the key landed in, the group the
// probe started from, how many false topHash collisions were compared
// against real keys along the way, and the bump-allocator index the slot
// was filled at.
type InsertResult struct {
	BaseGroupIdx  int
	GroupIdx      int
	SlotIdx       int
	AllocIdx      int
	Comparisons   int
	AlreadyExists bool
}

// Insert adds key/value (or updates an existing key) and reports where it
// landed. Mirrors the teacher's Set, generalized to uint64 keys/values and
// an externally supplied hash.
func (t *Table) Insert(hash uint64, key, value uint64) InsertResult {
	topHash := topHashOf(hash)
	baseGroup := hash & t.groupMask
	group := baseGroup

	var probeCount uint64
	var comparisons int
	for {
		g := &t.groups[group]
		bitmask, _ := MatchByte(topHash, g.control[:])
		for bitmask != 0 {
			idx := bits.TrailingZeros32(bitmask)
			if g.keys[idx] == key {
				g.values[idx] = value
				return InsertResult{
					BaseGroupIdx:  int(baseGroup),
					GroupIdx:      int(group),
					SlotIdx:       idx,
					AllocIdx:      g.allocAt[idx],
					Comparisons:   comparisons,
					AlreadyExists: true,
				}
			}
			comparisons++
			bitmask &= ^(uint32(1) << uint(idx))
		}

		emptyMask, _ := MatchByte(0, g.control[:])
		if emptyIdx := bits.TrailingZeros32(emptyMask); emptyIdx < GroupSlots {
			g.control[emptyIdx] = topHash
			g.keys[emptyIdx] = key
			g.values[emptyIdx] = value
			g.allocAt[emptyIdx] = t.nextAlloc
			allocIdx := t.nextAlloc
			t.nextAlloc++
			t.size++
			return InsertResult{
				BaseGroupIdx: int(baseGroup),
				GroupIdx:     int(group),
				SlotIdx:      emptyIdx,
				AllocIdx:     allocIdx,
				Comparisons:  comparisons,
			}
		}

		probeCount++
		group = (group + probeCount) & t.groupMask
		if probeCount > t.groupMask+1 {
			panic("swisstable: table full, caller must grow before inserting")
		}
	}
}

// Get mirrors the teacher's Get.
func (t *Table) Get(hash uint64, key uint64) (value uint64, ok bool) {
	topHash := topHashOf(hash)
	group := hash & t.groupMask

	var probeCount uint64
	for {
		g := &t.groups[group]
		bitmask, _ := MatchByte(topHash, g.control[:])
		for bitmask != 0 {
			idx := bits.TrailingZeros32(bitmask)
			if g.keys[idx] == key {
				return g.values[idx], true
			}
			bitmask &= ^(uint32(1) << uint(idx))
		}

		emptyMask, _ := MatchByte(0, g.control[:])
		if bits.TrailingZeros32(emptyMask) < GroupSlots {
			return 0, false
		}

		probeCount++
		group = (group + probeCount) & t.groupMask
		if probeCount > t.groupMask+1 {
			return 0, false
		}
	}
}

// Each calls yield with every filled slot's key and value, in storage
// order. Used by a host's segment-split logic to redistribute keys into
// child segments; the probe aggregator itself only needs Groups.
func (t *Table) Each(yield func(key, value uint64)) {
	for gi := range t.groups {
		g := &t.groups[gi]
		for slot := 0; slot < GroupSlots; slot++ {
			if g.control[slot] == 0 {
				continue
			}
			yield(g.keys[slot], g.values[slot])
		}
	}
}

// Groups exposes each filled slot's group/base-group/alloc bookkeeping for
// the probe aggregator to walk during a diagnostics dump. base is
// recomputed per key since a dump happens long after insertion.
func (t *Table) Groups(hashFunc func(key uint64) uint64, yield func(res InsertResult)) {
	for gi := range t.groups {
		g := &t.groups[gi]
		for slot := 0; slot < GroupSlots; slot++ {
			if g.control[slot] == 0 {
				continue
			}
			key := g.keys[slot]
			base := hashFunc(key) & t.groupMask
			yield(InsertResult{
				BaseGroupIdx: int(base),
				GroupIdx:     gi,
				SlotIdx:      slot,
				AllocIdx:     g.allocAt[slot],
			})
		}
	}
}
