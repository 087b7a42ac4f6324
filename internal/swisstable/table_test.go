package swisstable

import "testing"

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func TestTableInsertGet(t *testing.T) {
	tbl := NewTable(4)
	for i := uint64(0); i < 40; i++ {
		tbl.Insert(splitmix64(i), i, i*10)
	}
	if tbl.Len() != 40 {
		t.Fatalf("Len() = %d, want 40", tbl.Len())
	}
	for i := uint64(0); i < 40; i++ {
		v, ok := tbl.Get(splitmix64(i), i)
		if !ok {
			t.Errorf("Get(%d) not found", i)
		}
		if v != i*10 {
			t.Errorf("Get(%d) = %d, want %d", i, v, i*10)
		}
	}
	if _, ok := tbl.Get(splitmix64(1000), 1000); ok {
		t.Error("Get of missing key returned ok=true")
	}
}

func TestTableInsertUpdatesExisting(t *testing.T) {
	tbl := NewTable(4)
	h := splitmix64(7)
	r1 := tbl.Insert(h, 7, 1)
	if r1.AlreadyExists {
		t.Error("first insert reported AlreadyExists")
	}
	r2 := tbl.Insert(h, 7, 2)
	if !r2.AlreadyExists {
		t.Error("second insert of same key did not report AlreadyExists")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
	v, _ := tbl.Get(h, 7)
	if v != 2 {
		t.Errorf("Get() = %d, want 2 (updated)", v)
	}
}

func TestTableAllocIndexMonotone(t *testing.T) {
	tbl := NewTable(4)
	prev := -1
	for i := uint64(0); i < 30; i++ {
		r := tbl.Insert(splitmix64(i), i, 0)
		if r.AllocIdx <= prev {
			t.Fatalf("AllocIdx not monotone: %d after %d", r.AllocIdx, prev)
		}
		prev = r.AllocIdx
	}
}

func TestTableGroupsWalksAllFilledSlots(t *testing.T) {
	tbl := NewTable(4)
	want := map[uint64]bool{}
	for i := uint64(0); i < 20; i++ {
		tbl.Insert(splitmix64(i), i, 0)
		want[i] = true
	}
	got := map[uint64]bool{}
	tbl.Groups(splitmix64, func(res InsertResult) {
		g := tbl.groups[res.GroupIdx]
		got[g.keys[res.SlotIdx]] = true
	})
	if len(got) != len(want) {
		t.Fatalf("Groups walked %d slots, want %d", len(got), len(want))
	}
	for k := range want {
		if !got[k] {
			t.Errorf("Groups did not walk key %d", k)
		}
	}
}
