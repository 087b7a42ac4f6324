package main

import (
	"fmt"

	"github.com/smoothie-map/smoothiemap"
	"github.com/smoothie-map/smoothiemap/internal/swisstable"
	"github.com/smoothie-map/smoothiemap/internal/testmap"
	"github.com/smoothie-map/smoothiemap/mapstats"
	"github.com/smoothie-map/smoothiemap/probe"
)

func main() {
	var occasions int
	monitor := smoothiemap.New(1e-9, func(occ *smoothiemap.Occasion) bool {
		occasions++
		fmt.Printf("occasion: %s: %s\n", occ.Type, occ.Message)
		fmt.Println(occ.Debug())
		return false
	})
	// A low inflateAtOrder and a maxInflatedSplitOrder equal to it force
	// the demo's segments to inflate once they reach order 3 and never
	// relieve themselves, so a TOO_LARGE_INFLATED_SEGMENT occasion is guaranteed
	// well within the insert count below.
	m := testmap.New(monitor, 3, 3)

	const numKeys = 400_000
	for i := uint64(0); i < numKeys; i++ {
		if err := m.Insert(i, i*i); err != nil {
			fmt.Println("insert error:", err)
			break
		}
	}

	fmt.Printf("inserted %d keys, %d occasions reported\n", m.Len(), occasions)

	acc := mapstats.NewAccumulator(1)
	hash := func(k uint64) uint64 {
		x := k + 0x9e3779b97f4a7c15
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		return x ^ (x >> 31)
	}
	m.Walk(func(order int, table *swisstable.Table, inflated bool) {
		if inflated {
			acc.RecordInflatedSegment(order)
			return
		}
		agg := probe.NewAggregator(table.NumGroups())
		agg.RecordSegment(table.Cap())
		table.Groups(hash, func(res swisstable.InsertResult) {
			agg.RecordSlot(res, table.Boundary())
		})
		acc.RecordSegment(order, table.Len(), agg)
	})

	fmt.Println(acc.Report())
}
