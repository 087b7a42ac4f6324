// Package swisstable implements the group-probing substrate the probe
// aggregator (package probe) and the demo host (package testmap) build on:
// 16-byte control groups searched with a broadcast-compare-mask primitive,
// and quadratic inter-group probing driven by triangular numbers, both
// adapted from the teacher's map.go.
package swisstable

import "encoding/binary"

// GroupSlots is the number of control bytes (and paired key/value slots)
// per group, mirroring the teacher's 16-wide SIMD group.
const GroupSlots = 16

// MatchByte returns a bitmask with bit i set iff buffer[i] == c, scanning
// the first 16 bytes of buffer, and ok=false if buffer is shorter than 16
// bytes. This reimplements the broadcast-compare-mask primitive the
// teacher generated via avo/PCMPEQB+PMOVMSKB portably, using an exact,
// carry-free SWAR zero-byte test on an 8-byte word at a time.
func MatchByte(c uint8, buffer []byte) (mask uint32, ok bool) {
	if len(buffer) < GroupSlots {
		return 0, false
	}
	bcast := uint64(c) * 0x0101010101010101
	lo := binary.LittleEndian.Uint64(buffer[0:8]) ^ bcast
	hi := binary.LittleEndian.Uint64(buffer[8:16]) ^ bcast
	return matchMask(lo) | matchMask(hi)<<8, true
}

// matchMask returns an 8-bit mask (one bit per byte of x) marking the
// bytes of x that are exactly zero.
func matchMask(x uint64) uint32 {
	const low7 = 0x7f7f7f7f7f7f7f7f
	// Adding 0x7f to each byte's low 7 bits never carries into the next
	// byte, so the high bit of a byte survives the negation only if that
	// byte of x is zero.
	hasZero := ^(((x & low7) + low7) | x | low7)
	var m uint32
	for i := 0; i < 8; i++ {
		if hasZero&(0x80<<(8*i)) != 0 {
			m |= 1 << uint(i)
		}
	}
	return m
}
