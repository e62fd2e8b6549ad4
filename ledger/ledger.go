// Package ledger tracks outstanding heap bytes on behalf of the unit that
// is currently running.
//
// A Ledger carries no notion of which unit it is serving: the runner resets
// it before a unit starts and reads it back once the unit returns. Any
// allocation recorded in between, from whatever code path, is attributed
// to that unit.
package ledger

import (
	"fmt"
	"sync/atomic"
)

// Default is the process-wide ledger fed by the package-level Alloc.
var Default = New()

// Stats counts allocation and free calls since the last reset.
type Stats struct {
	Allocs uint64
	Frees  uint64
}

// Ledger is a running count of bytes allocated minus bytes freed since
// the last Reset.
type Ledger struct {
	bytes  atomic.Int64
	allocs atomic.Uint64
	frees  atomic.Uint64
}

// New returns an empty Ledger independent of Default.
func New() *Ledger {
	return &Ledger{}
}

// Reset zeroes the byte counter and the call counters.
func (l *Ledger) Reset() {
	l.bytes.Store(0)
	l.allocs.Store(0)
	l.frees.Store(0)
}

// RecordAllocated adds n bytes to the counter.
func (l *Ledger) RecordAllocated(n uint64) {
	l.bytes.Add(int64(n))
	l.allocs.Add(1)
}

// RecordFreed subtracts n bytes from the counter.
func (l *Ledger) RecordFreed(n uint64) {
	l.bytes.Add(-int64(n))
	l.frees.Add(1)
}

// CurrentBytes returns the net outstanding byte count since the last
// Reset. The value is negative when memory allocated before the reset was
// freed afterwards; it is never clamped.
func (l *Ledger) CurrentBytes() int64 {
	return l.bytes.Load()
}

// Stats returns the call counters since the last Reset.
func (l *Ledger) Stats() Stats {
	return Stats{
		Allocs: l.allocs.Load(),
		Frees:  l.frees.Load(),
	}
}

// Block is a tracked heap allocation. Its size is recorded against the
// owning ledger on Alloc and released on Free.
type Block struct {
	buf    []byte
	owner  *Ledger
	freed  atomic.Bool
	tracks uint64
}

// Alloc allocates an n byte block and records it against l. A
// non-positive n yields an empty block that records nothing.
func (l *Ledger) Alloc(n int) *Block {
	if n <= 0 {
		return &Block{owner: l}
	}

	b := &Block{
		buf:    make([]byte, n),
		owner:  l,
		tracks: uint64(n),
	}
	l.RecordAllocated(b.tracks)

	return b
}

// Alloc allocates an n byte block against Default.
func Alloc(n int) *Block {
	return Default.Alloc(n)
}

// Bytes returns the block's backing memory. It is nil after Free.
func (b *Block) Bytes() []byte {
	if b.freed.Load() {
		return nil
	}

	return b.buf
}

// Len returns the number of bytes the block tracks.
func (b *Block) Len() int {
	return int(b.tracks)
}

// Free releases the block. Freeing a block twice panics.
func (b *Block) Free() {
	if !b.freed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("ledger: double free of %d byte block", b.tracks))
	}

	if b.tracks > 0 {
		b.owner.RecordFreed(b.tracks)
	}
}
