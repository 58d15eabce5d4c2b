// Package tlb implements the simulator's translation lookaside buffer: a
// fixed-capacity map of (process, page) -> frame with FIFO eviction.
package tlb

import (
	"sync"

	"github.com/sarchlab/vmemsim/mem/vm"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

// key identifies one TLB entry by the pair the buffer is associative over.
type key struct {
	pid  vm.PID
	page int
}

// Entry is one resident mapping. Active false means the owning process has
// gone inactive; such entries are kept (for eventual FIFO eviction or an
// explicit RemoveProcess) but never reported as a hit.
type Entry struct {
	PID            vm.PID
	Page           int
	VirtualAddress uint64
	Frame          frame.ID
	Active         bool
}

// TLB is a bounded associative cache keyed by (pid, page), evicting the
// oldest inserted entry once at capacity. Capacity zero disables the cache:
// every operation on it is a no-op and every lookup misses.
type TLB struct {
	mu       sync.Mutex
	capacity int
	entries  map[key]Entry
	fifo     []key
}

// New creates a TLB that holds at most capacity entries.
func New(capacity int) *TLB {
	return &TLB{
		capacity: capacity,
		entries:  make(map[key]Entry),
		fifo:     make([]key, 0, capacity),
	}
}

// Insert records a mapping. If the TLB is disabled this is a no-op; if full,
// the oldest entry (by insertion order) is evicted first.
func (t *TLB) Insert(pid vm.PID, page int, va uint64, f frame.ID, active bool) {
	if t.capacity == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{pid: pid, page: page}
	if _, exists := t.entries[k]; !exists && len(t.entries) >= t.capacity {
		t.evictFrontLocked()
	}

	if _, exists := t.entries[k]; !exists {
		t.fifo = append(t.fifo, k)
	}
	t.entries[k] = Entry{PID: pid, Page: page, VirtualAddress: va, Frame: f, Active: active}
}

func (t *TLB) evictFrontLocked() {
	if len(t.fifo) == 0 {
		return
	}
	front := t.fifo[0]
	t.fifo = t.fifo[1:]
	delete(t.entries, front)
}

// GetFrame reports a hit only when an entry is present and its owning
// process is active.
func (t *TLB) GetFrame(pid vm.PID, page int) (frame.ID, bool) {
	if t.capacity == 0 {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key{pid: pid, page: page}]
	if !ok || !e.Active {
		return 0, false
	}
	return e.Frame, true
}

// RemoveProcess deletes every entry belonging to pid, preserving the
// relative FIFO order of the survivors.
func (t *TLB) RemoveProcess(pid vm.PID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	survivors := t.fifo[:0:0]
	for _, k := range t.fifo {
		if k.pid == pid {
			delete(t.entries, k)
			continue
		}
		survivors = append(survivors, k)
	}
	t.fifo = survivors
}

// Clear drops every entry.
func (t *TLB) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[key]Entry)
	t.fifo = t.fifo[:0]
}

// Len reports how many entries are currently resident.
func (t *TLB) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
