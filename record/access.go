// Package record persists what happened during a simulation run: the raw
// access trace, for later inspection, and the final result document.
package record

import "github.com/sarchlab/vmemsim/mem/vm"

// AccessEvent is one resolved reference from the access trace: a process
// touched a page at a given step and the reference either hit the TLB, hit
// the page table, or faulted to swap.
type AccessEvent struct {
	Step           int
	PID            vm.PID
	Page           int
	VirtualAddress uint64
	Write          bool
	TLBHit         bool
	Faulted        bool
	Frame          int64
}

// AccessRecorder receives one event per resolved reference. Init/Flush/Close
// bracket a simulation run; a recorder that buffers must make everything
// durable by the time Close returns.
type AccessRecorder interface {
	Init() error
	Record(AccessEvent)
	Flush() error
	Close() error
}

// NopRecorder discards every event. It is the default when no backend is
// configured.
type NopRecorder struct{}

func (NopRecorder) Init() error         { return nil }
func (NopRecorder) Record(AccessEvent)  {}
func (NopRecorder) Flush() error        { return nil }
func (NopRecorder) Close() error        { return nil }
