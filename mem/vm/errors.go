package vm

import "errors"

// Errors surfaced by PageTable operations. Callers are expected to treat
// these as local failures: a failed allocation only takes down the process
// that requested it, never the whole simulation.
var (
	ErrPageOutOfRange       = errors.New("vm: page number out of range")
	ErrPageNotInstalled     = errors.New("vm: page has no installed mapping")
	ErrTableFramesExhausted = errors.New("vm: table-frame pool exhausted")
	ErrFrameExhaustion      = errors.New("vm: both data and swap pools are exhausted")
	ErrAlreadyAllocated     = errors.New("vm: page table already allocated")
	ErrInteriorNotBuilt     = errors.New("vm: interior page table node missing during fault handling")
)
