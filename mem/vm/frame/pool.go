// Package frame defines the physical frame pools that back a page table's
// data and table allocations, plus the simulated swap backing store.
package frame

import (
	"math/rand"
	"sort"
	"sync"
)

// ID identifies a physical frame within one pool. Frame numbers are only
// unique within the pool that owns them: the RAM data pool and the RAM
// table-metadata pool cover disjoint ranges, but swap numbering starts again
// at 0 and overlaps them.
type ID int

// Run is a maximal range of consecutive frame numbers that are all present
// in a pool.
type Run struct {
	Start  ID
	Length int
}

// Pool is an ordered set of frame numbers. Callers use TakeRandom for
// uninformed removal (e.g. swap victim selection) and TakeSpecific when a
// particular frame has already been chosen by an allocation strategy.
type Pool struct {
	mu     sync.Mutex
	Label  string
	frames map[ID]struct{}
}

// New creates a Pool seeded with the given frame numbers.
func New(label string, ids []ID) *Pool {
	p := &Pool{
		Label:  label,
		frames: make(map[ID]struct{}, len(ids)),
	}
	for _, id := range ids {
		p.frames[id] = struct{}{}
	}
	return p
}

// NewRange creates a Pool holding [start, end).
func NewRange(label string, start, end ID) *Pool {
	if end < start {
		end = start
	}
	ids := make([]ID, 0, int(end-start))
	for i := start; i < end; i++ {
		ids = append(ids, i)
	}
	return New(label, ids)
}

// Len returns the number of frames currently available in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.frames)
}

// Contains reports whether f is currently available in the pool.
func (p *Pool) Contains(f ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.frames[f]
	return ok
}

// TakeRandom removes and returns a uniformly chosen frame from the pool.
func (p *Pool) TakeRandom(rng *rand.Rand) (ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.frames) == 0 {
		return 0, false
	}

	view := p.sortedViewLocked()
	f := view[rng.Intn(len(view))]
	delete(p.frames, f)

	return f, true
}

// TakeSpecific removes f from the pool if present.
func (p *Pool) TakeSpecific(f ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.frames[f]; !ok {
		return false
	}

	delete(p.frames, f)
	return true
}

// Return reinserts f into the pool.
func (p *Pool) Return(f ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames[f] = struct{}{}
}

// SortedView returns the pool's members in ascending order. The returned
// slice is a copy and safe to keep after further pool mutation.
func (p *Pool) SortedView() []ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sortedViewLocked()
}

func (p *Pool) sortedViewLocked() []ID {
	view := make([]ID, 0, len(p.frames))
	for f := range p.frames {
		view = append(view, f)
	}
	sort.Slice(view, func(i, j int) bool { return view[i] < view[j] })
	return view
}

// Runs returns every maximal contiguous range currently present in the pool,
// in ascending order of Start.
func (p *Pool) Runs() []Run {
	view := p.SortedView()
	if len(view) == 0 {
		return nil
	}

	runs := make([]Run, 0)
	runStart := view[0]
	runLen := 1
	for i := 1; i < len(view); i++ {
		if view[i] == view[i-1]+1 {
			runLen++
			continue
		}
		runs = append(runs, Run{Start: runStart, Length: runLen})
		runStart = view[i]
		runLen = 1
	}
	runs = append(runs, Run{Start: runStart, Length: runLen})

	return runs
}

// LowestN returns the lowest-numbered n available frames, in ascending
// order, and removes them from the pool. It fails if fewer than n frames are
// available; on failure the pool is left unchanged.
func (p *Pool) LowestN(n int) ([]ID, bool) {
	if n == 0 {
		return nil, true
	}

	view := p.SortedView()
	if len(view) < n {
		return nil, false
	}

	taken := make([]ID, n)
	p.mu.Lock()
	for i := 0; i < n; i++ {
		taken[i] = view[i]
		delete(p.frames, view[i])
	}
	p.mu.Unlock()

	return taken, true
}

// TakeRun removes the first n frames of the run starting at start. The
// caller must have already confirmed the run covers at least n frames.
func (p *Pool) TakeRun(start ID, n int) []ID {
	taken := make([]ID, 0, n)
	p.mu.Lock()
	for i := 0; i < n; i++ {
		f := start + ID(i)
		if _, ok := p.frames[f]; ok {
			delete(p.frames, f)
			taken = append(taken, f)
		}
	}
	p.mu.Unlock()

	return taken
}

// ContiguousAvailable reports whether every frame in [start, start+n) is
// currently present in the pool.
func (p *Pool) ContiguousAvailable(start ID, n int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < n; i++ {
		if _, ok := p.frames[start+ID(i)]; !ok {
			return false
		}
	}
	return true
}
