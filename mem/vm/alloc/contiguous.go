package alloc

import "github.com/sarchlab/vmemsim/mem/vm/frame"

// PlaceContiguous implements the Contiguous placement mode: a page table
// asks for the next unused span of RAM starting right after the
// highest frame Contiguous placement has used so far (never below floor, which is
// the table pool's upper bound), and only ever accepts that exact span.
// Whatever does not fit spills to a contiguous span of swap starting at 0.
// Unlike the five fits, Contiguous never searches for an alternative
// location: if either leg is not contiguously available it fails outright
// and both pools are left untouched.
func PlaceContiguous(
	ctx *Context,
	numPages int,
	data, swap *frame.Pool,
	floor frame.ID,
) (Result, error) {
	start := floor
	if ctx.Initialized && ctx.LastUsedFrame+1 > start {
		start = ctx.LastUsedFrame + 1
	}

	ram := numPages
	if room := contiguousRoom(data, start); room < ram {
		ram = room
	}

	if ram > 0 && !data.ContiguousAvailable(start, ram) {
		return Result{}, ErrInsufficientSpace
	}

	overflow := numPages - ram
	if overflow > 0 && !swap.ContiguousAvailable(0, overflow) {
		return Result{}, ErrInsufficientSpace
	}

	var ramFrames []frame.ID
	if ram > 0 {
		ramFrames = data.TakeRun(start, ram)
	}

	var swapFrames []frame.ID
	if overflow > 0 {
		swapFrames = swap.TakeRun(0, overflow)
	}

	if ram > 0 {
		ctx.LastUsedFrame = start + frame.ID(ram) - 1
		ctx.Initialized = true
	}

	return Result{RAMFrames: ramFrames, SwapFrames: swapFrames}, nil
}

// contiguousRoom counts how many consecutive frames starting at start are
// present in the pool before the first gap.
func contiguousRoom(pool *frame.Pool, start frame.ID) int {
	n := 0
	for pool.Contains(start + frame.ID(n)) {
		n++
	}
	return n
}
