package alloc

import (
	"math/rand"

	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

type firstFit struct{}

func (firstFit) Allocate(
	ctx *Context,
	numPages int,
	data, swap *frame.Pool,
	rng *rand.Rand,
) (Result, error) {
	ram, swapNeed := ramSwapSplit(numPages, data)

	run, ok := firstRunAtLeast(data.Runs(), ram)
	if ram > 0 && !ok {
		return Result{}, ErrInsufficientSpace
	}

	return commitRun(swap, run, ram, swapNeed, data)
}

type nextFit struct{}

func (nextFit) Allocate(
	ctx *Context,
	numPages int,
	data, swap *frame.Pool,
	rng *rand.Rand,
) (Result, error) {
	ram, swapNeed := ramSwapSplit(numPages, data)

	runs := data.Runs()
	run, ok := firstRunAtOrAfter(runs, ram, ctx.LastSearchFrame)
	if !ok && ram > 0 {
		run, ok = firstRunAtLeast(runs, ram)
	}
	if ram > 0 && !ok {
		return Result{}, ErrInsufficientSpace
	}

	result, err := commitRun(swap, run, ram, swapNeed, data)
	if err != nil {
		return Result{}, err
	}

	if ram > 0 {
		ctx.LastSearchFrame = run.Start + frame.ID(ram)
		ctx.Initialized = true
	}

	return result, nil
}

func firstRunAtOrAfter(runs []frame.Run, n int, cursor frame.ID) (frame.Run, bool) {
	for _, r := range runs {
		if r.Start >= cursor && r.Length >= n {
			return r, true
		}
	}
	return frame.Run{}, false
}

type bestFit struct{}

func (bestFit) Allocate(
	ctx *Context,
	numPages int,
	data, swap *frame.Pool,
	rng *rand.Rand,
) (Result, error) {
	ram, swapNeed := ramSwapSplit(numPages, data)

	run, ok := extremeRun(data.Runs(), ram, true)
	if ram > 0 && !ok {
		return Result{}, ErrInsufficientSpace
	}

	return commitRun(swap, run, ram, swapNeed, data)
}

type worstFit struct{}

func (worstFit) Allocate(
	ctx *Context,
	numPages int,
	data, swap *frame.Pool,
	rng *rand.Rand,
) (Result, error) {
	ram, swapNeed := ramSwapSplit(numPages, data)

	run, ok := extremeRun(data.Runs(), ram, false)
	if ram > 0 && !ok {
		return Result{}, ErrInsufficientSpace
	}

	return commitRun(swap, run, ram, swapNeed, data)
}

// extremeRun scans every run with Length >= n and returns the smallest
// (wantSmallest=true, Best Fit) or the largest (wantSmallest=false, Worst
// Fit) one, breaking ties by the lowest start frame.
func extremeRun(runs []frame.Run, n int, wantSmallest bool) (frame.Run, bool) {
	var best frame.Run
	found := false

	for _, r := range runs {
		if r.Length < n {
			continue
		}
		if !found {
			best = r
			found = true
			continue
		}
		if wantSmallest && r.Length < best.Length {
			best = r
		} else if !wantSmallest && r.Length > best.Length {
			best = r
		} else if r.Length == best.Length && r.Start < best.Start {
			best = r
		}
	}

	return best, found
}

// commitRun takes the leading n=ram frames of run from the data pool and the
// lowest swapNeed frames from swap, leaving both pools unchanged if either
// leg cannot be satisfied.
func commitRun(
	swap *frame.Pool,
	run frame.Run,
	ram, swapNeed int,
	data *frame.Pool,
) (Result, error) {
	swapFrames, ok := takeSwapTail(swap, swapNeed)
	if !ok {
		return Result{}, ErrInsufficientSpace
	}

	var ramFrames []frame.ID
	if ram > 0 {
		ramFrames = data.TakeRun(run.Start, ram)
	}

	return Result{RAMFrames: ramFrames, SwapFrames: swapFrames}, nil
}
