package alloc

import (
	"math/rand"

	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

// quickFitClasses are the predefined Quick Fit size classes, smallest first.
var quickFitClasses = []int{1, 4, 16}

type quickFit struct{}

func (quickFit) Allocate(
	ctx *Context,
	numPages int,
	data, swap *frame.Pool,
	rng *rand.Rand,
) (Result, error) {
	ram, swapNeed := ramSwapSplit(numPages, data)

	run, ok := quickFitRun(data.Runs(), ram)
	if ram > 0 && !ok {
		return Result{}, ErrInsufficientSpace
	}

	return commitRun(swap, run, ram, swapNeed, data)
}

// quickFitRun builds, for each Quick Fit size class, the list of runs
// qualifying for that class (every run whose length is at least the class
// size), then picks the first (lowest-start) run in the smallest class that
// is both >= n and has a non-empty list.
func quickFitRun(runs []frame.Run, n int) (frame.Run, bool) {
	for _, class := range quickFitClasses {
		if class < n {
			continue
		}

		classList := runsAtLeast(runs, class)
		if len(classList) == 0 {
			continue
		}

		return classList[0], true
	}

	return frame.Run{}, false
}

func runsAtLeast(runs []frame.Run, class int) []frame.Run {
	list := make([]frame.Run, 0)
	for _, r := range runs {
		if r.Length >= class {
			list = append(list, r)
		}
	}
	return list
}
