// Package alloc implements the physical RAM allocation strategies that a
// page table uses to pick data frames for a fresh allocation request.
package alloc

import (
	"errors"
	"math/rand"

	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

// Policy names one of the selectable allocation strategies.
type Policy string

// The recognized allocation policies. Contiguous is a placement mode
// distinct from the five fits; it is handled by the page table directly
// rather than through the Strategy interface (see mem/vm.PageTable.Allocate).
const (
	FirstFit   Policy = "First Fit"
	NextFit    Policy = "Next Fit"
	BestFit    Policy = "Best Fit"
	WorstFit   Policy = "Worst Fit"
	QuickFit   Policy = "Quick Fit"
	Contiguous Policy = "Contiguous"
)

// ErrInsufficientSpace is returned when a policy cannot place the requested
// number of pages, either because no run of RAM is long enough or because
// swap does not have enough remaining frames to absorb the overflow.
var ErrInsufficientSpace = errors.New("alloc: insufficient space for request")

// Result is the outcome of a successful allocation: the RAM frames chosen
// for the leading pages, and the swap frames chosen for the rest.
type Result struct {
	RAMFrames  []frame.ID
	SwapFrames []frame.ID
}

// Context carries the allocation state that is global to the simulator
// rather than to any one page table: Next Fit's cursor and Contiguous
// placement's high-water mark. It is owned by the driver and reset by
// driver.Reset.
type Context struct {
	// LastSearchFrame is Next Fit's cursor: the frame immediately after the
	// end of the most recently satisfied Next Fit request.
	LastSearchFrame frame.ID

	// LastUsedFrame is the highest RAM frame number installed by the
	// Contiguous placement mode so far.
	LastUsedFrame frame.ID

	// Initialized distinguishes a Context that has never allocated (so
	// LastSearchFrame/LastUsedFrame have no meaning yet) from one that has.
	Initialized bool
}

// Reset returns the context to its just-constructed state.
func (c *Context) Reset() {
	*c = Context{}
}

// Strategy selects RAM frames for a request of numPages pages from the data
// pool, and any remaining pages from the swap pool. Implementations must
// leave both pools unchanged when they return an error.
type Strategy interface {
	Allocate(
		ctx *Context,
		numPages int,
		data, swap *frame.Pool,
		rng *rand.Rand,
	) (Result, error)
}

// For selects the Strategy implementation for a policy. Contiguous is not a
// Strategy; callers needing it should use the PlaceContiguous function directly.
func For(p Policy) (Strategy, bool) {
	switch p {
	case FirstFit:
		return firstFit{}, true
	case NextFit:
		return nextFit{}, true
	case BestFit:
		return bestFit{}, true
	case WorstFit:
		return worstFit{}, true
	case QuickFit:
		return quickFit{}, true
	default:
		return nil, false
	}
}

// ramSwapSplit computes how many of numPages land in RAM versus swap,
// independent of whether a suitable contiguous run exists.
func ramSwapSplit(numPages int, data *frame.Pool) (ram, swap int) {
	ram = numPages
	if data.Len() < ram {
		ram = data.Len()
	}
	return ram, numPages - ram
}

// takeSwapTail removes the lowest n available swap frames, in ascending
// order. It is shared by every policy since swap placement never depends on
// the RAM policy chosen.
func takeSwapTail(swapPool *frame.Pool, n int) ([]frame.ID, bool) {
	return swapPool.LowestN(n)
}

// firstRunAtLeast returns the first run (in ascending Start order) whose
// Length is >= n.
func firstRunAtLeast(runs []frame.Run, n int) (frame.Run, bool) {
	for _, r := range runs {
		if r.Length >= n {
			return r, true
		}
	}
	return frame.Run{}, false
}
