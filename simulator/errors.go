package simulator

import "errors"

// Failures a simulation run can report. Simulate and RunWithTimeout do not
// return them as error values: the failing run's Result carries the error's
// message in its Error field, with Status set to "error" or "timeout".
var (
	// ErrCapacityExceeded is reported when the active processes' combined
	// size cannot fit within effective RAM plus swap.
	ErrCapacityExceeded = errors.New("simulator: active process sizes exceed effective RAM plus swap")

	// ErrTableFootprintExceeded is reported when the aggregate estimated
	// page-table footprint would not fit within the table-frame budget.
	ErrTableFootprintExceeded = errors.New("simulator: aggregate page-table footprint exceeds the table-frame budget")

	// ErrTimeout is reported when the simulation-execution deadline expires
	// before Simulate finishes.
	ErrTimeout = errors.New("simulator: simulation execution timed out")
)
