package simulator

import "github.com/sarchlab/vmemsim/mem/vm"

// ProcessValue pairs a process ID with one scalar statistic, the shape
// every per-process summary array uses.
type ProcessValue struct {
	PID   vm.PID  `json:"pid"`
	Value float64 `json:"value"`
}

// StepValue pairs a simulation step with one scalar sample, the shape every
// per-process time series uses.
type StepValue struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

// RAMUsageSample records how many frames were in use, out of the data pool,
// at one simulation step.
type RAMUsageSample struct {
	Step       int `json:"step"`
	FramesUsed int `json:"frames_used"`
}

// TLBStats is the TLB summary section of a Result.
type TLBStats struct {
	Hits        []ProcessValue `json:"hits"`
	Misses      []ProcessValue `json:"misses"`
	HitRate     []ProcessValue `json:"hit_rate"`
	TotalHits   int            `json:"total_hits"`
	TotalMisses int            `json:"total_misses"`
}

// PageFaultStats is the page-fault summary section of a Result.
type PageFaultStats struct {
	PerProcess  []ProcessValue `json:"page_faults"`
	TotalFaults int            `json:"total_faults"`
}

// TimeSeries holds the per-step series every active process contributes to,
// plus the single aggregate RAM-usage series.
type TimeSeries struct {
	TLBHits     map[vm.PID][]StepValue `json:"tlb_hits"`
	TLBMisses   map[vm.PID][]StepValue `json:"tlb_misses"`
	TLBHitRate  map[vm.PID][]StepValue `json:"tlb_hit_rate"`
	PageFaults  map[vm.PID][]StepValue `json:"page_faults"`
	RAMUsage    []RAMUsageSample       `json:"ram_usage"`
}

// PageTableExport is one process's exported page table, embedded in the
// result document.
type PageTableExport struct {
	ProcessID        vm.PID          `json:"process_id"`
	BaseAddress      int             `json:"base_address"`
	Table            []vm.PageExport `json:"table"`
	Flag             string          `json:"flag"`
	LastExecutedPage int             `json:"last_executed_page"`
}

// Result is the structured record a simulation run produces.
type Result struct {
	TLBStats   TLBStats          `json:"tlb_stats"`
	PageFaults PageFaultStats    `json:"page_faults"`
	TimeSeries TimeSeries        `json:"time_series"`
	PageTables []PageTableExport `json:"page_tables"`

	SkippedProcesses map[vm.PID]string `json:"skipped_processes,omitempty"`

	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newTimeSeries() TimeSeries {
	return TimeSeries{
		TLBHits:    make(map[vm.PID][]StepValue),
		TLBMisses:  make(map[vm.PID][]StepValue),
		TLBHitRate: make(map[vm.PID][]StepValue),
		PageFaults: make(map[vm.PID][]StepValue),
	}
}
