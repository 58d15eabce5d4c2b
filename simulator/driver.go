// Package simulator ties the frame pools, allocation strategies, page
// tables, and TLB together into the synchronous simulation loop: it builds
// one page table per active process, drives a locality-biased access trace
// against them, and reports the resulting counters and time series.
package simulator

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/sarchlab/vmemsim/internal/config"
	"github.com/sarchlab/vmemsim/mem/vm"
	"github.com/sarchlab/vmemsim/mem/vm/alloc"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
	"github.com/sarchlab/vmemsim/mem/vm/tlb"
	"github.com/sarchlab/vmemsim/record"
)

// SimulationDuration is the fixed number of access-trace steps every run
// executes.
const SimulationDuration = 100

// DefaultDeadline is the default simulation-execution and
// configuration-wait timeout.
const DefaultDeadline = 60 * time.Second

const bytesPerGB = 1024 * 1024 * 1024

// status is the lifecycle state of one process's entry in the driver.
type status int

const (
	statusActive status = iota
	statusInactive
	statusDeleted
)

func (s status) String() string {
	switch s {
	case statusActive:
		return "active"
	case statusInactive:
		return "inactive"
	default:
		return "deleted"
	}
}

// activeProcess is one process this Simulate call will build a table for
// (or already has one for) and run the access trace against.
type activeProcess struct {
	desc     config.ProcessDescriptor
	numPages int
}

type procEntry struct {
	table            *vm.PageTable
	status           status
	lastAccessed     int
	hits, misses     int
	faults           int
	hitSeries        []StepValue
	missSeries       []StepValue
	hitRateSeries    []StepValue
	faultSeries      []StepValue
}

// Driver owns the frame pools, the per-process page tables, and the TLB. A
// Driver is built once and can service multiple Simulate calls; each call
// reconciles its live process set against the last one.
type Driver struct {
	cfg config.Resolved

	dataPool  *frame.Pool
	tablePool *frame.Pool
	swapPool  *frame.Pool

	tlb      *tlb.TLB
	allocCtx *alloc.Context
	rng      *rand.Rand

	entries map[vm.PID]*procEntry

	Recorder record.AccessRecorder

	logger *log.Logger
}

// New builds a Driver from a resolved environment configuration and a fixed
// RNG seed. Every random draw the driver makes, in allocation and in the
// access trace, comes from the same seeded source.
func New(cfg config.Resolved, seed int64, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}

	d := &Driver{
		cfg:      cfg,
		allocCtx: &alloc.Context{},
		rng:      rand.New(rand.NewSource(seed)),
		entries:  make(map[vm.PID]*procEntry),
		Recorder: record.NopRecorder{},
		logger:   logger,
	}
	d.refillPools()
	d.tlb = tlb.New(tlbCapacity(cfg))
	return d
}

func tlbCapacity(cfg config.Resolved) int {
	if !cfg.TLBEnabled {
		return 0
	}
	return cfg.TLBCapacity
}

func (d *Driver) refillPools() {
	d.dataPool = frame.NewRange("data", frame.ID(d.cfg.TableFrameLimit), frame.ID(d.cfg.TotalFrames))
	d.tablePool = frame.NewRange("table", 0, frame.ID(d.cfg.TableFrameLimit))
	d.swapPool = frame.NewRange("swap", 0, frame.ID(d.cfg.SwapFrames))
}

// Reset drops every process entry, refills the frame pools to their
// canonical initial contents, clears the TLB, and resets the allocation
// context (Next Fit's cursor and Contiguous placement's high-water mark).
func (d *Driver) Reset() {
	d.entries = make(map[vm.PID]*procEntry)
	d.refillPools()
	d.tlb.Clear()
	d.allocCtx.Reset()
}

// Simulate runs one full simulation cycle against the given process
// descriptors: it reconciles the driver's live process set, validates and
// bootstraps every active process's page table, drives the fixed-length
// access trace, and returns the resulting Result.
func (d *Driver) Simulate(descriptors []config.ProcessDescriptor) *Result {
	result := &Result{TimeSeries: newTimeSeries(), SkippedProcesses: make(map[vm.PID]string)}

	d.tlb.Clear()
	for _, e := range d.entries {
		e.hits, e.misses, e.faults = 0, 0, 0
		e.hitSeries, e.missSeries, e.hitRateSeries, e.faultSeries = nil, nil, nil, nil
	}

	present := make(map[vm.PID]bool, len(descriptors))
	for _, desc := range descriptors {
		present[vm.PID(desc.ID)] = true
	}
	for pid, e := range d.entries {
		if !present[pid] {
			d.reclaim(pid, e)
		}
	}

	vaMax := uint64(1)<<uint(d.cfg.VAWidthBits) - 1

	var actives []activeProcess

	for _, desc := range descriptors {
		pid := vm.PID(desc.ID)

		if desc.IsProcessStop {
			if e, ok := d.entries[pid]; ok {
				d.reclaim(pid, e)
			}
			continue
		}

		numPages := int(math.Ceil(float64(desc.SizeGB) * bytesPerGB / float64(d.cfg.PageSizeBytes)))
		if numPages < 1 {
			numPages = 1
		}
		lastVA := uint64(numPages-1) * uint64(d.cfg.PageSizeBytes)
		if lastVA > vaMax {
			reason := "last virtual page exceeds the configured virtual address width"
			d.logger.Printf("simulator: skipping process %s: %s", pid, reason)
			result.SkippedProcesses[pid] = reason
			if e, ok := d.entries[pid]; ok {
				e.status = statusInactive
			}
			continue
		}

		actives = append(actives, activeProcess{desc: desc, numPages: numPages})
	}

	var totalActiveBytes int64
	for _, a := range actives {
		totalActiveBytes += int64(a.desc.SizeGB) * bytesPerGB
	}
	effectiveRAM := int64(float64(d.cfg.RAMSizeBytes) * 0.99)
	if totalActiveBytes > effectiveRAM+d.cfg.SwapSizeBytes {
		result.Status = "error"
		result.Error = ErrCapacityExceeded.Error()
		return result
	}

	if d.dataPool.Len() == 0 && d.tablePool.Len() == 0 && d.swapPool.Len() == 0 {
		d.refillPools()
	}

	footprint := 0
	for _, a := range actives {
		footprint += estimateFootprintBytes(a.numPages, d.cfg.EntriesPerTable, d.cfg.EntrySizeBytes)
	}
	if footprint > int(float64(d.cfg.RAMSizeBytes)/100) {
		result.Status = "error"
		result.Error = ErrTableFootprintExceeded.Error()
		return result
	}

	framePercent := 100.0/float64(len(actives)) - 2
	if len(actives) == 0 || framePercent < 1 {
		framePercent = 1
	}

	strategy, _ := alloc.For(d.cfg.AllocationPolicy)

	ready := make([]activeProcess, 0, len(actives))
	for _, a := range actives {
		pid := vm.PID(a.desc.ID)
		e, exists := d.entries[pid]
		if !exists {
			table := vm.New(pid, a.numPages, d.cfg.PageSizeBytes, d.cfg.EntrySizeBytes, d.cfg.VAWidthBits, d.cfg.AllocationPolicy, d.cfg.TableFrameLimit)
			table.FramePercent = framePercent

			if err := table.Allocate(d.dataPool, d.tablePool, d.swapPool, strategy, d.allocCtx, d.rng); err != nil {
				d.logger.Printf("simulator: skipping process %s: %v", pid, err)
				result.SkippedProcesses[pid] = err.Error()
				continue
			}

			e = &procEntry{table: table}
			d.entries[pid] = e
		}
		e.status = statusActive
		ready = append(ready, a)
	}

	d.runAccessTrace(ready, result)
	d.exportResult(ready, result)

	return result
}

func (d *Driver) reclaim(pid vm.PID, e *procEntry) {
	e.table.FreeFrames(d.dataPool, d.tablePool)
	e.table.FreeSwapFrames(d.swapPool)
	d.tlb.RemoveProcess(pid)
	e.status = statusDeleted
	delete(d.entries, pid)
}

// RunWithTimeout runs Simulate on a worker goroutine and enforces the
// simulation-execution deadline. On expiry it returns a timeout result
// without waiting for the worker; the worker's later effects on driver
// state are not surfaced to the caller, matching the single-threaded,
// cooperative execution model everywhere else in the driver.
func (d *Driver) RunWithTimeout(ctx context.Context, descriptors []config.ProcessDescriptor, deadline time.Duration) *Result {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	done := make(chan *Result, 1)
	go func() {
		done <- d.Simulate(descriptors)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return &Result{Status: "timeout", Error: ErrTimeout.Error(), TimeSeries: newTimeSeries()}
	}
}

// estimateFootprintBytes estimates the size in bytes of the tree a page
// table with numPages pages would build, without actually building it:
// leaf nodes cover entriesPerTable pages each, and every level above that
// divides the node count by entriesPerTable (rounding up) until a single
// root remains.
func estimateFootprintBytes(numPages, entriesPerTable, entrySizeBytes int) int {
	if entriesPerTable <= 1 {
		return numPages * entrySizeBytes
	}

	nodeCount := 0
	levelNodes := ceilDiv(numPages, entriesPerTable)
	for {
		nodeCount += levelNodes
		if levelNodes <= 1 {
			break
		}
		levelNodes = ceilDiv(levelNodes, entriesPerTable)
	}

	return nodeCount * entriesPerTable * entrySizeBytes
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
