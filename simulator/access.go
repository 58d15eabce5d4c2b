package simulator

import (
	"github.com/sarchlab/vmemsim/mem/vm"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
	"github.com/sarchlab/vmemsim/record"
)

// runAccessTrace drives the fixed-length, locality-biased access trace
// against every ready process's page table. Within one step, processes are
// visited in the order they were given; within one process the sequence is
// TLB probe, page-table lookup, optional fault handling, TLB install, then
// the time-series record. The hit, miss and fault counters are incremented
// as soon as each outcome is known (a miss before the lookup, a fault before
// its handling), so all of them are current when the step is recorded.
func (d *Driver) runAccessTrace(actives []activeProcess, result *Result) {
	if len(actives) == 0 {
		return
	}

	for step := 0; step < SimulationDuration; step++ {
		framesUsed := d.cfg.TotalFrames - d.dataPool.Len()

		for _, a := range actives {
			pid := vm.PID(a.desc.ID)
			e := d.entries[pid]
			d.stepProcess(step, pid, a.numPages, e)
		}

		result.TimeSeries.RAMUsage = append(result.TimeSeries.RAMUsage, RAMUsageSample{
			Step:       step,
			FramesUsed: framesUsed,
		})
	}
}

// stepProcess resolves (or skips) one process's reference for one step.
func (d *Driver) stepProcess(step int, pid vm.PID, maxPage int, e *procEntry) {
	if d.rng.Float64() < 0.5 {
		d.recordStep(step, e)
		return
	}

	page := d.pickPage(e.lastAccessed, maxPage)
	e.lastAccessed = page

	va := uint64(page) * uint64(d.cfg.PageSizeBytes)
	write := d.rng.Float64() < 0.5

	tlbHit := false
	faulted := false
	var resolvedFrame int64 = -1

	// Whether the TLB is consulted at all: when disabled, the hit/miss/
	// hit-rate series stay frozen at zero and every reference resolves
	// straight through the page table.
	if d.cfg.TLBEnabled {
		if f, hit := d.tlb.GetFrame(pid, page+1); hit {
			tlbHit = true
			e.hits++
			resolvedFrame = int64(f)
		} else {
			e.misses++
			f, ok := d.resolveThroughPageTable(step, e, page, va, &faulted)
			if !ok {
				d.recordStep(step, e)
				return
			}
			resolvedFrame = int64(f)
			d.tlb.Insert(pid, page+1, va, f, true)
		}
	} else {
		f, ok := d.resolveThroughPageTable(step, e, page, va, &faulted)
		if !ok {
			d.recordStep(step, e)
			return
		}
		resolvedFrame = int64(f)
	}

	d.Recorder.Record(record.AccessEvent{
		Step: step, PID: pid, Page: page + 1, VirtualAddress: va, Write: write,
		TLBHit: tlbHit, Faulted: faulted, Frame: resolvedFrame,
	})

	d.recordStep(step, e)
}

// resolveThroughPageTable looks up page (0-based) in e.table, faulting it in
// if necessary, and reports the resident frame. faulted is set to true if a
// fault occurred. The second return value is false if resolution failed
// entirely, in which case the access is dropped for this step.
func (d *Driver) resolveThroughPageTable(_ int, e *procEntry, page int, va uint64, faulted *bool) (frame.ID, bool) {
	pageNo := page + 1

	f, err := e.table.Lookup(pageNo)
	if err != nil {
		if !d.fault(e, pageNo, faulted) {
			return 0, false
		}
		f, err = e.table.Lookup(pageNo)
		if err != nil {
			return 0, false
		}
		return f, true
	}

	if fault, aerr := e.table.Access(va); aerr == nil && fault {
		if !d.fault(e, pageNo, faulted) {
			return 0, false
		}
		f, err = e.table.Lookup(pageNo)
		if err != nil {
			return 0, false
		}
	}

	return f, true
}

func (d *Driver) fault(e *procEntry, pageNo int, faulted *bool) bool {
	*faulted = true
	e.faults++
	ok, err := e.table.HandlePageFault(pageNo, d.dataPool, d.swapPool, d.rng)
	return err == nil && ok
}

// pickPage chooses the next target page: 70% of the time via a
// locality-biased walk around the last accessed page, 30% of the time
// uniformly at random.
func (d *Driver) pickPage(lastAccessed, maxPage int) int {
	if maxPage < 1 {
		return 0
	}

	if d.rng.Float64() < 0.7 {
		delta := d.rng.Intn(7) - 3
		page := lastAccessed + delta
		return clamp(page, 0, maxPage-1)
	}

	return d.rng.Intn(maxPage)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (d *Driver) recordStep(step int, e *procEntry) {
	e.hitSeries = append(e.hitSeries, StepValue{Step: step, Value: float64(e.hits)})
	e.missSeries = append(e.missSeries, StepValue{Step: step, Value: float64(e.misses)})
	e.faultSeries = append(e.faultSeries, StepValue{Step: step, Value: float64(e.faults)})

	rate := 0.0
	if e.hits+e.misses > 0 {
		rate = float64(e.hits) / float64(e.hits+e.misses)
	}
	e.hitRateSeries = append(e.hitRateSeries, StepValue{Step: step, Value: rate})
}
