package simulator

import "github.com/sarchlab/vmemsim/mem/vm"

// exportResult fills in the summary and time-series sections of result from
// the driver's process entries, and appends one PageTableExport per ready
// process.
func (d *Driver) exportResult(ready []activeProcess, result *Result) {
	var totalHits, totalMisses, totalFaults int

	for _, a := range ready {
		pid := vm.PID(a.desc.ID)
		e, ok := d.entries[pid]
		if !ok {
			continue
		}

		totalHits += e.hits
		totalMisses += e.misses
		totalFaults += e.faults

		hitRate := 0.0
		if e.hits+e.misses > 0 {
			hitRate = float64(e.hits) / float64(e.hits+e.misses)
		}

		result.TLBStats.Hits = append(result.TLBStats.Hits, ProcessValue{PID: pid, Value: float64(e.hits)})
		result.TLBStats.Misses = append(result.TLBStats.Misses, ProcessValue{PID: pid, Value: float64(e.misses)})
		result.TLBStats.HitRate = append(result.TLBStats.HitRate, ProcessValue{PID: pid, Value: hitRate})
		result.PageFaults.PerProcess = append(result.PageFaults.PerProcess, ProcessValue{PID: pid, Value: float64(e.faults)})

		result.TimeSeries.TLBHits[pid] = e.hitSeries
		result.TimeSeries.TLBMisses[pid] = e.missSeries
		result.TimeSeries.TLBHitRate[pid] = e.hitRateSeries
		result.TimeSeries.PageFaults[pid] = e.faultSeries

		result.PageTables = append(result.PageTables, PageTableExport{
			ProcessID:        pid,
			BaseAddress:      int(e.table.TopLevelFrame),
			Table:            e.table.ExportTable(),
			Flag:             e.status.String(),
			LastExecutedPage: e.lastAccessed + 1,
		})
	}

	result.TLBStats.TotalHits = totalHits
	result.TLBStats.TotalMisses = totalMisses
	result.PageFaults.TotalFaults = totalFaults

	if result.Status == "" {
		result.Status = "ok"
	}
}
