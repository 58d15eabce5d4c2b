package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/vmemsim/internal/config"
	"github.com/sarchlab/vmemsim/internal/mocks"
	"github.com/sarchlab/vmemsim/mem/vm"
	"github.com/sarchlab/vmemsim/mem/vm/alloc"
)

// gibResolved returns a resolved configuration with 4 GiB of RAM, comfortably
// fitting a couple of 1 GiB test processes at once with room for their table
// frames, at 4 KiB pages / 32-bit addresses / a 4-byte entry size.
func gibResolved(tlbEnabled bool, policy alloc.Policy) config.Resolved {
	totalFrames := 4 * (1 << 18)
	tableFrameLimit := int(0.01 * float64(totalFrames))
	return config.Resolved{
		RAMSizeBytes:     4 << 30,
		PageSizeBytes:    4096,
		TLBSizeBytes:     64,
		TLBEnabled:       tlbEnabled,
		VAWidthBits:      32,
		EntrySizeBytes:   4,
		ROMSizeBytes:     32 << 30,
		SwapPercent:      0,
		SwapSizeBytes:    0,
		AllocationPolicy: policy,
		TotalFrames:      totalFrames,
		TableFrameLimit:  tableFrameLimit,
		DataFrames:       totalFrames - tableFrameLimit,
		EntriesPerTable:  1024,
		SwapFrames:       0,
		TLBCapacity:      16,
	}
}

// buildTable allocates a table directly against a fresh driver's pools,
// bypassing Simulate's process-descriptor bookkeeping, for tests that only
// care about the resulting tree shape and frame placement.
func buildTable(t *testing.T, d *Driver, pid string, numPages int, cfg config.Resolved) *vm.PageTable {
	t.Helper()
	strategy, ok := alloc.For(cfg.AllocationPolicy)
	require.True(t, ok)

	table := vm.New(vm.PID(pid), numPages, cfg.PageSizeBytes, cfg.EntrySizeBytes, cfg.VAWidthBits, cfg.AllocationPolicy, cfg.TableFrameLimit)
	require.NoError(t, table.Allocate(d.dataPool, d.tablePool, d.swapPool, strategy, d.allocCtx, d.rng))
	return table
}

func TestScenario1SingleProcessAllInRAM(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	d := New(cfg, 1, nil)

	// 64 MiB / 4 KiB pages = 16384 pages.
	table := buildTable(t, d, "p1", 16384, cfg)

	assert.Equal(t, 2, table.Levels)
	assert.Equal(t, 16384, table.NumPages)
	for page := 1; page <= table.NumPages; page++ {
		f, err := table.Lookup(page)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, int(f), cfg.TableFrameLimit)
		assert.Less(t, int(f), cfg.TotalFrames)
		_, isSwap := table.SwapClaims[f]
		assert.False(t, isSwap)
	}
}

// levelsFor mirrors the boundary tests' need to inspect the level count
// New() derives, without actually allocating frames for (potentially huge)
// page counts.
func levelsFor(cfg config.Resolved, numPages int) int {
	return vm.New("p1", numPages, cfg.PageSizeBytes, cfg.EntrySizeBytes, cfg.VAWidthBits, cfg.AllocationPolicy, cfg.TableFrameLimit).Levels
}

func TestBoundarySinglePageIsSingleLevel(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	assert.Equal(t, 1, levelsFor(cfg, 1))
}

func TestBoundaryEntriesPerTablePlusOneIsTwoLevels(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	assert.Equal(t, 2, levelsFor(cfg, cfg.EntriesPerTable+1))
}

func TestBoundaryFourLevelsCapped(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	huge := cfg.EntriesPerTable * cfg.EntriesPerTable * cfg.EntriesPerTable
	assert.Equal(t, 4, levelsFor(cfg, huge+1))
}

func TestReconcileFreesFramesAndTLBEntriesOnProcessRemoval(t *testing.T) {
	cfg := gibResolved(true, alloc.FirstFit)
	d := New(cfg, 5, nil)

	descriptors := []config.ProcessDescriptor{{ID: "p1", SizeGB: 1}, {ID: "p2", SizeGB: 1}}
	d.Simulate(descriptors)
	require.Contains(t, d.entries, vm.PID("p1"))

	dataLenBefore := d.dataPool.Len()

	d.Simulate([]config.ProcessDescriptor{{ID: "p2", SizeGB: 1}})

	_, stillThere := d.entries["p1"]
	assert.False(t, stillThere)
	assert.Greater(t, d.dataPool.Len(), dataLenBefore)
}

func TestIsProcessStopReclaimsImmediately(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	d := New(cfg, 6, nil)

	d.Simulate([]config.ProcessDescriptor{{ID: "p1", SizeGB: 1}})
	require.Contains(t, d.entries, vm.PID("p1"))

	d.Simulate([]config.ProcessDescriptor{{ID: "p1", SizeGB: 1, IsProcessStop: true}})
	_, ok := d.entries["p1"]
	assert.False(t, ok)
}

func TestAddressWidthExceededSkipsProcess(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	cfg.VAWidthBits = 16 // va_max = 64 KiB
	cfg.PageSizeBytes = 4096
	d := New(cfg, 7, nil)

	result := d.Simulate([]config.ProcessDescriptor{{ID: "p1", SizeGB: 1}})
	assert.Contains(t, result.SkippedProcesses, vm.PID("p1"))
}

func TestCapacityExceededAbortsWithErrorResult(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	cfg.RAMSizeBytes = 1 << 20
	cfg.SwapSizeBytes = 0
	d := New(cfg, 8, nil)

	result := d.Simulate([]config.ProcessDescriptor{{ID: "p1", SizeGB: 4}})
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, ErrCapacityExceeded.Error(), result.Error)
}

func TestTurningTLBOffDoesNotChangeFaultCountForFixedSeed(t *testing.T) {
	descriptors := []config.ProcessDescriptor{{ID: "p1", SizeGB: 1}}

	on := New(gibResolved(true, alloc.FirstFit), 42, nil)
	off := New(gibResolved(false, alloc.FirstFit), 42, nil)

	resOn := on.Simulate(descriptors)
	resOff := off.Simulate(descriptors)

	assert.Equal(t, resOn.PageFaults.TotalFaults, resOff.PageFaults.TotalFaults)
}

func TestTLBDisabledFreezesSeriesAtZero(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	d := New(cfg, 9, nil)

	result := d.Simulate([]config.ProcessDescriptor{{ID: "p1", SizeGB: 1}})
	assert.Equal(t, 0, result.TLBStats.TotalHits)
	assert.Equal(t, 0, result.TLBStats.TotalMisses)
	for _, v := range result.TimeSeries.TLBHits[vm.PID("p1")] {
		assert.Zero(t, v.Value)
	}
}

// TestAllocationFailureNeverPlacesFrames exercises a mocked Strategy that
// always reports insufficient space, confirming callers relying on the
// Strategy interface never see partial results out of a failed Allocate.
func TestAllocationFailureNeverPlacesFrames(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	strategy := mocks.NewMockStrategy(ctrl)
	strategy.EXPECT().
		Allocate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(alloc.Result{}, alloc.ErrInsufficientSpace).
		AnyTimes()

	result, err := strategy.Allocate(nil, 1, nil, nil, nil)
	assert.ErrorIs(t, err, alloc.ErrInsufficientSpace)
	assert.Empty(t, result.RAMFrames)
	assert.Empty(t, result.SwapFrames)
}

func TestRunWithTimeoutReturnsTimeoutStatusOnExpiry(t *testing.T) {
	cfg := gibResolved(false, alloc.FirstFit)
	d := New(cfg, 10, nil)

	result := d.RunWithTimeout(context.Background(), []config.ProcessDescriptor{{ID: "p1", SizeGB: 1}}, time.Nanosecond)
	assert.Equal(t, "timeout", result.Status)
}
