package vm_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/vmemsim/mem/vm"
	"github.com/sarchlab/vmemsim/mem/vm/alloc"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

func newPools() (data, table, swap *frame.Pool) {
	return frame.NewRange("data", 4, 256),
		frame.NewRange("table", 0, 4),
		frame.NewRange("swap", 0, 16)
}

func TestSingleLevelAllocateAndLookup(t *testing.T) {
	data, table, swap := newPools()
	pt := vm.New("p1", 8, 4096, 4, 32, alloc.FirstFit, 4)
	assert.Equal(t, 1, pt.Levels)

	strategy, _ := alloc.For(alloc.FirstFit)
	rng := rand.New(rand.NewSource(1))
	err := pt.Allocate(data, table, swap, strategy, &alloc.Context{}, rng)
	require.NoError(t, err)

	_, err = pt.Lookup(1)
	require.NoError(t, err)
	assert.False(t, table.Contains(pt.TopLevelFrame))

	fault, err := pt.Access(0)
	require.NoError(t, err)
	assert.False(t, fault)
}

func TestMultiLevelAllocateWalksTree(t *testing.T) {
	// 4-byte entries, 4096-byte pages -> 1024 entries/table, 10 bits/level.
	// 2000 pages needs ceil(log2(1999)/10) = 2 levels. Size the data pool to
	// cover every page so the run never spills into swap.
	data := frame.NewRange("data", 8, 2200)
	table := frame.NewRange("table", 0, 8)
	swap := frame.NewRange("swap", 0, 4)

	pt := vm.New("p1", 2000, 4096, 4, 32, alloc.FirstFit, 8)
	assert.Equal(t, 2, pt.Levels)

	strategy, _ := alloc.For(alloc.FirstFit)
	rng := rand.New(rand.NewSource(2))
	err := pt.Allocate(data, table, swap, strategy, &alloc.Context{}, rng)
	require.NoError(t, err)

	frameOne, err := pt.Lookup(1)
	require.NoError(t, err)

	fault, err := pt.Access(0)
	require.NoError(t, err)
	assert.False(t, fault)

	frameTwo, err := pt.Lookup(2000)
	require.NoError(t, err)
	assert.NotEqual(t, frameOne, frameTwo)
}

func TestAccessFaultsOnUninstalledPage(t *testing.T) {
	pt := vm.New("p1", 4, 4096, 4, 32, alloc.FirstFit, 0)
	fault, err := pt.Access(0)
	require.NoError(t, err)
	assert.True(t, fault)
}

func TestAccessFaultsOnSwapResidentPage(t *testing.T) {
	data := frame.New("data", nil)
	table := frame.NewRange("table", 0, 2)
	swap := frame.NewRange("swap", 0, 4)

	pt := vm.New("p1", 2, 4096, 4, 32, alloc.FirstFit, 2)
	strategy, _ := alloc.For(alloc.FirstFit)
	err := pt.Allocate(data, table, swap, strategy, &alloc.Context{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	fault, err := pt.Access(0)
	require.NoError(t, err)
	assert.True(t, fault)
}

func TestHandlePageFaultInstallsLeaf(t *testing.T) {
	data := frame.New("data", nil)
	table := frame.NewRange("table", 0, 2)
	swap := frame.NewRange("swap", 0, 4)

	pt := vm.New("p1", 1, 4096, 4, 32, alloc.FirstFit, 2)
	strategy, _ := alloc.For(alloc.FirstFit)
	err := pt.Allocate(data, table, swap, strategy, &alloc.Context{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	data.Return(99)
	ok, err := pt.HandlePageFault(1, data, swap, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.True(t, ok)

	fault, err := pt.Access(0)
	require.NoError(t, err)
	assert.False(t, fault)
}

func TestFreeFramesReturnsToOriginatingPools(t *testing.T) {
	data, table, swap := newPools()
	dataLen, tableLen := data.Len(), table.Len()

	pt := vm.New("p1", 8, 4096, 4, 32, alloc.FirstFit, 4)
	strategy, _ := alloc.For(alloc.FirstFit)
	err := pt.Allocate(data, table, swap, strategy, &alloc.Context{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	pt.FreeFrames(data, table)
	assert.Equal(t, dataLen, data.Len())
	assert.Equal(t, tableLen, table.Len())

	_, err = pt.Lookup(1)
	assert.Error(t, err)
}

func TestExportTableFormatsFrames(t *testing.T) {
	data := frame.New("data", []frame.ID{4})
	table := frame.NewRange("table", 0, 2)
	swap := frame.NewRange("swap", 0, 4)

	pt := vm.New("p1", 2, 4096, 4, 16, alloc.FirstFit, 2)
	strategy, _ := alloc.For(alloc.FirstFit)
	err := pt.Allocate(data, table, swap, strategy, &alloc.Context{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	rows := pt.ExportTable()
	require.Len(t, rows, 2)
	assert.Equal(t, "0000", rows[0].VirtualAddress)
	assert.True(t, rows[0].InRAM)
	assert.Equal(t, "0x4", rows[0].PhysicalFrame)
	assert.False(t, rows[1].InRAM)
	assert.Equal(t, byte('1'), rows[1].PhysicalFrame[0])
}

func TestContiguousAllocatePlacesPagesInRAM(t *testing.T) {
	// Table pool covers [0, 4): frame 4 is the data pool's low boundary.
	// Multi-level tables burn more than one table frame on interior nodes,
	// so TableFrameLimit must be handed to PlaceContiguous as a fixed
	// constant rather than read back from the table pool's shrinking size.
	data := frame.NewRange("data", 4, 2204)
	table := frame.NewRange("table", 0, 4)
	swap := frame.NewRange("swap", 0, 16)

	pt := vm.New("p1", 2000, 4096, 4, 32, alloc.Contiguous, 4)
	require.Equal(t, 2, pt.Levels)

	err := pt.Allocate(data, table, swap, nil, &alloc.Context{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	f, err := pt.Lookup(1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, int(f), 4)
	assert.False(t, table.Contains(f))

	rows := pt.ExportTable()
	assert.True(t, rows[0].InRAM)
}

func TestSizeBytesSingleLevel(t *testing.T) {
	pt := vm.New("p1", 10, 4096, 4, 32, alloc.FirstFit, 0)
	assert.Equal(t, 40, pt.SizeBytes())
}
