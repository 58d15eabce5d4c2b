// Package vm implements the per-process hierarchical page table that sits
// between the simulator driver and the physical frame pools.
package vm

import (
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/sarchlab/vmemsim/mem/vm/alloc"
	"github.com/sarchlab/vmemsim/mem/vm/frame"
)

// PID is the stable string identifier a process is known by throughout the
// simulator.
type PID string

// ClaimKind tags what a frame a PageTable owns is being used for, replacing
// the string-label sniffing an ordinary allocator might use.
type ClaimKind int

const (
	// ClaimData marks a data-RAM frame holding one page's contents.
	ClaimData ClaimKind = iota
	// ClaimTable marks a table-RAM frame holding one node (root or interior).
	ClaimTable
	// ClaimSwap marks a swap frame holding one page's contents.
	ClaimSwap
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimData:
		return "data"
	case ClaimTable:
		return "table"
	case ClaimSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// Claim records why a PageTable holds a particular frame: which page it
// backs (for data and swap claims) or which tree level it belongs to (for
// table claims, level 1 being the root).
type Claim struct {
	Kind  ClaimKind
	Level int
	Page  int
}

// PTE is a single leaf entry: the frame a page is resident in, and whether
// that frame lives in RAM or swap. A zero-value PTE is not present.
type PTE struct {
	Frame frame.ID
	Valid bool
	InRAM bool
}

// node is either an interior vector of child pointers or a leaf vector of
// PTEs, never both. Each node owns exactly one table frame.
type node struct {
	leaf bool

	// interior fields
	childFrame []frame.ID
	childValid []bool

	// leaf fields
	entries []PTE
}

// PageTable is the per-process translation structure: 1 to 4 levels chosen
// from the address width and page count, backed by frames drawn from the
// data-RAM, table-RAM, and swap pools.
type PageTable struct {
	ProcessID PID
	NumPages  int
	Policy    alloc.Policy

	// FramePercent is the per-process RAM frame share computed by the
	// driver from the active process count. It mirrors a quantity the
	// original allocator computed but never enforced; kept here purely as
	// exported diagnostic metadata.
	FramePercent float64

	PageSizeBytes  int
	EntrySizeBytes int
	VAWidthBits    int

	// TableFrameLimit is the data pool's low boundary: the fixed frame
	// count set aside for table frames. Contiguous placement floors its
	// search here rather than at whatever count of table frames happens
	// to remain unclaimed, which shrinks as tables are built.
	TableFrameLimit int

	EntriesPerTable int
	BitsPerLevel    uint
	Levels          int

	TopLevelFrame frame.ID
	allocated     bool

	nodes map[frame.ID]*node

	// Entries is the reverse index: page number -> resident frame. It is
	// the authoritative source for Lookup; the tree walk in Access is kept
	// in lockstep with it by construction.
	Entries map[int]frame.ID

	RAMClaims  map[frame.ID]Claim
	SwapClaims map[frame.ID]Claim
}

// New computes entries_per_table, bits_per_level, and levels from the given
// parameters and returns an unallocated PageTable. Call Allocate before use.
func New(pid PID, numPages, pageSizeBytes, entrySizeBytes, vaWidthBits int, policy alloc.Policy, tableFrameLimit int) *PageTable {
	entriesPerTable := pageSizeBytes / entrySizeBytes
	bitsPerLevel := uint(bits.Len(uint(entriesPerTable)) - 1)

	levels := ceilDivLog2(numPages, bitsPerLevel)
	if levels < 1 {
		levels = 1
	}
	if levels > 4 {
		levels = 4
	}

	return &PageTable{
		ProcessID:       pid,
		NumPages:        numPages,
		Policy:          policy,
		PageSizeBytes:   pageSizeBytes,
		EntrySizeBytes:  entrySizeBytes,
		VAWidthBits:     vaWidthBits,
		TableFrameLimit: tableFrameLimit,
		EntriesPerTable: entriesPerTable,
		BitsPerLevel:    bitsPerLevel,
		Levels:          levels,
		nodes:           make(map[frame.ID]*node),
		Entries:         make(map[int]frame.ID),
		RAMClaims:       make(map[frame.ID]Claim),
		SwapClaims:      make(map[frame.ID]Claim),
	}
}

// ceilDivLog2 computes max(1, ceil(log2(numPages) / bitsPerLevel)). The cap
// at four levels is applied by New, not here.
func ceilDivLog2(numPages int, bitsPerLevel uint) int {
	if numPages <= 1 {
		return 1
	}
	log2Pages := bits.Len(uint(numPages - 1))
	levels := (log2Pages + int(bitsPerLevel) - 1) / int(bitsPerLevel)
	if levels < 1 {
		levels = 1
	}
	return levels
}

func (pt *PageTable) newNode(leaf bool) *node {
	if leaf {
		return &node{leaf: true, entries: make([]PTE, pt.leafSize())}
	}
	return &node{
		leaf:       false,
		childFrame: make([]frame.ID, pt.EntriesPerTable),
		childValid: make([]bool, pt.EntriesPerTable),
	}
}

func (pt *PageTable) leafSize() int {
	if pt.Levels == 1 {
		return pt.NumPages
	}
	return pt.EntriesPerTable
}

// decompose returns the per-level indices from root to leaf for a 1-based
// page number, per the index-decomposition rule: p0 = page-1, idx_i =
// (p0 >> ((L-i) * bits_per_level)) & (entries_per_table-1) for i = 1..L. For
// a single-level table the root is the leaf and the index is p0 itself.
func (pt *PageTable) decompose(page int) []int {
	p0 := page - 1
	if pt.Levels == 1 {
		return []int{p0}
	}

	idx := make([]int, pt.Levels)
	mask := pt.EntriesPerTable - 1
	for i := 1; i <= pt.Levels; i++ {
		shift := uint(pt.Levels-i) * pt.BitsPerLevel
		idx[i-1] = (p0 >> shift) & mask
	}
	return idx
}

// Allocate performs the initial allocation: it takes the root table frame,
// asks the configured strategy (or the Contiguous placement mode) for RAM
// and swap frames, and installs every page's leaf PTE, growing interior
// nodes lazily along the way.
func (pt *PageTable) Allocate(
	dataPool, tablePool, swapPool *frame.Pool,
	strategy alloc.Strategy,
	ctx *alloc.Context,
	rng *rand.Rand,
) error {
	if pt.allocated {
		return ErrAlreadyAllocated
	}

	rootFrame, ok := tablePool.TakeRandom(rng)
	if !ok {
		return ErrTableFramesExhausted
	}
	pt.TopLevelFrame = rootFrame
	pt.RAMClaims[rootFrame] = Claim{Kind: ClaimTable, Level: 1}
	pt.nodes[rootFrame] = pt.newNode(pt.Levels == 1)

	var result alloc.Result
	var err error
	if pt.Policy == alloc.Contiguous {
		result, err = alloc.PlaceContiguous(ctx, pt.NumPages, dataPool, swapPool, frame.ID(pt.TableFrameLimit))
	} else {
		result, err = strategy.Allocate(ctx, pt.NumPages, dataPool, swapPool, rng)
	}
	if err != nil {
		return err
	}

	for i, f := range result.RAMFrames {
		page := i + 1
		if err := pt.installLeaf(page, f, true, tablePool, rng); err != nil {
			return err
		}
	}
	for i, f := range result.SwapFrames {
		page := len(result.RAMFrames) + i + 1
		if err := pt.installLeaf(page, f, false, tablePool, rng); err != nil {
			return err
		}
	}

	pt.allocated = true
	return nil
}

// installLeaf walks from the root to the leaf owning page, creating any
// missing interior nodes along the way, and writes the leaf PTE.
func (pt *PageTable) installLeaf(page int, f frame.ID, inRAM bool, tablePool *frame.Pool, rng *rand.Rand) error {
	idx := pt.decompose(page)
	cur := pt.nodes[pt.TopLevelFrame]

	for level := 1; level < pt.Levels; level++ {
		i := idx[level-1]
		if !cur.childValid[i] {
			childFrame, ok := tablePool.TakeRandom(rng)
			if !ok {
				return ErrTableFramesExhausted
			}
			pt.RAMClaims[childFrame] = Claim{Kind: ClaimTable, Level: level + 1}
			isLeafLevel := level+1 == pt.Levels
			pt.nodes[childFrame] = pt.newNode(isLeafLevel)
			cur.childFrame[i] = childFrame
			cur.childValid[i] = true
		}
		cur = pt.nodes[cur.childFrame[i]]
	}

	leafIdx := idx[pt.Levels-1]
	cur.entries[leafIdx] = PTE{Frame: f, Valid: true, InRAM: inRAM}
	pt.Entries[page] = f

	if inRAM {
		pt.RAMClaims[f] = Claim{Kind: ClaimData, Page: page}
	} else {
		pt.SwapClaims[f] = Claim{Kind: ClaimSwap, Page: page}
	}
	return nil
}

// Lookup returns the frame currently holding page, reading the reverse
// index directly; that is the authoritative mapping.
func (pt *PageTable) Lookup(page int) (frame.ID, error) {
	if page < 1 || page > pt.NumPages {
		return 0, ErrPageOutOfRange
	}
	f, ok := pt.Entries[page]
	if !ok {
		return 0, ErrPageNotInstalled
	}
	return f, nil
}

// Access walks the tree for the page containing virtualAddress and reports
// whether the reference faults: true if any interior node on the path is
// invalid, or if the leaf PTE is present but resident in swap.
func (pt *PageTable) Access(virtualAddress uint64) (fault bool, err error) {
	page := int(virtualAddress/uint64(pt.PageSizeBytes)) + 1
	if page < 1 || page > pt.NumPages {
		return false, ErrPageOutOfRange
	}

	idx := pt.decompose(page)
	cur, ok := pt.nodes[pt.TopLevelFrame]
	if !ok {
		return true, nil
	}

	for level := 1; level < pt.Levels; level++ {
		i := idx[level-1]
		if !cur.childValid[i] {
			return true, nil
		}
		cur = pt.nodes[cur.childFrame[i]]
	}

	leaf := cur.entries[idx[pt.Levels-1]]
	if !leaf.Valid {
		return true, nil
	}
	return !leaf.InRAM, nil
}

// leafPTE walks from the root to the leaf owning page and returns its PTE.
// The bool result is false if the interior path is not yet built or the
// leaf slot has never been written.
func (pt *PageTable) leafPTE(page int) (PTE, bool) {
	idx := pt.decompose(page)
	cur, ok := pt.nodes[pt.TopLevelFrame]
	if !ok {
		return PTE{}, false
	}

	for level := 1; level < pt.Levels; level++ {
		i := idx[level-1]
		if !cur.childValid[i] {
			return PTE{}, false
		}
		cur = pt.nodes[cur.childFrame[i]]
	}

	leaf := cur.entries[idx[pt.Levels-1]]
	if !leaf.Valid {
		return PTE{}, false
	}
	return leaf, true
}

// HandlePageFault installs a fresh leaf PTE for page, preferring a RAM
// frame and falling back to swap. The interior path must already exist;
// this routine never grows the tree. If page was previously resident in
// swap, that frame is returned to swapPool once the new frame is in place.
func (pt *PageTable) HandlePageFault(page int, dataPool, swapPool *frame.Pool, rng *rand.Rand) (bool, error) {
	if page < 1 || page > pt.NumPages {
		return false, ErrPageOutOfRange
	}

	staleSwapFrame, wasInSwap := pt.Entries[page]
	if _, ok := pt.SwapClaims[staleSwapFrame]; !ok {
		wasInSwap = false
	}

	var f frame.ID
	var inRAM bool
	switch {
	case dataPool.Len() > 0:
		var ok bool
		f, ok = dataPool.TakeRandom(rng)
		if !ok {
			return false, ErrFrameExhaustion
		}
		inRAM = true
	case swapPool.Len() > 0:
		var ok bool
		f, ok = swapPool.TakeRandom(rng)
		if !ok {
			return false, ErrFrameExhaustion
		}
		inRAM = false
	default:
		return false, ErrFrameExhaustion
	}

	if err := pt.setLeaf(page, f, inRAM); err != nil {
		return false, err
	}

	if wasInSwap {
		delete(pt.SwapClaims, staleSwapFrame)
		swapPool.Return(staleSwapFrame)
	}
	return true, nil
}

// setLeaf writes a leaf PTE without creating any interior node, since fault
// handling never grows the tree.
func (pt *PageTable) setLeaf(page int, f frame.ID, inRAM bool) error {
	idx := pt.decompose(page)
	cur, ok := pt.nodes[pt.TopLevelFrame]
	if !ok {
		return ErrInteriorNotBuilt
	}

	for level := 1; level < pt.Levels; level++ {
		i := idx[level-1]
		if !cur.childValid[i] {
			return ErrInteriorNotBuilt
		}
		cur = pt.nodes[cur.childFrame[i]]
	}

	leafIdx := idx[pt.Levels-1]
	cur.entries[leafIdx] = PTE{Frame: f, Valid: true, InRAM: inRAM}
	pt.Entries[page] = f

	if inRAM {
		pt.RAMClaims[f] = Claim{Kind: ClaimData, Page: page}
	} else {
		pt.SwapClaims[f] = Claim{Kind: ClaimSwap, Page: page}
	}
	return nil
}

// FreeFrames returns every RAM frame this table holds to its originating
// pool, dispatching on the claim kind instead of parsing a label, and
// resets the table to its unallocated state.
func (pt *PageTable) FreeFrames(dataPool, tablePool *frame.Pool) {
	for f, c := range pt.RAMClaims {
		if c.Kind == ClaimTable {
			tablePool.Return(f)
			continue
		}
		dataPool.Return(f)
		delete(pt.Entries, c.Page)
	}

	pt.RAMClaims = make(map[frame.ID]Claim)
	pt.nodes = make(map[frame.ID]*node)
	pt.TopLevelFrame = 0
	pt.allocated = false
}

// FreeSwapFrames returns every swap frame this table holds to swapPool.
func (pt *PageTable) FreeSwapFrames(swapPool *frame.Pool) {
	for f, c := range pt.SwapClaims {
		swapPool.Return(f)
		delete(pt.Entries, c.Page)
	}
	pt.SwapClaims = make(map[frame.ID]Claim)
}

// PageExport is one row of a table export: a page's virtual address, the
// frame it resolves to, and whether that frame is in RAM.
type PageExport struct {
	ProcessID      PID    `json:"process_id"`
	PageNumber     int    `json:"page_number"`
	VirtualAddress string `json:"virtual_address"`
	PhysicalFrame  string `json:"physical_frame"`
	InRAM          bool   `json:"in_ram"`
}

// ExportTable renders every page in [1, NumPages] into a display row, using
// the reverse index for the frame and the leaf PTE for residency. Frame IDs
// are not unique across pools, so residency must come from the leaf PTE
// itself rather than from claim-map membership keyed by a raw frame.ID.
func (pt *PageTable) ExportTable() []PageExport {
	hexDigits := pt.VAWidthBits / 4

	rows := make([]PageExport, 0, pt.NumPages)
	for page := 1; page <= pt.NumPages; page++ {
		va := uint64(page-1) * uint64(pt.PageSizeBytes)

		row := PageExport{
			ProcessID:      pt.ProcessID,
			PageNumber:     page,
			VirtualAddress: fmt.Sprintf("%0*x", hexDigits, va),
		}

		if leaf, ok := pt.leafPTE(page); ok {
			row.InRAM = leaf.InRAM
			prefix := byte('1')
			if leaf.InRAM {
				prefix = '0'
			}
			row.PhysicalFrame = fmt.Sprintf("%cx%x", prefix, leaf.Frame)
		}

		rows = append(rows, row)
	}
	return rows
}

// SizeBytes sums entries_per_table * entry_size over every allocated node
// (num_pages * entry_size for a single-level table).
func (pt *PageTable) SizeBytes() int {
	if pt.Levels == 1 {
		return pt.NumPages * pt.EntrySizeBytes
	}
	return len(pt.nodes) * pt.EntriesPerTable * pt.EntrySizeBytes
}
