// Package config loads the two JSON documents an external caller supplies
// to the simulator (the environment descriptor and the process list) and
// resolves them into the derived quantities the driver needs.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sarchlab/vmemsim/mem/vm/alloc"
)

// Environment is the recognized subset of the environment descriptor.
// Unknown fields are ignored by json.Unmarshal; missing recognized fields
// are caught by Resolve.
type Environment struct {
	RAMSizeGB          json.Number `json:"ram_size_gb"`
	PageSizeKB         json.Number `json:"page_size_kb"`
	TLBSize            json.Number `json:"tlb_size"`
	TLBEnabled         *bool       `json:"tlb_enabled"`
	VirtualAddressSize string      `json:"virtual_address_size"`
	ROMSize            string      `json:"rom_size"`
	SwapPercent        *float64    `json:"swap_percent"`
	AllocationType     string      `json:"allocation_type"`
}

// ProcessDescriptor is one entry of the process descriptor list.
type ProcessDescriptor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SizeGB         int    `json:"size_gb"`
	Type           string `json:"type"`
	HasPriority    bool   `json:"has_priority"`
	IsProcessStop  bool   `json:"is_process_stop"`
	VirtualAddress string `json:"virtual_address"`
}

// Resolved holds every derived quantity computed from an Environment, in
// the units the rest of the simulator operates in.
type Resolved struct {
	RAMSizeBytes     int64
	PageSizeBytes    int
	TLBSizeBytes     int64
	TLBEnabled       bool
	VAWidthBits      int
	EntrySizeBytes   int
	ROMSizeBytes     int64
	SwapPercent      float64
	SwapSizeBytes    int64
	AllocationPolicy alloc.Policy
	TotalFrames      int
	TableFrameLimit  int
	DataFrames       int
	EntriesPerTable  int
	SwapFrames       int
	TLBCapacity      int
}

const bytesPerGB = 1024 * 1024 * 1024
const bytesPerKB = 1024

// LoadEnvironmentFile reads and parses an environment descriptor from path.
func LoadEnvironmentFile(path string) (Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Environment{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return ParseEnvironment(data)
}

// ParseEnvironment decodes an environment descriptor from raw JSON.
func ParseEnvironment(data []byte) (Environment, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var env Environment
	if err := dec.Decode(&env); err != nil {
		return Environment{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	return env, nil
}

// LoadProcessesFile reads and parses a process descriptor list from path.
func LoadProcessesFile(path string) ([]ProcessDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var list []ProcessDescriptor
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("config: parsing processes: %w", err)
	}
	return list, nil
}

// Resolve validates the environment descriptor and computes every derived
// quantity in §3's Derived quantities.
func (env Environment) Resolve() (Resolved, error) {
	ramGB, err := env.RAMSizeGB.Int64()
	if err != nil || env.RAMSizeGB == "" {
		return Resolved{}, fmt.Errorf("config: ram_size_gb is required and must be an integer")
	}
	pageKB, err := env.PageSizeKB.Int64()
	if err != nil || env.PageSizeKB == "" {
		return Resolved{}, fmt.Errorf("config: page_size_kb is required and must be an integer")
	}
	tlbSize, err := env.TLBSize.Int64()
	if err != nil || env.TLBSize == "" {
		return Resolved{}, fmt.Errorf("config: tlb_size is required and must be an integer")
	}
	if env.TLBEnabled == nil {
		return Resolved{}, fmt.Errorf("config: tlb_enabled is required")
	}
	if env.SwapPercent == nil {
		return Resolved{}, fmt.Errorf("config: swap_percent is required")
	}

	entrySize, vaWidth, err := parseVAWidth(env.VirtualAddressSize)
	if err != nil {
		return Resolved{}, err
	}

	policy, err := parsePolicy(env.AllocationType)
	if err != nil {
		return Resolved{}, err
	}

	romBytes, err := parseByteSize(env.ROMSize)
	if err != nil {
		return Resolved{}, err
	}

	ramBytes := ramGB * bytesPerGB
	pageBytes := int(pageKB * bytesPerKB)
	if pageBytes <= 0 || pageBytes&(pageBytes-1) != 0 {
		return Resolved{}, fmt.Errorf("config: page_size_kb must yield a power-of-two byte size")
	}

	totalFrames := int(ramBytes / int64(pageBytes))
	tableFrameLimit := int(math.Ceil(float64(totalFrames) * 0.01))
	dataFrames := totalFrames - tableFrameLimit
	entriesPerTable := pageBytes / entrySize

	swapBytes := int64(float64(romBytes) * *env.SwapPercent / 100)
	swapFrames := int(swapBytes / int64(pageBytes))

	tlbCapacity := int(tlbSize) / entrySize
	if tlbCapacity < 1 {
		tlbCapacity = 1
	}

	return Resolved{
		RAMSizeBytes:     ramBytes,
		PageSizeBytes:    pageBytes,
		TLBSizeBytes:     tlbSize,
		TLBEnabled:       *env.TLBEnabled,
		VAWidthBits:      vaWidth,
		EntrySizeBytes:   entrySize,
		ROMSizeBytes:     romBytes,
		SwapPercent:      *env.SwapPercent,
		SwapSizeBytes:    swapBytes,
		AllocationPolicy: policy,
		TotalFrames:      totalFrames,
		TableFrameLimit:  tableFrameLimit,
		DataFrames:       dataFrames,
		EntriesPerTable:  entriesPerTable,
		SwapFrames:       swapFrames,
		TLBCapacity:      tlbCapacity,
	}, nil
}

func parseVAWidth(s string) (entrySize, widthBits int, err error) {
	switch s {
	case "16-bit":
		return 2, 16, nil
	case "32-bit":
		return 4, 32, nil
	case "64-bit":
		return 8, 64, nil
	default:
		return 0, 0, fmt.Errorf("config: unrecognized virtual_address_size %q", s)
	}
}

func parsePolicy(s string) (alloc.Policy, error) {
	switch alloc.Policy(s) {
	case alloc.FirstFit, alloc.NextFit, alloc.BestFit, alloc.WorstFit, alloc.QuickFit, alloc.Contiguous:
		return alloc.Policy(s), nil
	default:
		return "", fmt.Errorf("config: unrecognized allocation_type %q", s)
	}
}

// parseByteSize parses strings like "32 GB" or "512 MB" into bytes.
func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("config: rom_size is required")
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("config: rom_size %q must be a number followed by a unit", s)
	}

	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("config: rom_size %q has an invalid number: %w", s, err)
	}

	var multiplier float64
	switch strings.ToUpper(fields[1]) {
	case "KB":
		multiplier = 1024
	case "MB":
		multiplier = 1024 * 1024
	case "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("config: rom_size %q has an unrecognized unit", s)
	}

	return int64(n * multiplier), nil
}

// ParseVirtualAddress parses a hex string, with or without a "0x" prefix,
// into an unsigned integer. An empty string resolves to zero.
func ParseVirtualAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid virtual_address %q: %w", s, err)
	}
	return v, nil
}

// Paths resolves the filesystem layout the simulator's file-driven mode
// uses, applying .env overrides (if a .env file is present in the current
// working directory) over compiled-in defaults.
type Paths struct {
	Environment string
	Processes   string
	ReadyFlag   string
	Results     string
}

// DefaultPaths loads a .env file if present (ignored if missing) and
// resolves the four well-known filenames under dir, honoring
// VMSIM_ENVIRONMENT_FILE / VMSIM_PROCESSES_FILE / VMSIM_READY_FLAG /
// VMSIM_RESULTS_FILE overrides.
func DefaultPaths(dir string) Paths {
	_ = godotenv.Load()

	return Paths{
		Environment: envOrDefault("VMSIM_ENVIRONMENT_FILE", dir+"/environment.json"),
		Processes:   envOrDefault("VMSIM_PROCESSES_FILE", dir+"/processes.json"),
		ReadyFlag:   envOrDefault("VMSIM_READY_FLAG", dir+"/ready.flag"),
		Results:     envOrDefault("VMSIM_RESULTS_FILE", dir+"/simulation_results.json"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
