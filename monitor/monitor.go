// Package monitor turns a Driver into an HTTP server: it exposes the last
// result document, triggers new simulation runs, and reports the host
// process's own CPU and memory usage alongside the simulated numbers.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	// registers the runtime profiling handlers under /debug/pprof
	_ "net/http/pprof"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/vmemsim/internal/config"
	"github.com/sarchlab/vmemsim/simulator"
)

// Monitor serves a Driver's results over HTTP and lets a client trigger new
// runs against a fixed process descriptor set.
type Monitor struct {
	driver      *simulator.Driver
	descriptors []config.ProcessDescriptor
	portNumber  int

	mu     sync.Mutex
	latest *simulator.Result
}

// New builds a Monitor around driver. descriptors is the process set every
// triggered run replays.
func New(driver *simulator.Driver, descriptors []config.ProcessDescriptor) *Monitor {
	return &Monitor{driver: driver, descriptors: descriptors}
}

// WithPortNumber sets the port the server listens on. A value below 1000 is
// rejected in favor of an OS-assigned port, since low ports usually require
// elevated privileges.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"port %d is not allowed for the monitor, using a random port instead\n", portNumber)
		portNumber = 0
	}
	m.portNumber = portNumber
	return m
}

// StartServer runs one simulation to seed the initial result, then starts
// serving in the background. It returns the address the server bound to.
func (m *Monitor) StartServer() (string, error) {
	m.mu.Lock()
	m.latest = m.driver.Simulate(m.descriptors)
	m.mu.Unlock()

	r := mux.NewRouter()
	r.HandleFunc("/api/result", m.getResult)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber >= 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	addr := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)

	go func() {
		if err := http.Serve(listener, nil); err != nil {
			log.Println("monitor: server stopped:", err)
		}
	}()

	return addr, nil
}

func (m *Monitor) getResult(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	res := m.latest
	m.mu.Unlock()

	writeJSON(w, res)
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	m.latest = m.driver.Simulate(m.descriptors)
	res := m.latest
	m.mu.Unlock()

	writeJSON(w, res)
}

type resourceResponse struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss_bytes"`
}

// listResources reports the monitor process's own CPU and memory footprint,
// letting a caller compare the cost of running the simulator against the
// RAM sizes it is simulating.
func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceResponse{CPUPercent: cpuPercent, MemoryRSS: memInfo.RSS})
}

// collectProfile captures one second of CPU profile and returns it decoded
// as JSON, useful for spotting a slow allocation strategy or a runaway
// access trace.
func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
