package record

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"
)

// CSVAccessRecorder buffers access events and writes them out as CSV. It
// registers an atexit hook that flushes whatever was buffered when the
// program ends through atexit.Exit; a plain os.Exit or an unrecovered panic
// does not run the hook.
type CSVAccessRecorder struct {
	path string
	file *os.File

	events     []AccessEvent
	bufferSize int
}

// NewCSVAccessRecorder creates a recorder that writes to path, flushing
// automatically every bufferSize events.
func NewCSVAccessRecorder(path string, bufferSize int) *CSVAccessRecorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &CSVAccessRecorder{path: path, bufferSize: bufferSize}
}

// Init creates the CSV file, overwriting it if it already exists.
func (r *CSVAccessRecorder) Init() error {
	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	r.file = file

	fmt.Fprintf(file, "step,pid,page,virtual_address,write,tlb_hit,faulted,frame\n")

	atexit.Register(func() {
		_ = r.Flush()
		_ = r.file.Close()
	})

	return nil
}

// Record buffers an event, flushing if the buffer has filled up.
func (r *CSVAccessRecorder) Record(e AccessEvent) {
	r.events = append(r.events, e)
	if len(r.events) >= r.bufferSize {
		_ = r.Flush()
	}
}

// Flush writes every buffered event to disk.
func (r *CSVAccessRecorder) Flush() error {
	for _, e := range r.events {
		_, err := fmt.Fprintf(r.file, "%d,%s,%d,%#x,%t,%t,%t,%d\n",
			e.Step, e.PID, e.Page, e.VirtualAddress, e.Write, e.TLBHit, e.Faulted, e.Frame)
		if err != nil {
			return err
		}
	}
	r.events = nil
	return nil
}

// Close flushes and closes the underlying file.
func (r *CSVAccessRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
