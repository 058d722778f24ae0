// Package metrics decouples instrumentation call sites from the metrics
// destination. Code emits counters and histogram samples through the
// package-level helpers; main wires a concrete Backend once at startup.
// Without SetBackend every emission is a no-op, so library code can
// instrument unconditionally.
package metrics

import "sync"

// Labels carries the dimension tags of one emission. Backends decide
// which labels they care about; extra labels are ignored.
type Labels map[string]string

// Backend is the destination contract. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}
func (nop) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs the process-wide backend. Passing nil restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nop{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Inc adds delta to a named counter.
func Inc(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// Observe records one histogram sample.
func Observe(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forces the backend to submit anything buffered.
func Flush() error {
	return current().Flush()
}
