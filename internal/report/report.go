// Package report carries scheduler events to their consumers: the console,
// the run ledger and, for live transfers, progress bars.
package report

import (
	"sync"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

// Kind names a reporting event.
type Kind string

const (
	Skip  Kind = "skip"
	Start Kind = "start"
	Mock  Kind = "mock"
	Done  Kind = "done"
	Fail  Kind = "fail"
)

// Event is one observation about a target.
type Event struct {
	Kind   Kind
	Target catalog.Target
	// Code is the exit status of a failed operation.
	Code int
	Err  error
	// DryRun marks events produced while nothing is really fetched.
	DryRun bool
	At     time.Time
}

// Tag returns the console trace tag for e.
func (e Event) Tag() string {
	switch e.Kind {
	case Skip:
		return "[SKIP]"
	case Start:
		return "[START]"
	case Mock:
		return "[MOCK]"
	case Done:
		if e.DryRun {
			return "[MOCK-DONE]"
		}
		return "[DONE]"
	case Fail:
		return "[FAIL]"
	}
	return "[" + string(e.Kind) + "]"
}

// Sink consumes events. Emit is called from one goroutine at a time unless
// a sink documents otherwise.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Console writes each event as one tagged log line.
type Console struct {
	Log logger.Logger
}

func NewConsole(l logger.Logger) *Console {
	return &Console{Log: l}
}

func (c *Console) Emit(e Event) {
	t := e.Target
	switch e.Kind {
	case Skip:
		c.Log.Info("%s Already exists: %s", e.Tag(), t.Path)
	case Start:
		c.Log.Info("%s %s -> %s", e.Tag(), t.URL, t.Path)
	case Mock:
		c.Log.Info("%s would fetch %s -> %s", e.Tag(), t.URL, t.Path)
	case Done:
		c.Log.Info("%s %s", e.Tag(), t.Path)
	case Fail:
		if e.Err != nil {
			c.Log.Error("%s %s (exit %d), retry later: %v", e.Tag(), t.Path, e.Code, e.Err)
			return
		}
		c.Log.Error("%s %s (exit %d), retry later", e.Tag(), t.Path, e.Code)
	default:
		c.Log.Debug("%s %s", e.Tag(), t.Path)
	}
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Paths returns the target paths of all events of kind k, in order.
func (r *Recorder) Paths(k Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e.Target.Path)
		}
	}
	return out
}

// Count returns the number of events of kind k.
func (r *Recorder) Count(k Kind) int {
	return len(r.Paths(k))
}
