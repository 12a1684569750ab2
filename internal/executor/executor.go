// Package executor runs one fetch per target in the background and exposes
// it as a handle the scheduler can poll without blocking.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/internal/oracle"
	"github.com/sinsfetch/sinsfetch/internal/report"
	"github.com/sinsfetch/sinsfetch/pkg/fetch"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
	"github.com/spf13/afero"
)

// State of an operation.
type State int32

const (
	Running State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Exit codes for failures that do not come from the transfer itself.
const (
	ExitFailure  = 1
	ExitStalled  = 28
	ExitCanceled = 130
)

var (
	ErrStalled = errors.New("transfer stalled")
	ErrPanic   = errors.New("transfer panicked")
)

// Status is a snapshot of an operation.
type Status struct {
	State    State
	ExitCode int
	Err      error
	// DryRun is set on the no-op handles of a dry run.
	DryRun bool
}

// Terminal reports whether s will not change any more.
func (s Status) Terminal() bool {
	return s.State != Running
}

// Handle is a running or finished operation.
type Handle interface {
	// Poll never blocks and returns the same Status once terminal.
	Poll() Status
	// Cancel asks the operation to stop. The partial file stays in place.
	Cancel()
	// Done is closed once the operation is terminal.
	Done() <-chan struct{}
}

// Options configures an Executor.
type Options struct {
	DryRun   bool
	Transfer fetch.Transfer
	// Fs is used for completion markers.
	Fs afero.Fs
	// Marker writes the completion marker after each live success.
	Marker bool
	// StallTimeout cancels a transfer that made no progress for this long.
	// Zero disables the watchdog.
	StallTimeout time.Duration
	// Progress returns the observer for a target's transfer. Optional.
	Progress func(catalog.Target) fetch.Progress
	Sink     report.Sink
	Log      logger.Logger
}

// Executor launches operations and signals each completion on Wake.
type Executor struct {
	opts Options
	wake chan struct{}
}

func New(opts Options) *Executor {
	if opts.Log == nil {
		opts.Log = logger.NewNopLogger()
	}
	if opts.Sink == nil {
		opts.Sink = report.SinkFunc(func(report.Event) {})
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Executor{opts: opts, wake: make(chan struct{}, 1)}
}

// Wake receives a value after operations complete. Signals coalesce.
func (e *Executor) Wake() <-chan struct{} {
	return e.wake
}

func (e *Executor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Launch starts fetching t and returns immediately. In dry-run mode nothing
// is touched and the handle is already succeeded.
func (e *Executor) Launch(ctx context.Context, t catalog.Target) Handle {
	if e.opts.DryRun {
		e.opts.Sink.Emit(report.Event{Kind: report.Mock, Target: t, DryRun: true, At: time.Now()})
		return finished(Status{State: Succeeded, DryRun: true})
	}

	e.opts.Sink.Emit(report.Event{Kind: report.Start, Target: t, At: time.Now()})

	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{cancel: cancel, done: make(chan struct{})}
	op.touch()

	var p fetch.Progress = fetch.NopProgress{}
	if e.opts.Progress != nil {
		if tp := e.opts.Progress(t); tp != nil {
			p = tp
		}
	}
	p = &watchedProgress{next: p, op: op}

	if e.opts.StallTimeout > 0 {
		go e.watch(op, e.opts.StallTimeout)
	}

	safeGo(e.opts.Log, "fetch "+t.Path, func(r interface{}) {
		e.finish(op, Status{State: Failed, ExitCode: ExitFailure, Err: fmt.Errorf("%w: %v", ErrPanic, r)})
	}, func() {
		err := e.opts.Transfer.Fetch(opCtx, t.URL, t.Path, p)
		e.finish(op, e.outcome(opCtx, op, t, err))
	})
	return op
}

func (e *Executor) outcome(ctx context.Context, op *operation, t catalog.Target, err error) Status {
	if err == nil {
		if e.opts.Marker {
			if merr := oracle.Mark(e.opts.Fs, t.Path); merr != nil {
				e.opts.Log.Warning("%s: write completion marker: %v", t.Path, merr)
			}
		}
		return Status{State: Succeeded}
	}
	switch {
	case op.stalled.Load():
		return Status{State: Failed, ExitCode: ExitStalled,
			Err: fmt.Errorf("%w: no progress for %s: %v", ErrStalled, e.opts.StallTimeout, err)}
	case ctx.Err() != nil:
		return Status{State: Failed, ExitCode: ExitCanceled, Err: err}
	}
	return Status{State: Failed, ExitCode: fetch.ExitCode(err), Err: err}
}

func (e *Executor) finish(op *operation, s Status) {
	op.once.Do(func() {
		op.cancel()
		op.status.Store(&s)
		close(op.done)
		e.signal()
	})
}

// watch cancels op once it has been idle for longer than timeout.
func (e *Executor) watch(op *operation, timeout time.Duration) {
	tick := timeout / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-op.done:
			return
		case now := <-ticker.C:
			if now.Sub(op.lastActive()) > timeout {
				op.stalled.Store(true)
				op.cancel()
				return
			}
		}
	}
}

type operation struct {
	status   atomic.Pointer[Status]
	lastSeen atomic.Int64
	stalled  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func (o *operation) Poll() Status {
	if s := o.status.Load(); s != nil {
		return *s
	}
	return Status{State: Running}
}

func (o *operation) Cancel() {
	o.cancel()
}

func (o *operation) Done() <-chan struct{} {
	return o.done
}

func (o *operation) touch() {
	o.lastSeen.Store(time.Now().UnixNano())
}

func (o *operation) lastActive() time.Time {
	return time.Unix(0, o.lastSeen.Load())
}

// finished returns an already-terminal handle.
func finished(s Status) Handle {
	op := &operation{cancel: func() {}, done: make(chan struct{})}
	op.status.Store(&s)
	close(op.done)
	return op
}

// watchedProgress records activity for the stall watchdog.
type watchedProgress struct {
	next fetch.Progress
	op   *operation
}

func (w *watchedProgress) Started(offset, total int64) {
	w.op.touch()
	w.next.Started(offset, total)
}

func (w *watchedProgress) Wrote(n int) {
	w.op.touch()
	w.next.Wrote(n)
}
