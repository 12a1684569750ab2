package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/internal/executor"
	"github.com/sinsfetch/sinsfetch/internal/report"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

const (
	DefaultMaxConcurrent = 5
	DefaultPollInterval  = 3 * time.Second
)

// ErrInvalidOptions is returned by New for a non-positive ceiling or
// interval.
var ErrInvalidOptions = errors.New("invalid scheduler options")

// Options configures a Scheduler.
type Options struct {
	MaxConcurrent int
	PollInterval  time.Duration
}

// Oracle reports whether a target is already present.
type Oracle interface {
	Satisfied(t catalog.Target) bool
}

// Launcher starts operations. Wake may return nil when the launcher never
// signals completions.
type Launcher interface {
	Launch(ctx context.Context, t catalog.Target) executor.Handle
	Wake() <-chan struct{}
}

// Summary lists the outcome of a run per target.
type Summary struct {
	Skipped   []catalog.Target
	Completed []catalog.Target
	Failed    []catalog.Target
	// Peak is the largest number of simultaneously active operations.
	Peak int
}

// Total is the number of targets that reached a terminal state.
func (s Summary) Total() int {
	return len(s.Skipped) + len(s.Completed) + len(s.Failed)
}

// OK reports whether no target failed.
func (s Summary) OK() bool {
	return len(s.Failed) == 0
}

// Scheduler runs targets through a Launcher. It is not safe for concurrent
// Run calls.
type Scheduler struct {
	opts   Options
	oracle Oracle
	exec   Launcher
	sink   report.Sink
	log    logger.Logger
	now    func() time.Time
}

func New(opts Options, oracle Oracle, exec Launcher, sink report.Sink, l logger.Logger) (*Scheduler, error) {
	if opts.MaxConcurrent <= 0 || opts.PollInterval <= 0 {
		return nil, ErrInvalidOptions
	}
	if sink == nil {
		sink = report.SinkFunc(func(report.Event) {})
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Scheduler{opts: opts, oracle: oracle, exec: exec, sink: sink, log: l, now: time.Now}, nil
}

type active struct {
	target catalog.Target
	handle executor.Handle
}

// Run processes targets until every one of them is skipped, completed or
// failed. Duplicate paths are processed once.
//
// When ctx is cancelled Run stops admitting, cancels the active operations,
// waits for them to settle, reports them and returns ctx.Err(). Targets
// still queued are left unreported.
func (s *Scheduler) Run(ctx context.Context, targets []catalog.Target) (Summary, error) {
	queue := dedup(targets)
	running := make([]active, 0, s.opts.MaxConcurrent)
	var sum Summary

	s.log.Debug("scheduler: %d targets, max %d concurrent, poll every %s",
		len(queue), s.opts.MaxConcurrent, s.opts.PollInterval)

	timer := time.NewTimer(s.opts.PollInterval)
	defer timer.Stop()

	for len(queue) > 0 || len(running) > 0 {
		if ctx.Err() != nil {
			s.abort(running, &sum)
			return sum, ctx.Err()
		}

		// admission
		for len(running) < s.opts.MaxConcurrent && len(queue) > 0 {
			t := queue[0]
			queue = queue[1:]
			if s.oracle.Satisfied(t) {
				s.emit(report.Event{Kind: report.Skip, Target: t})
				sum.Skipped = append(sum.Skipped, t)
				continue
			}
			running = append(running, active{target: t, handle: s.exec.Launch(ctx, t)})
			if len(running) > sum.Peak {
				sum.Peak = len(running)
			}
		}

		// polling
		kept := running[:0]
		for _, a := range running {
			st := a.handle.Poll()
			if !st.Terminal() {
				kept = append(kept, a)
				continue
			}
			s.settle(a, st, &sum)
		}
		running = kept

		if len(running) == 0 || (len(running) < s.opts.MaxConcurrent && len(queue) > 0) {
			continue
		}

		// pacing
		resetTimer(timer, s.opts.PollInterval)
		select {
		case <-ctx.Done():
		case <-s.exec.Wake():
		case <-timer.C:
		}
	}
	return sum, nil
}

func (s *Scheduler) settle(a active, st executor.Status, sum *Summary) {
	if st.State == executor.Succeeded {
		s.emit(report.Event{Kind: report.Done, Target: a.target, DryRun: st.DryRun})
		sum.Completed = append(sum.Completed, a.target)
		return
	}
	s.emit(report.Event{Kind: report.Fail, Target: a.target, Code: st.ExitCode, Err: st.Err})
	sum.Failed = append(sum.Failed, a.target)
}

func (s *Scheduler) abort(running []active, sum *Summary) {
	for _, a := range running {
		a.handle.Cancel()
	}
	for _, a := range running {
		<-a.handle.Done()
		s.settle(a, a.handle.Poll(), sum)
	}
	s.log.Warning("scheduler: cancelled with %d operations in flight", len(running))
}

func (s *Scheduler) emit(e report.Event) {
	e.At = s.now()
	s.sink.Emit(e)
}

func dedup(targets []catalog.Target) []catalog.Target {
	seen := make(map[string]struct{}, len(targets))
	out := make([]catalog.Target, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t.Path]; ok {
			continue
		}
		seen[t.Path] = struct{}{}
		out = append(out, t)
	}
	return out
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
