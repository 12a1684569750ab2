package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

var tgt = catalog.Target{URL: "https://zenodo.org/record/2546677/files/license.pdf", Path: "/d/Node1/license.pdf", Group: "1"}

func TestEventTag(t *testing.T) {
	tests := []struct {
		e    Event
		want string
	}{
		{Event{Kind: Skip}, "[SKIP]"},
		{Event{Kind: Start}, "[START]"},
		{Event{Kind: Mock}, "[MOCK]"},
		{Event{Kind: Done}, "[DONE]"},
		{Event{Kind: Done, DryRun: true}, "[MOCK-DONE]"},
		{Event{Kind: Fail}, "[FAIL]"},
	}
	for _, tt := range tests {
		if got := tt.e.Tag(); got != tt.want {
			t.Errorf("Tag(%v) = %q, want %q", tt.e.Kind, got, tt.want)
		}
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(logger.New(&buf, false))

	c.Emit(Event{Kind: Skip, Target: tgt})
	c.Emit(Event{Kind: Start, Target: tgt})
	c.Emit(Event{Kind: Done, Target: tgt})
	c.Emit(Event{Kind: Fail, Target: tgt, Code: 22, Err: errors.New("http status 404")})

	out := buf.String()
	for _, want := range []string{
		"[SKIP] Already exists: /d/Node1/license.pdf",
		"[START] https://zenodo.org/record/2546677/files/license.pdf -> /d/Node1/license.pdf",
		"[DONE] /d/Node1/license.pdf",
		"[FAIL] /d/Node1/license.pdf (exit 22), retry later: http status 404",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Error("failures should log at error level")
	}
}

func TestMultiSkipsNil(t *testing.T) {
	var a, b Recorder
	var calls int
	s := Multi(&a, nil, &b, SinkFunc(func(Event) { calls++ }))
	s.Emit(Event{Kind: Done, Target: tgt})

	if a.Count(Done) != 1 || b.Count(Done) != 1 || calls != 1 {
		t.Fatalf("fan-out failed: a=%d b=%d f=%d", a.Count(Done), b.Count(Done), calls)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Emit(Event{Kind: Skip, Target: catalog.Target{Path: "a"}})
	r.Emit(Event{Kind: Done, Target: catalog.Target{Path: "b"}})
	r.Emit(Event{Kind: Skip, Target: catalog.Target{Path: "c"}})

	if got := r.Paths(Skip); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Paths(Skip) = %v", got)
	}
	ev := r.Events()
	ev[0].Kind = Fail
	if r.Events()[0].Kind != Skip {
		t.Error("Events must return a copy")
	}
}

func TestBarsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	b := NewBars(&buf)
	p := b.Track(tgt)
	p.Started(10, 100)
	p.Wrote(90)
	b.Emit(Event{Kind: Done, Target: tgt})

	other := catalog.Target{Path: "/d/Node1/readme.txt"}
	q := b.Track(other)
	q.Started(0, -1)
	q.Wrote(5)
	b.Emit(Event{Kind: Fail, Target: other})

	b.Wait()
	if len(b.bars) != 0 {
		t.Errorf("bars left open: %d", len(b.bars))
	}
}
