package report

import (
	"io"
	"sync"

	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/pkg/fetch"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Bars renders one progress bar per live transfer.
type Bars struct {
	p    *mpb.Progress
	mu   sync.Mutex
	bars map[string]*mpb.Bar
}

// NewBars renders to w. Call Wait once the run is over.
func NewBars(w io.Writer) *Bars {
	return &Bars{
		p:    mpb.New(mpb.WithOutput(w), mpb.WithWidth(64), mpb.WithAutoRefresh()),
		bars: make(map[string]*mpb.Bar),
	}
}

// Track returns the Progress for t. The bar is created lazily when the
// transfer learns its size.
func (b *Bars) Track(t catalog.Target) fetch.Progress {
	return &barProgress{owner: b, target: t}
}

// Emit closes the bar of a finished target.
func (b *Bars) Emit(e Event) {
	if e.Kind != Done && e.Kind != Fail {
		return
	}
	b.mu.Lock()
	bar, ok := b.bars[e.Target.Path]
	delete(b.bars, e.Target.Path)
	b.mu.Unlock()
	if !ok {
		return
	}
	if e.Kind == Fail {
		bar.Abort(false)
		return
	}
	bar.SetTotal(-1, true)
}

// Wait flushes and stops rendering.
func (b *Bars) Wait() {
	b.mu.Lock()
	for path, bar := range b.bars {
		bar.Abort(false)
		delete(b.bars, path)
	}
	b.mu.Unlock()
	b.p.Wait()
}

func (b *Bars) newBar(t catalog.Target, offset, total int64) *mpb.Bar {
	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")
	name := t.Name()
	if total < 0 {
		total = 0
	}
	bar := b.p.New(total,
		barStyle,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "Complete",
			),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .2f / % .2f"),
			decor.AverageSpeed(decor.SizeB1024(0), " % .2f"),
		),
	)
	if offset > 0 {
		bar.SetCurrent(offset)
	}
	b.mu.Lock()
	if old, ok := b.bars[t.Path]; ok {
		old.Abort(true)
	}
	b.bars[t.Path] = bar
	b.mu.Unlock()
	return bar
}

type barProgress struct {
	owner  *Bars
	target catalog.Target
	mu     sync.Mutex
	bar    *mpb.Bar
}

func (p *barProgress) Started(offset, total int64) {
	bar := p.owner.newBar(p.target, offset, total)
	p.mu.Lock()
	p.bar = bar
	p.mu.Unlock()
}

func (p *barProgress) Wrote(n int) {
	p.mu.Lock()
	bar := p.bar
	p.mu.Unlock()
	if bar != nil {
		bar.IncrBy(n)
	}
}
