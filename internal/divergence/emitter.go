package divergence

import (
	"fmt"
	"log"
	"sync"
	"time"

	"divscan-go/internal/model"
	"divscan-go/internal/series"
)

// Sink renders annotations. Draw with a tag already rendered must be treated
// as an update, never as a second annotation.
type Sink interface {
	Draw(a model.Annotation) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(a model.Annotation) error

func (f SinkFunc) Draw(a model.Annotation) error { return f(a) }

var tagPrefixes = map[model.Kind]string{
	model.KindRegularBearish: "BearDiv",
	model.KindRegularBullish: "BullDiv",
	model.KindHiddenBullish:  "HidBullDiv",
	model.KindHiddenBearish:  "HidBearDiv",
}

var styles = map[model.Kind]model.Style{
	model.KindRegularBearish: {Color: "red", Width: 2},
	model.KindRegularBullish: {Color: "green", Width: 2},
	model.KindHiddenBullish:  {Color: "green", Dashed: true, Width: 1},
	model.KindHiddenBearish:  {Color: "red", Dashed: true, Width: 1},
}

// Tag builds the deterministic annotation identifier for a finding seen at currentBar
func Tag(kind model.Kind, currentBar, recentPriceOffset int) string {
	return fmt.Sprintf("%s_%d_%d", tagPrefixes[kind], currentBar, recentPriceOffset)
}

// Emitter converts findings into annotations and hands each distinct tag to the
// sink once. Sink failures are logged and dropped. Tags carry the bar they were
// found on, so only tags of the newest bar are remembered.
type Emitter struct {
	sink     Sink
	symbol   string
	interval string
	onError  func(tag string, err error)
	now      func() time.Time

	mu      sync.Mutex
	emitted map[string]int // tag -> current bar
}

// EmitterOption customises an Emitter
type EmitterOption func(*Emitter)

// WithErrorHook is called after a sink failure has been recovered
func WithErrorHook(fn func(tag string, err error)) EmitterOption {
	return func(e *Emitter) { e.onError = fn }
}

// WithClock overrides the clock used for CreatedAt
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) { e.now = now }
}

// NewEmitter creates an emitter for one instrument
func NewEmitter(sink Sink, symbol, interval string, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		sink:     sink,
		symbol:   symbol,
		interval: interval,
		now:      time.Now,
		emitted:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit renders f against the bar and oscillator feeds it was found on.
// It returns false when the tag was already emitted or the sink failed.
func (e *Emitter) Emit(f model.Finding, bars series.Bars, osc series.Series, historical bool) bool {
	a := e.annotate(f, bars, osc, historical)

	e.mu.Lock()
	e.forgetBefore(a.CurrentBar)
	if _, seen := e.emitted[a.Tag]; seen {
		e.mu.Unlock()
		return false
	}
	e.emitted[a.Tag] = a.CurrentBar
	e.mu.Unlock()

	if err := e.draw(a); err != nil {
		log.Printf("⚠️  [Emitter] %s - failed to render %s: %v", e.symbol, a.Tag, err)
		if e.onError != nil {
			e.onError(a.Tag, err)
		}
		return false
	}
	return true
}

// Emitted reports whether tag has been handed to the sink
func (e *Emitter) Emitted(tag string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.emitted[tag]
	return ok
}

// forgetBefore drops tags of bars older than bar; they can never be produced again
func (e *Emitter) forgetBefore(bar int) {
	for tag, b := range e.emitted {
		if b < bar {
			delete(e.emitted, tag)
		}
	}
}

func (e *Emitter) draw(a model.Annotation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	if e.sink == nil {
		return nil
	}
	return e.sink.Draw(a)
}

func (e *Emitter) annotate(f model.Finding, bars series.Bars, osc series.Series, historical bool) model.Annotation {
	currentBar := bars.Count() - 1
	return model.Annotation{
		Tag:        Tag(f.Kind, currentBar, f.RecentPriceOffset),
		Symbol:     e.symbol,
		Interval:   e.interval,
		Kind:       f.Kind,
		CurrentBar: currentBar,
		Price: model.Segment{
			StartOffset: f.PrevPriceOffset,
			StartTime:   bars.OpenTime(f.PrevPriceOffset),
			StartValue:  f.PrevPrice,
			EndOffset:   f.RecentPriceOffset,
			EndTime:     bars.OpenTime(f.RecentPriceOffset),
			EndValue:    f.RecentPrice,
		},
		Oscillator: model.Segment{
			StartOffset: f.PrevOscOffset,
			StartTime:   bars.OpenTime(f.PrevOscOffset),
			StartValue:  f.PrevOsc,
			EndOffset:   f.RecentOscOffset,
			EndTime:     bars.OpenTime(f.RecentOscOffset),
			EndValue:    f.RecentOsc,
		},
		Style:      styles[f.Kind],
		Historical: historical,
		CreatedAt:  e.now(),
	}
}
