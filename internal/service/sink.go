package service

import (
	"errors"
	"fmt"
	"log"

	"divscan-go/internal/divergence"
	"divscan-go/internal/model"
)

// MultiSink hands every annotation to each sink in order. All sinks are tried
// even when an earlier one fails.
type MultiSink []divergence.Sink

func (m MultiSink) Draw(a model.Annotation) error {
	var errs []error
	for idx, sink := range m {
		if sink == nil {
			continue
		}
		if err := drawSafely(sink, a); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", idx, err))
		}
	}
	return errors.Join(errs...)
}

func drawSafely(sink divergence.Sink, a model.Annotation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sink.Draw(a)
}

// LogSink writes annotations to the standard logger
type LogSink struct{}

func (LogSink) Draw(a model.Annotation) error {
	state := "live"
	if a.Historical {
		state = "backfill"
	}
	log.Printf("📐 [Divergence] %s %s %s (%s) price %s→%s osc %.4f→%.4f",
		a.Symbol, a.Interval, a.Tag, state,
		FormatPrice(a.Price.StartValue), FormatPrice(a.Price.EndValue),
		a.Oscillator.StartValue, a.Oscillator.EndValue)
	return nil
}
