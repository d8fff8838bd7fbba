package reading

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/aqimon/internal/clock"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/sensor"
)

type sampleFailure struct {
	Sample int
	PM25   float64
	PM10   float64
}

// Aggregator turns several noisy samples into one averaged sample.
type Aggregator struct {
	source  sensor.SampleSource
	samples int
	delay   time.Duration
	sleep   clock.SleepFunc
}

type AggregatorOption func(*Aggregator)

// WithSleep replaces the pause between samples.
func WithSleep(sleep clock.SleepFunc) AggregatorOption {
	return func(a *Aggregator) {
		a.sleep = sleep
	}
}

func NewAggregator(source sensor.SampleSource, samples int, delay time.Duration, opts ...AggregatorOption) (*Aggregator, error) {
	errFactory := errors.New()

	if samples < 1 {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, struct {
			Field string
			Value int
		}{"samples", samples})
	}
	if delay < 0 {
		return nil, errFactory.WithData(errors.ErrInvalidInterval, delay)
	}

	a := &Aggregator{
		source:  source,
		samples: samples,
		delay:   delay,
		sleep:   clock.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Samples returns the number of samples averaged per call.
func (a *Aggregator) Samples() int {
	return a.samples
}

// Aggregate draws the configured number of samples, pausing between draws,
// and returns their mean rounded to the source's precision. Any failed or
// negative sample aborts the whole batch.
//
// Cancellation of ctx interrupts the pauses only. A sample already being
// taken is allowed to complete so the sensor is not left mid-exchange.
func (a *Aggregator) Aggregate(ctx context.Context) (sensor.RawSample, error) {
	errFactory := errors.New()

	var sum sensor.RawSample
	for i := range a.samples {
		if i > 0 {
			if err := a.sleep(ctx, a.delay); err != nil {
				return sensor.RawSample{}, errFactory.Wrap(errors.ErrCanceled, err)
			}
		}

		sample, err := a.source.Read(context.WithoutCancel(ctx))
		if err != nil {
			return sensor.RawSample{}, errFactory.Wrap(errors.ErrAggregationFailed, err).
				WithData(sampleFailure{Sample: i + 1})
		}
		if !valid(sample.PM25) || !valid(sample.PM10) {
			return sensor.RawSample{}, errFactory.Wrap(errors.ErrAggregationFailed,
				errFactory.New(errors.ErrInvalidConcentration)).
				WithData(sampleFailure{Sample: i + 1, PM25: sample.PM25, PM10: sample.PM10})
		}

		sum.PM25 += sample.PM25
		sum.PM10 += sample.PM10
	}

	n := float64(a.samples)
	precision := a.source.Precision()

	return sensor.RawSample{
		PM25: round(sum.PM25/n, precision),
		PM10: round(sum.PM10/n, precision),
	}, nil
}

func valid(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
