package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/aqimon/internal/clock"
	"codeberg.org/mutker/aqimon/internal/errors"
)

const (
	mockPrecision = 2
	mockMaxPM25   = 500.4
	mockMaxPM10   = 300.0
)

// MockStep is one scripted response of a MockSource.
type MockStep struct {
	Sample RawSample
	Err    error
}

// MockSource stands in for real hardware. Without a script it returns
// uniformly random concentrations; with a script it replays the steps in
// order, wrapping around at the end.
type MockSource struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	script  []MockStep
	pos     int
	reads   int
	latency time.Duration
}

type MockOption func(*MockSource)

// WithSeed makes the random samples reproducible.
func WithSeed(seed int64) MockOption {
	return func(m *MockSource) {
		m.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithScript replays the given steps instead of random samples.
func WithScript(steps ...MockStep) MockOption {
	return func(m *MockSource) {
		m.script = append(m.script, steps...)
	}
}

// WithSamples replays the given samples instead of random samples.
func WithSamples(samples ...RawSample) MockOption {
	return func(m *MockSource) {
		for _, s := range samples {
			m.script = append(m.script, MockStep{Sample: s})
		}
	}
}

// WithLatency delays every read, like a real sensor taking a measurement.
func WithLatency(d time.Duration) MockOption {
	return func(m *MockSource) {
		m.latency = d
	}
}

func NewMock(opts ...MockOption) *MockSource {
	m := &MockSource{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MockSource) Read(ctx context.Context) (RawSample, error) {
	if err := clock.Sleep(ctx, m.latency); err != nil {
		return RawSample{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++

	if len(m.script) > 0 {
		step := m.script[m.pos%len(m.script)]
		m.pos++
		if step.Err != nil {
			return RawSample{}, hardwareFault(errors.New().Wrap(ErrScriptedFailure, step.Err))
		}
		return step.Sample, nil
	}

	return RawSample{
		PM25: roundTo(m.rnd.Float64()*mockMaxPM25, mockPrecision),
		PM10: roundTo(m.rnd.Float64()*mockMaxPM10, mockPrecision),
	}, nil
}

// Reads returns how many samples have been requested so far.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (*MockSource) Precision() int {
	return mockPrecision
}

func (*MockSource) Close() error {
	return nil
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
