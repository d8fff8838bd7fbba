package device

import (
	"context"
	"time"

	"codeberg.org/mutker/aqimon/internal/reading"
	"codeberg.org/mutker/aqimon/internal/sensor"
)

// Aggregator produces one averaged sample per poll cycle.
type Aggregator interface {
	Aggregate(ctx context.Context) (sensor.RawSample, error)
}

// Store is the part of the reading store the scheduler uses.
type Store interface {
	Append(ctx context.Context, r reading.Reading) error
	Query(ctx context.Context, w reading.Window) ([]reading.Reading, error)
	Latest(ctx context.Context) (reading.Reading, bool, error)
}

// Exporter forwards every new reading to external consumers.
type Exporter interface {
	Export(ctx context.Context, r reading.Reading) error
}

// Recorder observes poll cycles for instrumentation.
type Recorder interface {
	CycleCompleted(result string, elapsed time.Duration)
	StateChanged(state string)
	ReadingTaken(r reading.Reading)
	ExportFailed()
}

// Cycle results reported to the Recorder
const (
	ResultSuccess           = "success"
	ResultHardwareFault     = "hardware_fault"
	ResultAggregationFailed = "aggregation_failed"
	ResultPersistenceFailed = "persistence_failed"
)

type noopExporter struct{}

func (noopExporter) Export(context.Context, reading.Reading) error { return nil }

type noopRecorder struct{}

func (noopRecorder) CycleCompleted(string, time.Duration) {}
func (noopRecorder) StateChanged(string) {}
func (noopRecorder) ReadingTaken(reading.Reading) {}
func (noopRecorder) ExportFailed() {}
