package sensor

import "context"

// SampleSource produces one raw particulate sample per call.
type SampleSource interface {
	// Read takes a single sample. Failures are reported as hardware faults.
	Read(ctx context.Context) (RawSample, error)

	// Precision returns the number of decimal places the source reports.
	Precision() int

	// Close releases the underlying device, if any.
	Close() error
}

// PowerCycler restarts the sensor's power supply, typically a USB hub port.
type PowerCycler interface {
	PowerCycle(ctx context.Context) error
}

// RawSample is a single, unvalidated PM2.5/PM10 measurement in µg/m³.
type RawSample struct {
	PM25 float64
	PM10 float64
}
