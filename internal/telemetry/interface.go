package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/aqimon/internal/reading"
)

// Collector forwards readings to every configured sink.
type Collector interface {
	Export(ctx context.Context, r reading.Reading) error
	Close() error
}

// Sink delivers one encoded reading to an external system.
type Sink interface {
	Name() string
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Payload is the wire representation of an exported reading.
type Payload struct {
	Timestamp time.Time `json:"timestamp"`
	PM25      float64   `json:"pm25"`
	PM10      float64   `json:"pm10"`
	EPA       float64   `json:"epa"`
	Level     string    `json:"level"`
}

func NewPayload(r reading.Reading) Payload {
	return Payload{
		Timestamp: r.Timestamp.UTC(),
		PM25:      r.PM25,
		PM10:      r.PM10,
		EPA:       r.EPA,
		Level:     r.Level().String(),
	}
}
