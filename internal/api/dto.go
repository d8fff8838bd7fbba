package api

import (
	"time"

	"codeberg.org/mutker/aqimon/internal/device"
	"codeberg.org/mutker/aqimon/internal/reading"
)

type StatusResponse struct {
	State             string           `json:"state"`
	ReaderAlive       bool             `json:"reader_alive"`
	ReaderException   *string          `json:"reader_exception"`
	NextScheduledTime *time.Time       `json:"next_scheduled_time"`
	LastReading       *ReadingResponse `json:"last_reading"`
}

// ReadingResponse is one point of the history graph. T is in Unix seconds.
type ReadingResponse struct {
	T     int64   `json:"t"`
	EPA   float64 `json:"epa"`
	PM25  float64 `json:"pm25"`
	PM10  float64 `json:"pm10"`
	Level string  `json:"level"`
}

type ErrorResponse struct {
	Msg string `json:"msg"`
}

func newStatusResponse(s device.StatusSnapshot, last *reading.Reading) StatusResponse {
	resp := StatusResponse{
		State:       s.State.String(),
		ReaderAlive: s.Alive(),
	}
	if s.LastException != "" {
		exception := s.LastException
		resp.ReaderException = &exception
	}
	if !s.NextScheduledTime.IsZero() {
		next := s.NextScheduledTime.UTC()
		resp.NextScheduledTime = &next
	}
	if last != nil {
		r := newReadingResponse(*last)
		resp.LastReading = &r
	}
	return resp
}

func newReadingResponse(r reading.Reading) ReadingResponse {
	return ReadingResponse{
		T:     r.Timestamp.Unix(),
		EPA:   r.EPA,
		PM25:  r.PM25,
		PM10:  r.PM10,
		Level: r.Level().String(),
	}
}
