package reading

import (
	"time"

	"codeberg.org/mutker/aqimon/internal/aqi"
	"codeberg.org/mutker/aqimon/internal/errors"
)

// Reading is one persisted poll result: averaged concentrations in µg/m³ and
// the overall EPA AQI derived from them.
type Reading struct {
	Timestamp time.Time
	PM25      float64
	PM10      float64
	EPA       float64
}

// Level returns the EPA severity band of the reading.
func (r Reading) Level() aqi.Level {
	return aqi.LevelOf(r.EPA)
}

// Window bounds a history query. Start is inclusive, End is exclusive, and
// a zero bound leaves that side open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Named windows accepted by the HTTP API
const (
	WindowHour = "hour"
	WindowDay  = "day"
	WindowWeek = "week"
	WindowAll  = "all"
)

var windowSpans = map[string]time.Duration{
	WindowHour: time.Hour,
	WindowDay:  24 * time.Hour,
	WindowWeek: 7 * 24 * time.Hour,
	WindowAll:  0,
}

// Since returns the window covering everything from now-span onwards.
func Since(now time.Time, span time.Duration) Window {
	return Window{Start: now.Add(-span)}
}

// ParseWindow resolves a named window relative to now. An empty name
// selects all readings.
func ParseWindow(name string, now time.Time) (Window, error) {
	if name == "" {
		name = WindowAll
	}

	span, ok := windowSpans[name]
	if !ok {
		return Window{}, errors.New().WithData(errors.ErrInvalidArgument, name)
	}
	if span == 0 {
		return Window{}, nil
	}

	return Since(now, span), nil
}
