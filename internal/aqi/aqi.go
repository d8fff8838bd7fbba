// Package aqi converts particulate matter concentrations into the EPA Air
// Quality Index using the piecewise-linear breakpoint tables.
package aqi

import (
	"math"

	"codeberg.org/mutker/aqimon/internal/errors"
)

// Pollutant identifies which breakpoint table a concentration belongs to.
type Pollutant string

const (
	PM25 Pollutant = "pm25"
	PM10 Pollutant = "pm10"
)

// Level is one of the six EPA severity bands, ordered from best to worst.
type Level int

const (
	Good Level = iota
	Moderate
	UnhealthyForSensitive
	Unhealthy
	VeryUnhealthy
	Hazardous
)

var levelNames = [...]string{
	Good:                  "Good",
	Moderate:              "Moderate",
	UnhealthyForSensitive: "Unhealthy for Sensitive Groups",
	Unhealthy:             "Unhealthy",
	VeryUnhealthy:         "Very Unhealthy",
	Hazardous:             "Hazardous",
}

func (l Level) String() string {
	if l < Good || l > Hazardous {
		return "Unknown"
	}

	return levelNames[l]
}

// upper AQI bound of each level; anything above the last entry is Hazardous
var levelCeilings = [...]float64{
	Good:                  50,
	Moderate:              100,
	UnhealthyForSensitive: 150,
	Unhealthy:             200,
	VeryUnhealthy:         300,
}

// Breakpoint maps the concentration range [ConcLow, ConcHigh] linearly onto
// the index range [IndexLow, IndexHigh].
type Breakpoint struct {
	ConcLow, ConcHigh   float64
	IndexLow, IndexHigh float64
}

// Table is an ordered breakpoint table for a single pollutant. Concentrations
// are truncated to the table's number of decimals before lookup, as EPA does.
type Table struct {
	Pollutant   Pollutant
	Decimals    int
	Breakpoints []Breakpoint
}

var (
	PM25Table = Table{
		Pollutant: PM25,
		Decimals:  1,
		Breakpoints: []Breakpoint{
			{0.0, 12.0, 0, 50},
			{12.1, 35.4, 51, 100},
			{35.5, 55.4, 101, 150},
			{55.5, 150.4, 151, 200},
			{150.5, 250.4, 201, 300},
			{250.5, 350.4, 301, 400},
			{350.5, 500.4, 401, 500},
		},
	}

	PM10Table = Table{
		Pollutant: PM10,
		Decimals:  0,
		Breakpoints: []Breakpoint{
			{0, 54, 0, 50},
			{55, 154, 51, 100},
			{155, 254, 101, 150},
			{255, 354, 151, 200},
			{355, 424, 201, 300},
			{425, 504, 301, 400},
			{505, 604, 401, 500},
		},
	}
)

// Index returns the AQI for concentration c, rounded to the nearest integer.
// Concentrations above the top breakpoint clamp to the top of the table.
func (t Table) Index(c float64) (float64, error) {
	if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, errors.New().WithData(errors.ErrInvalidConcentration, struct {
			Pollutant Pollutant
			Value     float64
		}{t.Pollutant, c})
	}

	c = t.truncate(c)

	top := t.Breakpoints[len(t.Breakpoints)-1]
	if c > top.ConcHigh {
		return top.IndexHigh, nil
	}

	for _, bp := range t.Breakpoints {
		if c <= bp.ConcHigh {
			aqi := ((bp.IndexHigh-bp.IndexLow)/(bp.ConcHigh-bp.ConcLow))*(c-bp.ConcLow) + bp.IndexLow
			return math.Max(math.Round(aqi), bp.IndexLow), nil
		}
	}

	return top.IndexHigh, nil
}

func (t Table) truncate(c float64) float64 {
	scale := math.Pow10(t.Decimals)
	// the epsilon keeps values like 35.4 from flooring to 35.3
	return math.Floor(c*scale+1e-9) / scale
}

// Result is the combined index of a PM2.5/PM10 pair.
type Result struct {
	AQI      float64
	Level    Level
	PM25     float64
	PM10     float64
	Dominant Pollutant
}

// Calculate returns the overall AQI of a reading: the worse of the PM2.5 and
// PM10 sub-indices.
func Calculate(pm25, pm10 float64) (Result, error) {
	pm25Index, err := PM25Table.Index(pm25)
	if err != nil {
		return Result{}, err
	}

	pm10Index, err := PM10Table.Index(pm10)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		AQI:      pm25Index,
		PM25:     pm25Index,
		PM10:     pm10Index,
		Dominant: PM25,
	}
	if pm10Index > pm25Index {
		res.AQI = pm10Index
		res.Dominant = PM10
	}
	res.Level = LevelOf(res.AQI)

	return res, nil
}

// LevelOf locates the severity band containing aqi.
func LevelOf(aqi float64) Level {
	for lvl, ceiling := range levelCeilings {
		if aqi <= ceiling {
			return Level(lvl)
		}
	}

	return Hazardous
}
