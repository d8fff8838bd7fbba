package aqi_test

import (
	"testing"

	"codeberg.org/mutker/aqimon/internal/aqi"
	"codeberg.org/mutker/aqimon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPM25Breakpoints(t *testing.T) {
	tests := []struct {
		conc float64
		want float64
	}{
		{0, 0},
		{6.0, 25},
		{12.0, 50},
		{12.1, 51},
		{12.05, 50},
		{35.4, 100},
		{35.5, 101},
		{55.4, 150},
		{55.5, 151},
		{150.4, 200},
		{150.5, 201},
		{250.4, 300},
		{250.5, 301},
		{350.4, 400},
		{500.4, 500},
		{501, 500},
		{999.9, 500},
	}

	for _, tt := range tests {
		got, err := aqi.PM25Table.Index(tt.conc)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "pm2.5 = %v", tt.conc)
	}
}

func TestPM10Breakpoints(t *testing.T) {
	tests := []struct {
		conc float64
		want float64
	}{
		{0, 0},
		{54, 50},
		{54.9, 50},
		{55, 51},
		{154, 100},
		{155, 101},
		{254, 150},
		{354, 200},
		{424, 300},
		{504, 400},
		{604, 500},
		{700, 500},
	}

	for _, tt := range tests {
		got, err := aqi.PM10Table.Index(tt.conc)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "pm10 = %v", tt.conc)
	}
}

func TestGoodModerateBoundary(t *testing.T) {
	atTop, err := aqi.Calculate(12.0, 0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, atTop.AQI)
	assert.Equal(t, aqi.Good, atTop.Level)

	above, err := aqi.Calculate(12.1, 0)
	require.NoError(t, err)
	assert.Greater(t, above.AQI, 50.0)
	assert.Equal(t, aqi.Moderate, above.Level)
}

func TestMonotonic(t *testing.T) {
	prev := -1.0
	for c := 0.0; c <= 600; c += 0.05 {
		got, err := aqi.PM25Table.Index(c)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got, prev, "pm2.5 index decreased at %v", c)
		prev = got
	}

	prev = -1.0
	for c := 0.0; c <= 700; c += 0.5 {
		got, err := aqi.PM10Table.Index(c)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got, prev, "pm10 index decreased at %v", c)
		prev = got
	}
}

func TestDeterministic(t *testing.T) {
	first, err := aqi.Calculate(42.7, 120)
	require.NoError(t, err)
	second, err := aqi.Calculate(42.7, 120)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculateReportsWorstPollutant(t *testing.T) {
	res, err := aqi.Calculate(5.0, 300)
	require.NoError(t, err)
	assert.Equal(t, aqi.PM10, res.Dominant)
	assert.Equal(t, res.PM10, res.AQI)
	assert.Equal(t, aqi.Unhealthy, res.Level)

	res, err = aqi.Calculate(160, 20)
	require.NoError(t, err)
	assert.Equal(t, aqi.PM25, res.Dominant)
	assert.Equal(t, res.PM25, res.AQI)
	assert.Equal(t, aqi.VeryUnhealthy, res.Level)
}

func TestNegativeConcentration(t *testing.T) {
	_, err := aqi.Calculate(-0.1, 10)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConcentration))

	_, err = aqi.Calculate(10, -3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConcentration))
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		aqi  float64
		want aqi.Level
	}{
		{0, aqi.Good},
		{50, aqi.Good},
		{51, aqi.Moderate},
		{100, aqi.Moderate},
		{101, aqi.UnhealthyForSensitive},
		{150, aqi.UnhealthyForSensitive},
		{151, aqi.Unhealthy},
		{200, aqi.Unhealthy},
		{201, aqi.VeryUnhealthy},
		{300, aqi.VeryUnhealthy},
		{301, aqi.Hazardous},
		{500, aqi.Hazardous},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, aqi.LevelOf(tt.aqi), "aqi = %v", tt.aqi)
	}

	assert.Equal(t, "Unhealthy for Sensitive Groups", aqi.UnhealthyForSensitive.String())
	assert.Equal(t, "Unknown", aqi.Level(42).String())
}
