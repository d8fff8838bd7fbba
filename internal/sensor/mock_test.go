package sensor_test

import (
	"context"
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockReplaysScript(t *testing.T) {
	src := sensor.NewMock(sensor.WithSamples(
		sensor.RawSample{PM25: 1, PM10: 2},
		sensor.RawSample{PM25: 3, PM10: 4},
	))

	ctx := context.Background()
	want := []float64{1, 3, 1}
	for _, pm25 := range want {
		sample, err := src.Read(ctx)
		require.NoError(t, err)
		assert.InDelta(t, pm25, sample.PM25, 1e-9)
	}
	assert.Equal(t, 3, src.Reads())
}

func TestMockScriptedFailure(t *testing.T) {
	src := sensor.NewMock(sensor.WithScript(
		sensor.MockStep{Sample: sensor.RawSample{PM25: 5, PM10: 5}},
		sensor.MockStep{Err: assert.AnError},
	))

	_, err := src.Read(context.Background())
	require.NoError(t, err)

	_, err = src.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrHardwareFault))
	assert.True(t, errors.HasCode(err, sensor.ErrScriptedFailure))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMockRandomSamples(t *testing.T) {
	src := sensor.NewMock(sensor.WithSeed(42))
	assert.Equal(t, 2, src.Precision())

	for range 100 {
		sample, err := src.Read(context.Background())
		require.NoError(t, err)

		assert.GreaterOrEqual(t, sample.PM25, 0.0)
		assert.LessOrEqual(t, sample.PM25, 500.4)
		assert.GreaterOrEqual(t, sample.PM10, 0.0)
		assert.LessOrEqual(t, sample.PM10, 300.0)
		assert.InDelta(t, sample.PM25, math.Round(sample.PM25*100)/100, 1e-9)
	}
}

func TestMockSeedIsReproducible(t *testing.T) {
	a := sensor.NewMock(sensor.WithSeed(7))
	b := sensor.NewMock(sensor.WithSeed(7))

	for range 10 {
		sa, err := a.Read(context.Background())
		require.NoError(t, err)
		sb, err := b.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, sa, sb)
	}
}

func TestMockLatencyCanceled(t *testing.T) {
	src := sensor.NewMock(sensor.WithLatency(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.Reads())
}
