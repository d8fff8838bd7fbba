package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/aqimon/internal/device"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/metrics"
	"codeberg.org/mutker/aqimon/internal/reading"
	"codeberg.org/mutker/aqimon/internal/sensor"
	"codeberg.org/mutker/aqimon/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_PollThenQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := storage.Open(ctx, storage.Config{
		DBPath: filepath.Join(t.TempDir(), "db.sqlite"),
	}, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	source := sensor.NewMock(sensor.WithSamples(sensor.RawSample{PM25: 35.5, PM10: 40}))
	agg, err := reading.NewAggregator(source, 2, 0)
	require.NoError(t, err)

	m := metrics.New()
	sched, err := device.New(device.Config{PollInterval: time.Hour}, agg, sensor.NoopCycler{}, store,
		device.WithRecorder(m))
	require.NoError(t, err)

	router := NewRouter(sched, m, logger.Nop())

	w := get(t, router, "/api/latest")
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing persisted before the first cycle")

	sched.Poll(ctx)

	w = get(t, router, "/api/sensor_data?window=hour")
	require.Equal(t, http.StatusOK, w.Code)

	var data []ReadingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	require.Len(t, data, 1)
	assert.InDelta(t, 35.5, data[0].PM25, 1e-9)
	assert.InDelta(t, 101.0, data[0].EPA, 1e-9)

	w = get(t, router, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "idle", status.State)
	assert.True(t, status.ReaderAlive)
	require.NotNil(t, status.LastReading)
	assert.Equal(t, "Unhealthy for Sensitive Groups", status.LastReading.Level)

	w = get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `aqimon_poll_cycles_total{result="success"} 1`)
	assert.Contains(t, w.Body.String(), "aqimon_last_aqi 101")
}
