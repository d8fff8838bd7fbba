package metrics

import (
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/aqimon/internal/device"
	"codeberg.org/mutker/aqimon/internal/reading"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aqimon"

// Metrics instruments poll cycles, purges, exports and HTTP requests on its
// own registry.
type Metrics struct {
	registry *prometheus.Registry

	pollCycles    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	deviceState   *prometheus.GaugeVec
	lastPM25      prometheus.Gauge
	lastPM10      prometheus.Gauge
	lastAQI       prometheus.Gauge
	purged        prometheus.Counter
	exportErrors  prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of poll cycles including warm-up.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		deviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_state",
			Help:      "1 for the current device state, 0 otherwise.",
		}, []string{"state"}),
		lastPM25: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pm25",
			Help:      "Last averaged PM2.5 concentration in µg/m³.",
		}),
		lastPM10: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pm10",
			Help:      "Last averaged PM10 concentration in µg/m³.",
		}),
		lastAQI: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_aqi",
			Help:      "Last computed EPA AQI.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_readings_total",
			Help:      "Readings deleted by the retention policy.",
		}),
		exportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_errors_total",
			Help:      "Readings that could not be exported to every sink.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pollCycles,
		m.cycleDuration,
		m.deviceState,
		m.lastPM25,
		m.lastPM10,
		m.lastAQI,
		m.purged,
		m.exportErrors,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CycleCompleted(result string, elapsed time.Duration) {
	m.pollCycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StateChanged(state string) {
	for _, s := range device.States() {
		value := 0.0
		if s.String() == state {
			value = 1
		}
		m.deviceState.WithLabelValues(s.String()).Set(value)
	}
}

func (m *Metrics) ReadingTaken(r reading.Reading) {
	m.lastPM25.Set(r.PM25)
	m.lastPM10.Set(r.PM10)
	m.lastAQI.Set(r.EPA)
}

func (m *Metrics) ExportFailed() {
	m.exportErrors.Inc()
}

func (m *Metrics) Purged(n int64) {
	m.purged.Add(float64(n))
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
