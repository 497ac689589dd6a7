package monitoring

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/mq"
	"github.com/GriffinCanCode/memipc/internal/shm"
)

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Channel metrics
	MessagesTotal *prometheus.CounterVec
	MessageBytes  *prometheus.HistogramVec
	QueueDepth    *prometheus.GaugeVec

	// Operation metrics
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec

	// Shadow table metrics
	RecordsApplied *prometheus.CounterVec
	ShadowEntries  *prometheus.GaugeVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current totals for the JSON stats endpoint
type Snapshot struct {
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	BytesSent        int64 `json:"bytes_sent"`
	BytesReceived    int64 `json:"bytes_received"`
	Errors           int64 `json:"errors"`
	DecodeErrors     int64 `json:"decode_errors"`
	RecordsApplied   int64 `json:"records_applied"`
}

// NewMetrics creates a metrics collector backed by a fresh registry that
// also carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWithRegistry(reg)
}

// NewMetricsWithRegistry creates a metrics collector registered on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// Channel metrics
		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memipc_messages_total",
				Help: "Total number of messages moved through a channel",
			},
			[]string{"channel", "direction", "status"},
		),
		MessageBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memipc_message_size_bytes",
				Help:    "Size of messages moved through a channel",
				Buckets: []float64{16, 64, 256, 1024, 4096, 16384, 65536},
			},
			[]string{"channel", "direction"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memipc_queue_depth",
				Help: "Messages waiting in a queue as reported by the kernel",
			},
			[]string{"channel"},
		),

		// Operation metrics
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memipc_operation_duration_seconds",
				Help:    "Duration of channel operations in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"component", "op"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memipc_operation_errors_total",
				Help: "Total number of failed channel operations",
			},
			[]string{"component", "op", "kind"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memipc_decode_errors_total",
				Help: "Total number of records that failed to decode",
			},
			[]string{"record", "kind"},
		),

		// Shadow table metrics
		RecordsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memipc_records_applied_total",
				Help: "Total number of client records applied to the shadow tables",
			},
			[]string{"action"},
		),
		ShadowEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memipc_shadow_entries",
				Help: "Number of keys held per shadow table",
			},
			[]string{"table"},
		),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memipc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memipc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "memipc_uptime_seconds",
			Help: "Uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordMessage records one message moved through channel.
func (m *Metrics) RecordMessage(channel, direction string, size int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MessagesTotal.WithLabelValues(channel, direction, status).Inc()
	if err != nil {
		m.mu.Lock()
		m.snapshot.Errors++
		m.mu.Unlock()
		return
	}
	m.MessageBytes.WithLabelValues(channel, direction).Observe(float64(size))

	m.mu.Lock()
	if direction == DirectionSent {
		m.snapshot.MessagesSent++
		m.snapshot.BytesSent += int64(size)
	} else {
		m.snapshot.MessagesReceived++
		m.snapshot.BytesReceived += int64(size)
	}
	m.mu.Unlock()
}

// RecordOperation records the duration and outcome of a component operation.
func (m *Metrics) RecordOperation(component, op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(component, op).Observe(duration.Seconds())
	if err != nil {
		m.OperationErrors.WithLabelValues(component, op, ErrorKind(err)).Inc()
	}
}

// RecordDecodeError records a record that failed to decode.
func (m *Metrics) RecordDecodeError(record string, err error) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(record, ErrorKind(err)).Inc()
	m.mu.Lock()
	m.snapshot.DecodeErrors++
	m.mu.Unlock()
}

// SetQueueDepth sets the sampled depth of channel.
func (m *Metrics) SetQueueDepth(channel string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(channel).Set(float64(depth))
}

// RecordApplied records one client record applied to the shadow tables.
func (m *Metrics) RecordApplied(action codec.Action) {
	if m == nil {
		return
	}
	m.RecordsApplied.WithLabelValues(action.String()).Inc()
	m.mu.Lock()
	m.snapshot.RecordsApplied++
	m.mu.Unlock()
}

// SetShadowEntries sets the number of keys held by a shadow table.
func (m *Metrics) SetShadowEntries(table string, n int) {
	if m == nil {
		return
	}
	m.ShadowEntries.WithLabelValues(table).Set(float64(n))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot returns a copy of the running totals.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// ErrorKind maps an error onto a low-cardinality label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, codec.ErrBufferTooShort):
		return "buffer_too_short"
	case errors.Is(err, codec.ErrTruncatedField):
		return "truncated_field"
	case errors.Is(err, codec.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, mq.ErrInvalidName), errors.Is(err, shm.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, mq.ErrOpenFailed), errors.Is(err, shm.ErrOpenFailed):
		return "open_failed"
	case errors.Is(err, mq.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, mq.ErrSendFailed):
		return "send_failed"
	case errors.Is(err, mq.ErrReceiveFailed):
		return "receive_failed"
	case errors.Is(err, mq.ErrCloseFailed):
		return "close_failed"
	case errors.Is(err, mq.ErrUnlinkFailed):
		return "unlink_failed"
	case errors.Is(err, mq.ErrClosed), errors.Is(err, shm.ErrClosed):
		return "closed"
	case errors.Is(err, shm.ErrOutOfRange):
		return "out_of_range"
	default:
		return "other"
	}
}
