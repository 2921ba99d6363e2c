package monitoring

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// ITC metrics
	ITCOps         *prometheus.CounterVec
	ClientRetries  *prometheus.CounterVec
	ServerRequests *prometheus.CounterVec
	ServerDuration *prometheus.HistogramVec

	// Memory metrics
	PageFaults  *prometheus.CounterVec
	MemoryOps   *prometheus.CounterVec
	FramesInUse prometheus.Gauge

	// Thread metrics
	ThreadsLive        prometheus.Gauge
	ThreadsExited      *prometheus.CounterVec
	ServicesRegistered prometheus.Gauge
	ProcessesActive    prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	ITCOps       int64 `json:"itc_ops"`
	Retries      int64 `json:"retries"`
	PageFaults   int64 `json:"page_faults"`
	ServerReqs   int64 `json:"server_requests"`
	ThreadsLive  int64 `json:"threads_live"`
	ThreadsDied  int64 `json:"threads_exited"`
	HTTPRequests int64 `json:"http_requests"`
}

// NewMetrics creates a metrics collector backed by its own registry, so that
// several kernels can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_http_requests_total",
				Help: "Total number of debug API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microkernel_http_request_duration_seconds",
				Help:    "Debug API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		ITCOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_itc_ops_total",
				Help: "Total number of ITC system calls",
			},
			[]string{"op", "result"},
		),
		ClientRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_client_retries_total",
				Help: "Total number of client invoke retries",
			},
			[]string{"service", "reason"},
		),
		ServerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_server_requests_total",
				Help: "Total number of requests handled by servers",
			},
			[]string{"service", "status"},
		),
		ServerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microkernel_server_request_duration_seconds",
				Help:    "Server request handling duration in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"service"},
		),

		PageFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_page_faults_total",
				Help: "Total number of page faults by outcome",
			},
			[]string{"outcome"},
		),
		MemoryOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_memory_ops_total",
				Help: "Total number of memory system calls",
			},
			[]string{"op", "result"},
		),
		FramesInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "microkernel_frames_in_use",
				Help: "Physical frames currently allocated",
			},
		),

		ThreadsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "microkernel_threads_live",
				Help: "Number of live threads",
			},
		),
		ThreadsExited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_threads_exited_total",
				Help: "Total number of thread exits by reason",
			},
			[]string{"reason"},
		),
		ServicesRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "microkernel_services_registered",
				Help: "Number of registered services",
			},
		),
		ProcessesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "microkernel_processes_active",
				Help: "Number of processes tracked by the process manager",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "microkernel_uptime_seconds",
				Help: "Kernel uptime in seconds",
			},
		),
	}
}

// Result maps a system call error to a metric label
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	var errno itc.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	return "error"
}

// RecordHTTPRequest records a debug API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.HTTPRequests++
	m.mu.Unlock()
}

// RecordITC records one messaging system call
func (m *Metrics) RecordITC(op string, err error) {
	m.ITCOps.WithLabelValues(op, Result(err)).Inc()

	m.mu.Lock()
	m.snapshot.ITCOps++
	m.mu.Unlock()
}

// RecordRetry records one client invoke retry
func (m *Metrics) RecordRetry(svc itc.ServiceID, reason string) {
	m.ClientRetries.WithLabelValues(svc.String(), reason).Inc()

	m.mu.Lock()
	m.snapshot.Retries++
	m.mu.Unlock()
}

// RecordServerRequest records a handled server request
func (m *Metrics) RecordServerRequest(svc itc.ServiceID, status string, duration time.Duration) {
	m.ServerRequests.WithLabelValues(svc.String(), status).Inc()
	m.ServerDuration.WithLabelValues(svc.String()).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.ServerReqs++
	m.mu.Unlock()
}

// RecordPageFault records a page fault outcome
func (m *Metrics) RecordPageFault(outcome string) {
	m.PageFaults.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.snapshot.PageFaults++
	m.mu.Unlock()
}

// RecordMemoryOp records a memory system call
func (m *Metrics) RecordMemoryOp(op string, err error) {
	m.MemoryOps.WithLabelValues(op, Result(err)).Inc()
}

// SetFramesInUse sets the allocated frame gauge
func (m *Metrics) SetFramesInUse(n int) {
	m.FramesInUse.Set(float64(n))
}

// IncThreads records a thread start
func (m *Metrics) IncThreads() {
	m.ThreadsLive.Inc()

	m.mu.Lock()
	m.snapshot.ThreadsLive++
	m.mu.Unlock()
}

// ThreadExited records a thread exit
func (m *Metrics) ThreadExited(reason string) {
	m.ThreadsLive.Dec()
	m.ThreadsExited.WithLabelValues(reason).Inc()

	m.mu.Lock()
	m.snapshot.ThreadsLive--
	m.snapshot.ThreadsDied++
	m.mu.Unlock()
}

// SetServicesRegistered sets the registered service gauge
func (m *Metrics) SetServicesRegistered(n int) {
	m.ServicesRegistered.Set(float64(n))
}

// SetProcessesActive sets the process gauge
func (m *Metrics) SetProcessesActive(n int) {
	m.ProcessesActive.Set(float64(n))
}

// UpdateUptime refreshes the uptime gauge
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// GetSnapshot returns the current counter values
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
