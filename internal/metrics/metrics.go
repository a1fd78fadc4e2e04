// Package metrics exposes Prometheus counters and gauges for sessions,
// transfers, and discovery traffic. Metrics collection is optional: pass a
// nil *Metrics (or call Init only when enabled) for zero overhead, mirroring
// the teacher's "pass nil metrics recorder" pattern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// Init creates and stores the process-wide registry. Calling Init again
// replaces the registry (used by tests that want isolated metrics).
func Init() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Metrics bundles every counter/gauge the daemon exposes. A nil *Metrics is
// safe to call methods on: every method is a no-op when m is nil.
type Metrics struct {
	sessionsAccepted  prometheus.Counter
	sessionsActive    prometheus.Gauge
	sessionsRejected  *prometheus.CounterVec
	framesRead        *prometheus.CounterVec
	framesWritten     *prometheus.CounterVec
	bytesTransferred  *prometheus.CounterVec
	discoveryRequests prometheus.Counter
	discoveryPairings prometheus.Counter
}

// New builds a Metrics bundle registered against the active registry. If
// metrics are not enabled (Init not called), returns nil.
func New() *Metrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &Metrics{
		sessionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dcnntd_sessions_accepted_total",
			Help: "Total number of TCP sessions accepted.",
		}),
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dcnntd_sessions_active",
			Help: "Number of currently active TCP sessions.",
		}),
		sessionsRejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dcnntd_sessions_rejected_total",
			Help: "Total number of TCP sessions rejected during the header phase, by reason.",
		}, []string{"reason"}),
		framesRead: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dcnntd_frames_read_total",
			Help: "Total number of framed records read, by plugin.",
		}, []string{"plugin"}),
		framesWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dcnntd_frames_written_total",
			Help: "Total number of framed records written, by plugin.",
		}, []string{"plugin"}),
		bytesTransferred: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dcnntd_bytes_transferred_total",
			Help: "Total bytes transferred, by plugin and direction.",
		}, []string{"plugin", "direction"}),
		discoveryRequests: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dcnntd_discovery_requests_total",
			Help: "Total number of discovery search datagrams handled.",
		}),
		discoveryPairings: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dcnntd_discovery_pairings_total",
			Help: "Total number of successful pairing handshakes.",
		}),
	}
}

func (m *Metrics) SessionAccepted() {
	if m == nil {
		return
	}
	m.sessionsAccepted.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) SessionRejected(reason string) {
	if m == nil {
		return
	}
	m.sessionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) FrameRead(plugin string) {
	if m == nil {
		return
	}
	m.framesRead.WithLabelValues(plugin).Inc()
}

func (m *Metrics) FrameWritten(plugin string) {
	if m == nil {
		return
	}
	m.framesWritten.WithLabelValues(plugin).Inc()
}

func (m *Metrics) BytesTransferred(plugin, direction string, n int) {
	if m == nil {
		return
	}
	m.bytesTransferred.WithLabelValues(plugin, direction).Add(float64(n))
}

func (m *Metrics) DiscoveryRequest() {
	if m == nil {
		return
	}
	m.discoveryRequests.Inc()
}

func (m *Metrics) DiscoveryPairing() {
	if m == nil {
		return
	}
	m.discoveryPairings.Inc()
}
