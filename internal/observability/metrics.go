package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packetsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "battleship",
			Subsystem: "transport",
			Name:      "packets_received_total",
			Help:      "Decoded packets by type.",
		},
		[]string{"type"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "battleship",
			Subsystem: "transport",
			Name:      "framing_errors_total",
			Help:      "Discarded malformed or truncated packets.",
		},
		[]string{"reason"},
	)
	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "battleship",
			Subsystem: "liveness",
			Name:      "probes_total",
			Help:      "Liveness probes by result.",
		},
		[]string{"alive"},
	)
	protocolViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "battleship",
			Subsystem: "game",
			Name:      "protocol_violations_total",
			Help:      "Rejected packets that broke the game protocol.",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "battleship",
			Subsystem: "game",
			Name:      "active_sessions",
			Help:      "Sessions currently running.",
		},
	)
	gamesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "battleship",
			Subsystem: "game",
			Name:      "finished_total",
			Help:      "Finished games by outcome.",
		},
		[]string{"outcome"},
	)
	gameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "battleship",
			Subsystem: "game",
			Name:      "duration_seconds",
			Help:      "Wall time from pairing to teardown.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "battleship",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsReceived,
			framingErrors,
			probes,
			protocolViolations,
			activeSessions,
			gamesFinished,
			gameDuration,
			httpRequests,
		)
	})
}

func RecordPacket(packetType string) {
	RegisterMetrics()
	packetsReceived.WithLabelValues(packetType).Inc()
}

func RecordFramingError(reason string) {
	RegisterMetrics()
	framingErrors.WithLabelValues(reason).Inc()
}

func RecordProbe(alive bool) {
	RegisterMetrics()
	probes.WithLabelValues(strconv.FormatBool(alive)).Inc()
}

func RecordProtocolViolation() {
	RegisterMetrics()
	protocolViolations.Inc()
}

func SessionStarted() {
	RegisterMetrics()
	activeSessions.Inc()
}

func SessionEnded(outcome string, duration time.Duration) {
	RegisterMetrics()
	activeSessions.Dec()
	gamesFinished.WithLabelValues(outcome).Inc()
	gameDuration.Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
