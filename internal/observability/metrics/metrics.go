package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	metricPrefix = "statusboard_"

	resultSuccess = "success"
	resultError   = "error"

	publishNotified  = "notified"
	publishUnchanged = "unchanged"
	publishRejected  = "rejected"
)

var (
	registerOnce sync.Once

	publishTotal   *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	deleteTotal    *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec

	registrationTotal *prometheus.CounterVec

	activeSubscribers *prometheus.GaugeVec

	alertsTotal *prometheus.CounterVec

	producerPolls   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec

	httpRequests *prometheus.HistogramVec

	exportTotal *prometheus.CounterVec

	broadcastDrops prometheus.Counter
)

// CacheCounter reports how many events are currently cached.
type CacheCounter func(ctx context.Context) (int, error)

// Init registers collectors. A non-nil counter also exposes the cache size gauge.
func Init(counter CacheCounter, logger logrus.FieldLogger) {
	registerOnce.Do(func() {
		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_total",
				Help: "Total publish attempts by outcome",
			},
			[]string{"outcome"},
		)
		publishLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "publish_latency_seconds",
				Help:    "Publish latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		deleteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "delete_total",
				Help: "Total delete operations by result",
			},
			[]string{"result"},
		)
		storeErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_errors_total",
				Help: "Total store failures by operation",
			},
			[]string{"op"},
		)
		registrationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registration_total",
				Help: "Total registration attempts by result",
			},
			[]string{"result"},
		)
		activeSubscribers = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_subscribers",
				Help: "Currently connected subscribers by transport",
			},
			[]string{"transport"},
		)
		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alert deliveries by result",
			},
			[]string{"result"},
		)
		producerPolls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "producer_polls_total",
				Help: "Total producer poll runs by producer and result",
			},
			[]string{"producer", "result"},
		)
		producerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "producer_poll_latency_seconds",
				Help:    "Producer poll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"producer"},
		)
		httpRequests = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total snapshot exports by format and result",
			},
			[]string{"format", "result"},
		)

		broadcastDrops = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_drops_total",
				Help: "Broadcasts dropped because a subscriber stopped reading",
			},
		)

		prometheus.MustRegister(
			publishTotal,
			publishLatency,
			deleteTotal,
			storeErrors,
			registrationTotal,
			activeSubscribers,
			alertsTotal,
			producerPolls,
			producerLatency,
			httpRequests,
			exportTotal,
			broadcastDrops,
		)

		if counter != nil {
			registerCacheMetrics(counter, logger)
		}
	})
}

func registerCacheMetrics(counter CacheCounter, logger logrus.FieldLogger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "cached_events",
			Help: "Events currently held in the cache",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			count, err := counter(ctx)
			if err != nil {
				if logger != nil {
					logger.Warnf("metrics cache count failed: %v", err)
				}
				return 0
			}
			return float64(count)
		},
	))
}

// ObservePublish records one publish and its outcome.
func ObservePublish(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = publishNotified
	}
	result := resultSuccess
	if outcome == resultError {
		result = resultError
	}
	if publishTotal != nil {
		publishTotal.WithLabelValues(outcome).Inc()
	}
	if publishLatency != nil {
		publishLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncDelete counts a delete by result.
func IncDelete(result string) {
	if result == "" {
		result = resultSuccess
	}
	if deleteTotal != nil {
		deleteTotal.WithLabelValues(result).Inc()
	}
}

// IncStoreError counts a failed store operation.
func IncStoreError(op string) {
	if op == "" {
		op = "unknown"
	}
	if storeErrors != nil {
		storeErrors.WithLabelValues(op).Inc()
	}
}

// IncRegistration counts a registration attempt by result.
func IncRegistration(result string) {
	if result == "" {
		result = resultSuccess
	}
	if registrationTotal != nil {
		registrationTotal.WithLabelValues(result).Inc()
	}
}

// AddSubscribers adjusts the connected subscriber gauge.
func AddSubscribers(transport string, delta int) {
	if transport == "" {
		transport = "unknown"
	}
	if activeSubscribers != nil {
		activeSubscribers.WithLabelValues(transport).Add(float64(delta))
	}
}

// IncAlert counts an alert delivery by result.
func IncAlert(result string) {
	if result == "" {
		result = resultSuccess
	}
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveProducerPoll records a producer run.
func ObserveProducerPoll(producer, result string, duration time.Duration) {
	if producer == "" {
		producer = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if producerPolls != nil {
		producerPolls.WithLabelValues(producer, result).Inc()
	}
	if producerLatency != nil {
		producerLatency.WithLabelValues(producer).Observe(duration.Seconds())
	}
}

// ObserveHTTP records an HTTP request.
func ObserveHTTP(route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, statusClass(status)).Observe(duration.Seconds())
	}
}

// IncExport counts a snapshot export.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// IncBroadcastDrop counts a broadcast that a stalled subscriber never received.
func IncBroadcastDrop() {
	if broadcastDrops != nil {
		broadcastDrops.Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	PublishNotified  = publishNotified
	PublishUnchanged = publishUnchanged
	PublishRejected  = publishRejected
)
