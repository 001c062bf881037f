package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pinge_ws_connections",
		Help: "Current number of active websocket connections",
	})
	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pinge_events_delivered_total",
		Help: "Total number of live events delivered to connections",
	})
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pinge_events_dropped_total",
		Help: "Total number of live events dropped on slow or dead connections",
	})
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pinge_messages_total",
		Help: "Total number of persisted chat messages",
	}, []string{"type"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, EventsDelivered, EventsDropped, MessagesTotal, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware records request counts and latency for Prometheus.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
