package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		},
	)

	orderRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_rejections_total",
			Help: "Total number of rejected order placements",
		},
		[]string{"reason"},
	)

	productCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_cache_requests_total",
			Help: "Product cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(orderRejectionsTotal)
	prometheus.MustRegister(productCacheRequestsTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderCreated() {
	ordersCreatedTotal.Inc()
}

// RecordOrderRejected counts a failed placement; reason is one of
// product_not_found, insufficient_stock, validation, internal.
func RecordOrderRejected(reason string) {
	orderRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	productCacheRequestsTotal.WithLabelValues(result).Inc()
}
