package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var httpLabels = []string{"code", "method", "route"}

var (
	metricRequests = &Metric{
		Name:        "http_requests_total",
		Description: "HTTP requests served, partitioned by status code, method and route.",
		Type:        "counter_vec",
		Args:        httpLabels,
	}
	metricRequestDuration = &Metric{
		Name:        "http_request_duration_ms",
		Description: "HTTP request latency in milliseconds.",
		Type:        "histogram_vec",
		Args:        httpLabels,
	}
	metricRequestSize = &Metric{
		Name:        "http_request_size_bytes",
		Description: "Approximate HTTP request size in bytes.",
		Type:        "summary_vec",
		Args:        httpLabels,
	}
	metricResponseSize = &Metric{
		Name:        "http_response_size_bytes",
		Description: "HTTP response body size in bytes.",
		Type:        "summary_vec",
		Args:        httpLabels,
	}
)

const defaultMetricsPath = "/metrics"

// RouteLabelFn maps a request to the route label. It keeps the label
// cardinality bounded, e.g. by returning the matched route template.
type RouteLabelFn func(c *gin.Context) string

// Prometheus records per-request HTTP metrics and serves the scrape endpoint.
type Prometheus struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec

	metricsPath string
	routeLabel  RouteLabelFn
	gatherer    prometheus.Gatherer
	logger      *zap.SugaredLogger

	// router serves the scrape endpoint on its own address when set.
	router        *gin.Engine
	listenAddress string
}

type NewPrometheusOptions struct {
	// Subsystem defaults to Subsystem.
	Subsystem   string
	MetricsPath string
	RouteLabel  RouteLabelFn
	Logger      *zap.SugaredLogger
	// Registry defaults to prometheus.DefaultRegisterer / DefaultGatherer.
	Registry *prometheus.Registry
}

func NewPrometheus(opts NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		metricsPath: opts.MetricsPath,
		routeLabel:  opts.RouteLabel,
		gatherer:    prometheus.DefaultGatherer,
		logger:      opts.Logger,
	}
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	if opts.Registry != nil {
		reg = opts.Registry
		p.gatherer = opts.Registry
	}
	if p.metricsPath == "" {
		p.metricsPath = defaultMetricsPath
	}
	if p.routeLabel == nil {
		p.routeLabel = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return "unmatched"
		}
	}
	if p.logger == nil {
		p.logger = zap.NewNop().Sugar()
	}
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = Subsystem
	}

	p.requests = registerIn(reg, p.logger, metricRequests, subsystem).(*prometheus.CounterVec)
	p.duration = registerIn(reg, p.logger, metricRequestDuration, subsystem).(*prometheus.HistogramVec)
	p.reqSz = registerIn(reg, p.logger, metricRequestSize, subsystem).(*prometheus.SummaryVec)
	p.resSz = registerIn(reg, p.logger, metricResponseSize, subsystem).(*prometheus.SummaryVec)
	return p
}

// SetListenAddress moves the scrape endpoint to its own listener so it stays
// out of the API access log.
func (p *Prometheus) SetListenAddress(address string) {
	p.listenAddress = address
	if address != "" {
		p.router = gin.New()
		p.router.Use(gin.Recovery())
	}
}

// Use adds the middleware to e and mounts the scrape endpoint.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	if p.listenAddress == "" {
		e.GET(p.metricsPath, p.handler())
		return
	}
	p.router.GET(p.metricsPath, p.handler())
	go func() {
		if err := p.router.Run(p.listenAddress); err != nil {
			p.logger.Errorw("metrics_server_stopped", "addr", p.listenAddress, "err", err)
		}
	}()
}

func (p *Prometheus) handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// HandlerFunc records one observation per request.
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.metricsPath {
			c.Next()
			return
		}

		start := time.Now()
		reqSz := computeApproximateRequestSize(c.Request)

		c.Next()

		labels := []string{strconv.Itoa(c.Writer.Status()), c.Request.Method, p.routeLabel(c)}
		p.duration.WithLabelValues(labels...).Observe(MillisecondsSince(start))
		p.requests.WithLabelValues(labels...).Inc()
		p.reqSz.WithLabelValues(labels...).Observe(float64(reqSz))
		p.resSz.WithLabelValues(labels...).Observe(float64(max(c.Writer.Size(), 0)))
	}
}
