package prometheus

import (
	"errors"
	"net/http"
	"sync"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultPath = "/metrics"
	defaultAddr = "localhost:9180"
)

var (
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	once            sync.Once

	serversMu sync.Mutex
	servers   = map[string]*http.Server{}
)

// Metrics represents prometheus metrics
type Metrics struct {
	addr           string // where to we listen
	path           string
	latencyBuckets []float64
}

// NewMetrics create a new Metrics
func NewMetrics(path, addr string) *Metrics {
	if path == "" {
		path = defaultPath
	}

	if addr == "" {
		addr = defaultAddr
	}

	return &Metrics{
		path: path,
		addr: addr,
	}
}

// define creates and registers the collectors. The first configuration
// wins for the latency buckets
func (m *Metrics) define(reg prometheus.Registerer) {
	once.Do(func() {
		buckets := m.latencyBuckets
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}

		requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dhcp_request_count_total",
			Help: "Counter of DHCP requests handled.",
		}, []string{"network", "request_type", "outcome"})

		requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dhcp_request_duration_seconds",
			Help:    "Histogram of the time (in seconds) each request took.",
			Buckets: buckets,
		}, []string{"network", "request_type", "outcome"})

		reg.MustRegister(requestCount, requestDuration)
	})
}

// start serves the metrics endpoint unless a server is already running
// on the same address
func (m *Metrics) start(gatherer prometheus.Gatherer) error {
	serversMu.Lock()
	defer serversMu.Unlock()

	if _, ok := servers[m.addr]; ok {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: m.addr, Handler: mux}
	servers[m.addr] = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("failed to serve metrics on %s: %s", m.addr, err)
		}
	}()

	return nil
}

func (m *Metrics) stop() error {
	serversMu.Lock()
	defer serversMu.Unlock()

	srv, ok := servers[m.addr]
	if !ok {
		return nil
	}

	delete(servers, m.addr)
	return srv.Close()
}
