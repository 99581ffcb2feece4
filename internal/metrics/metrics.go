package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the solver.
	Registry = prometheus.NewRegistry()

	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nurseroute_generations_total", Help: "Generations completed per island."},
		[]string{"island"},
	)
	BestFitness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "nurseroute_best_fitness", Help: "Best fitness of the current population per island."},
		[]string{"island"},
	)
	MeanFitness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "nurseroute_mean_fitness", Help: "Mean population fitness at the last report."},
		[]string{"island"},
	)
	Restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nurseroute_restarts_total", Help: "Stagnation restarts per island."},
		[]string{"island"},
	)
	// Migrations counts exchanges by whether a migrant came back.
	Migrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nurseroute_migrations_total", Help: "Island migrations by outcome."},
		[]string{"island", "outcome"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nurseroute_fitness_cache_lookups_total", Help: "Fitness cache lookups by result."},
		[]string{"island", "result"},
	)
	PersistedSolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nurseroute_persisted_solutions_total", Help: "New global best solutions written to the store."},
		[]string{"island"},
	)
	EvaluationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "nurseroute_population_evaluation_seconds", Help: "Wall time of one population evaluation pass.", Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10)},
	)

	// HTTPRequests counts status server requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

// RegisterDefault registers collectors to Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Generations, BestFitness, MeanFitness, Restarts, Migrations, CacheLookups, PersistedSolutions, EvaluationSeconds)
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func islandLabel(island int) string { return strconv.Itoa(island) }

// Recorder feeds engine events into the collectors above.
type Recorder struct{}

func (Recorder) Generation(island int, best float64) {
	l := islandLabel(island)
	Generations.WithLabelValues(l).Inc()
	BestFitness.WithLabelValues(l).Set(best)
}

func (Recorder) Restart(island int) { Restarts.WithLabelValues(islandLabel(island)).Inc() }

func (Recorder) Migration(island int, received bool) {
	outcome := "deposited"
	if received {
		outcome = "swapped"
	}
	Migrations.WithLabelValues(islandLabel(island), outcome).Inc()
}

func (Recorder) CacheLookup(island int, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(islandLabel(island), result).Inc()
}

func (Recorder) EvaluationDuration(d time.Duration) { EvaluationSeconds.Observe(d.Seconds()) }

func (Recorder) SolutionPersisted(island int) {
	PersistedSolutions.WithLabelValues(islandLabel(island)).Inc()
}

// ObserveProgress updates the gauges reported with each progress summary.
func ObserveProgress(island int, best, mean float64) {
	l := islandLabel(island)
	BestFitness.WithLabelValues(l).Set(best)
	MeanFitness.WithLabelValues(l).Set(mean)
}

// Middleware records request counts and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
