package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик DDD движка
type Metrics struct {
	// Итерации fixed-point цикла
	IterationsTotal    prometheus.Counter
	TimePointsInserted *prometheus.CounterVec
	IterationDuration  prometheus.Histogram

	// MIP модели
	DesignSolveDuration     *prometheus.HistogramVec
	IdentifySolveDuration   *prometheus.HistogramVec
	DesignObjectiveValue    prometheus.Gauge
	IdentifyObjectiveValue  prometheus.Gauge
	SolverStatusTotal       *prometheus.CounterVec

	// Граф коммодити / preflight
	FeasibilityChecksTotal  *prometheus.CounterVec
	ExpandedGraphNodesTotal prometheus.Gauge
	ExpandedGraphArcsTotal  prometheus.Gauge

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		IterationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ddd_iterations_total",
				Help:      "Total number of DDD fixed-point iterations executed",
			},
		),

		TimePointsInserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ddd_time_points_inserted_total",
				Help:      "Total number of time points inserted by refine()",
			},
			[]string{"node"},
		),

		IterationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ddd_iteration_duration_seconds",
				Help:      "Duration of one DDD fixed-point iteration",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		DesignSolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "design_solve_duration_seconds",
				Help:      "Duration of the design/flow MIP solve",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		IdentifySolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "identify_solve_duration_seconds",
				Help:      "Duration of the identification MIP solve",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		DesignObjectiveValue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "design_objective_value",
				Help:      "Objective value of the last relaxed design MIP solve",
			},
		),

		IdentifyObjectiveValue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "identify_objective_value",
				Help:      "Objective value of the last identification MIP solve",
			},
		),

		SolverStatusTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solver_status_total",
				Help:      "Count of terminal solver statuses observed, by model and status",
			},
			[]string{"model", "status"},
		),

		FeasibilityChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "feasibility_checks_total",
				Help:      "Total number of commodity feasibility preflight checks, by outcome",
			},
			[]string{"outcome"},
		),

		ExpandedGraphNodesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "expanded_graph_nodes_total",
				Help:      "Current number of nodes in the time-expanded graph",
			},
		),

		ExpandedGraphArcsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "expanded_graph_arcs_total",
				Help:      "Current number of arcs in the time-expanded graph",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	// Go runtime health (goroutines, heap, GC pauses) for a long-running
	// DDD solve; collected lazily on each /metrics scrape rather than
	// sampled into a struct field.
	prometheus.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("ddd_snd", "")
	}
	return defaultMetrics
}

// RecordIteration записывает завершение одной итерации DDD цикла.
func (m *Metrics) RecordIteration(duration time.Duration, insertionsByNode map[string]int) {
	m.IterationsTotal.Inc()
	m.IterationDuration.Observe(duration.Seconds())
	for node, count := range insertionsByNode {
		m.TimePointsInserted.WithLabelValues(node).Add(float64(count))
	}
}

// RecordDesignSolve записывает метрики решения design/flow MIP.
func (m *Metrics) RecordDesignSolve(status string, duration time.Duration, objective float64) {
	m.DesignSolveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.DesignObjectiveValue.Set(objective)
	m.SolverStatusTotal.WithLabelValues("design", status).Inc()
}

// RecordIdentifySolve записывает метрики решения identification MIP.
func (m *Metrics) RecordIdentifySolve(status string, duration time.Duration, objective float64) {
	m.IdentifySolveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.IdentifyObjectiveValue.Set(objective)
	m.SolverStatusTotal.WithLabelValues("identify", status).Inc()
}

// RecordFeasibilityCheck записывает результат commodity feasibility preflight.
func (m *Metrics) RecordFeasibilityCheck(outcome string) {
	m.FeasibilityChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordExpandedGraphSize записывает текущий размер time-expanded графа.
func (m *Metrics) RecordExpandedGraphSize(nodes, arcs int) {
	m.ExpandedGraphNodesTotal.Set(float64(nodes))
	m.ExpandedGraphArcsTotal.Set(float64(arcs))
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
