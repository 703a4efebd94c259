package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalculationsTotal counts engine runs by document type and outcome.
	CalculationsTotal *prometheus.CounterVec
	// CalculationPasses counts runs by the number of pipeline passes (2 when a discount was redistributed).
	CalculationPasses *prometheus.CounterVec
	// CalculationDuration records engine latency in milliseconds.
	CalculationDuration prometheus.Histogram
	// CalculationCacheTotal counts result cache lookups.
	CalculationCacheTotal *prometheus.CounterVec
	// TemplateLookupsTotal counts tax template reads.
	TemplateLookupsTotal *prometheus.CounterVec
	// RecalcTasksTotal counts async recalculation task outcomes.
	RecalcTasksTotal *prometheus.CounterVec
	// BreakerState reports breaker state per target: 0 closed, 1 open, 2 half open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitionsTotal counts breaker state changes.
	BreakerTransitionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalculationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Count of document calculations by outcome.",
		}, []string{"doc_type", "result"}))
		CalculationPasses = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculation_passes_total",
			Help:      "Count of calculations by number of pipeline passes.",
		}, []string{"passes"}))
		CalculationDuration = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_ms",
			Help:      "Latency of a single document calculation in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}))
		CalculationCacheTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculation_cache_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}))
		TemplateLookupsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_lookups_total",
			Help:      "Tax template lookups by outcome.",
		}, []string{"result"}))
		RecalcTasksTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalc_tasks_total",
			Help:      "Async recalculation task outcomes.",
		}, []string{"result"}))
		BreakerState = registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open.",
		}, []string{"target"}))
		BreakerTransitionsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions.",
		}, []string{"target", "from", "to"}))
	})
}

// ObserveCalculation records one engine run. It is a no-op until
// MustRegisterDomainMetrics has been called.
func ObserveCalculation(docType, result string, passes int, took time.Duration) {
	if CalculationsTotal == nil {
		return
	}
	CalculationsTotal.WithLabelValues(docType, result).Inc()
	if passes > 0 {
		CalculationPasses.WithLabelValues(passesLabel(passes)).Inc()
	}
	CalculationDuration.Observe(DurationMillis(took))
}

// IncCounter increments a labelled domain counter if it has been registered.
func IncCounter(c *prometheus.CounterVec, labels ...string) {
	if c == nil {
		return
	}
	c.WithLabelValues(labels...).Inc()
}

func passesLabel(passes int) string {
	if passes >= 2 {
		return "2"
	}
	return "1"
}
