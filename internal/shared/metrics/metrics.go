package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the service exposes.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	evaluationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_evaluations_total",
		Help: "Context evaluations by outcome",
	}, []string{"outcome"})

	ruleFailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_rule_failures_total",
		Help: "Rules that failed during evaluation, by failure kind",
	}, []string{"kind"})

	plansTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_plans_total",
		Help: "Checklist plans by outcome",
	}, []string{"outcome"})

	duration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scoping_duration_seconds",
		Help:    "Evaluation and planning duration",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})

	cacheRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_cache_requests_total",
		Help: "Decision cache lookups by result",
	}, []string{"result"})

	catalogReloadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_catalog_reloads_total",
		Help: "Catalog reload attempts by outcome",
	}, []string{"outcome"})

	httpRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_http_requests_total",
		Help: "HTTP requests by route and status class",
	}, []string{"route", "status"})

	panicsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "scoping_http_panics_total",
		Help: "Handler panics recovered by route",
	}, []string{"route"})

	catalogRules = factory.NewGauge(prometheus.GaugeOpts{
		Name: "scoping_catalog_rules",
		Help: "Rules in the active catalog",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Outcome labels shared by the counters above.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomePlanning  = "planning_error"
	OutcomeBudget    = "budget_exceeded"
	OutcomeCanceled  = "canceled"
	OutcomeError     = "error"
	OutcomeSwapped   = "swapped"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// IncEvaluation counts one evaluation with the given outcome.
func IncEvaluation(outcome string) {
	evaluationsTotal.WithLabelValues(outcome).Inc()
}

// AddRuleFailures counts rule failures of one kind.
func AddRuleFailures(kind string, n int) {
	if n <= 0 {
		return
	}
	ruleFailuresTotal.WithLabelValues(kind).Add(float64(n))
}

// IncPlan counts one planning run with the given outcome.
func IncPlan(outcome string) {
	plansTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records how long an operation took.
func ObserveDuration(operation string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	duration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncCache counts a cache lookup: hit, miss or error.
func IncCache(result string) {
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// IncCatalogReload counts a reload attempt.
func IncCatalogReload(outcome string) {
	catalogReloadsTotal.WithLabelValues(outcome).Inc()
}

// SetCatalogRules records the size of the active catalog.
func SetCatalogRules(n int) {
	catalogRules.Set(float64(n))
}

// IncHTTPRequest counts one served request. Status is bucketed by class
// (2xx, 4xx, ...) to keep label cardinality bounded.
func IncHTTPRequest(route string, status int) {
	httpRequestsTotal.WithLabelValues(routeLabel(route), strconv.Itoa(status/100)+"xx").Inc()
}

// IncPanic counts one recovered panic.
func IncPanic(route string) {
	panicsTotal.WithLabelValues(routeLabel(route)).Inc()
}

func routeLabel(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
