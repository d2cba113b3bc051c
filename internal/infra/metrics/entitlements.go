package metrics

import (
	"errors"
	"time"

	"applyassist/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		refreshTotal,
		purchasesTotal,
		restoresTotal,
		pushUpdatesTotal,
		planResolutionFailures,
		configured,
		operationSeconds,
	)
}

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_refresh_total",
			Help: "Customer info + offerings refreshes by result.",
		},
		[]string{"result"},
	)

	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_purchases_total",
			Help: "Purchase attempts by plan and result.",
		},
		[]string{"plan", "result"},
	)

	restoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_restores_total",
			Help: "Restore attempts by result.",
		},
		[]string{"result"},
	)

	pushUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entitlement_push_updates_total",
			Help: "Customer snapshots pushed by the purchase backend.",
		},
	)

	planResolutionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_plan_resolution_failures_total",
			Help: "Plans that could not be mapped to a package.",
		},
		[]string{"plan"},
	)

	configured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "entitlement_configured",
			Help: "1 once the purchase backend has been configured.",
		},
	)

	operationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitlement_operation_seconds",
			Help:    "Latency of coordinator operations.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// Result maps an operation error onto a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, domain.ErrCancelledByUser):
		return "cancelled"
	case errors.Is(err, domain.ErrPlanNotFound):
		return "plan_not_found"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, domain.ErrUnsupportedEnvironment):
		return "unsupported"
	default:
		return "failed"
	}
}

func ObserveRefresh(err error) { refreshTotal.WithLabelValues(Result(err)).Inc() }

func ObservePurchase(plan string, err error) {
	purchasesTotal.WithLabelValues(norm(plan), Result(err)).Inc()
}

func ObserveRestore(err error) { restoresTotal.WithLabelValues(Result(err)).Inc() }

func IncPushUpdate() { pushUpdatesTotal.Inc() }

func IncPlanResolutionFailure(plan string) {
	planResolutionFailures.WithLabelValues(norm(plan)).Inc()
}

func SetConfigured(ok bool) {
	if ok {
		configured.Set(1)
		return
	}
	configured.Set(0)
}

// ObserveDuration is meant to be deferred: defer metrics.ObserveDuration("refresh", time.Now())
func ObserveDuration(operation string, start time.Time) {
	operationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
