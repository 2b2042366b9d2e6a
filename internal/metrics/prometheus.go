package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusObserver struct {
	requests    *prometheus.SummaryVec
	refreshes   *prometheus.CounterVec
	queued      prometheus.Gauge
	sessionEnds *prometheus.CounterVec
}

var (
	requestSummary = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "botadmin_client_request_duration_seconds",
		Help: "Duration of API requests issued by the admin client.",
	}, []string{"method", "status"})
	refreshCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botadmin_client_refresh_total",
		Help: "Token refresh cycles by outcome.",
	}, []string{"outcome"})
	queuedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "botadmin_client_refresh_waiters",
		Help: "Requests waiting for an in-flight token refresh.",
	})
	sessionEndCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botadmin_client_session_terminated_total",
		Help: "Sessions torn down after a terminal authentication failure.",
	}, []string{"reason"})
)

func NewPrometheusObserver() ClientObserver {
	return &prometheusObserver{
		requests:    requestSummary,
		refreshes:   refreshCounter,
		queued:      queuedGauge,
		sessionEnds: sessionEndCounter,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) ObserveRequest(method string, status int, duration float64) {
	p.requests.WithLabelValues(method, strconv.Itoa(status)).Observe(duration)
}
func (p *prometheusObserver) RecordRefresh(outcome string) {
	p.refreshes.WithLabelValues(outcome).Inc()
}
func (p *prometheusObserver) IncQueued() {
	p.queued.Inc()
}
func (p *prometheusObserver) DecQueued() {
	p.queued.Dec()
}
func (p *prometheusObserver) RecordSessionEnd(reason string) {
	p.sessionEnds.WithLabelValues(reason).Inc()
}
