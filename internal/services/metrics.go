package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the recommender service. The registry is owned by
// the caller; the engine itself exposes no network surface.
type Metrics struct {
	predictRequests   *prometheus.CounterVec
	recommendRequests *prometheus.CounterVec
	recommendLatency  prometheus.Histogram
	fitDuration       prometheus.Histogram
	activeModelAge    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		predictRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelsense_predict_requests_total",
			Help: "Total predict calls by outcome",
		}, []string{"status"}),
		recommendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelsense_recommend_requests_total",
			Help: "Total recommend calls by outcome",
		}, []string{"status"}),
		recommendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelsense_recommend_duration_seconds",
			Help:    "Recommendation latency",
			Buckets: prometheus.DefBuckets,
		}),
		fitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelsense_fit_duration_seconds",
			Help:    "Model fit duration",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		activeModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelsense_active_model_age_seconds",
			Help: "Age of the active model bundle at last publication",
		}),
	}
}
