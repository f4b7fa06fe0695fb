package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestsInFlight   *prometheus.GaugeVec
	ResponsesTotal     *prometheus.CounterVec
	ChannelConnections prometheus.Gauge
	ChannelMessages    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_requests_total",
			Help: "total number of executed requests by outcome",
		}, []string{"method", "outcome"}),
		RequestsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transport_requests_in_flight",
			Help: "number of in flight requests",
		}, []string{"method"}),
		ResponsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_responses_total",
			Help: "total number of http responses by status class",
		}, []string{"class"}),
		ChannelConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "channel_connections",
			Help: "number of open message channel connections",
		}),
		ChannelMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_messages_total",
			Help: "total number of message channel messages",
		}, []string{"direction", "type"}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestsInFlight)
	reg.MustRegister(m.ResponsesTotal)
	reg.MustRegister(m.ChannelConnections)
	reg.MustRegister(m.ChannelMessages)
}

func (m *Metrics) Disable(reg prometheus.Registerer) {
	reg.Unregister(m.RequestsTotal)
	reg.Unregister(m.RequestsInFlight)
	reg.Unregister(m.ResponsesTotal)
	reg.Unregister(m.ChannelConnections)
	reg.Unregister(m.ChannelMessages)
}

// StatusClass buckets an HTTP status code, e.g. 404 becomes "4xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", code/100)
}
