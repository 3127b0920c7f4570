package metrics

import "github.com/prometheus/client_golang/prometheus"

// SubmissionMetrics exposes counters/histograms for the contact relay.
type SubmissionMetrics struct {
	submissionsTotal *prometheus.CounterVec
	sinkTotal        *prometheus.CounterVec
	outboundLatency  *prometheus.HistogramVec
}

func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	m := &SubmissionMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contact_relay",
			Name:      "submissions_total",
			Help:      "Contact submissions by final result",
		}, []string{"result"}),
		sinkTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contact_relay",
			Name:      "sink_deliveries_total",
			Help:      "Delivery attempts per sink",
		}, []string{"sink", "status"}),
		outboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contact_relay",
			Name:      "outbound_latency_seconds",
			Help:      "Latency of outbound calls to verification, CRM, datastore and notification targets",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.sinkTotal, m.outboundLatency)
	return m
}

// ObserveSubmission counts one finished submission. result is "accepted"
// or the rejection reason.
func (m *SubmissionMetrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(result).Inc()
}

func (m *SubmissionMetrics) ObserveSink(sink string, ok bool) {
	if m == nil {
		return
	}
	status := "failed"
	if ok {
		status = "ok"
	}
	m.sinkTotal.WithLabelValues(sink, status).Inc()
}

func (m *SubmissionMetrics) ObserveLatency(target string, seconds float64) {
	if m == nil {
		return
	}
	m.outboundLatency.WithLabelValues(target).Observe(seconds)
}
