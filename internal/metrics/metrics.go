package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	OTPDispatches      *prometheus.CounterVec
	OTPVerifications   *prometheus.CounterVec
	ProfileCompletions *prometheus.CounterVec
	SessionRestores    *prometheus.CounterVec
	FeedbackSubmitted  prometheus.Counter
	MessagesBroadcast  prometheus.Counter
	OpenTickets        prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		OTPDispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarika_otp_dispatches_total",
			Help: "OTP dispatch attempts by result",
		}, []string{"result"}),
		OTPVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarika_otp_verifications_total",
			Help: "OTP verification attempts by result",
		}, []string{"result"}),
		ProfileCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarika_profile_completions_total",
			Help: "Profile completion attempts by role and result",
		}, []string{"role", "result"}),
		SessionRestores: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nagarika_session_restores_total",
			Help: "Session restores by terminal state",
		}, []string{"state"}),
		FeedbackSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "nagarika_feedback_submitted_total",
			Help: "Feedback records accepted",
		}),
		MessagesBroadcast: f.NewCounter(prometheus.CounterOpts{
			Name: "nagarika_messages_broadcast_total",
			Help: "Official messages broadcast",
		}),
		OpenTickets: f.NewGauge(prometheus.GaugeOpts{
			Name: "nagarika_otp_open_tickets",
			Help: "Verification tickets currently held",
		}),
	}
}

func (m *Metrics) OTPDispatched(result string) {
	if m != nil {
		m.OTPDispatches.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) OTPVerified(result string) {
	if m != nil {
		m.OTPVerifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ProfileCompleted(role, result string) {
	if m != nil {
		m.ProfileCompletions.WithLabelValues(role, result).Inc()
	}
}

func (m *Metrics) SessionRestored(state string) {
	if m != nil {
		m.SessionRestores.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncrementFeedback() {
	if m != nil {
		m.FeedbackSubmitted.Inc()
	}
}

func (m *Metrics) IncrementMessages() {
	if m != nil {
		m.MessagesBroadcast.Inc()
	}
}

func (m *Metrics) SetOpenTickets(n int) {
	if m != nil {
		m.OpenTickets.Set(float64(n))
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
