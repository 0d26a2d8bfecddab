// Package metrics exposes Prometheus collectors for account operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Recorder is what the service layer reports to.
type Recorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordPasswordChange(outcome string)
	RecordFeedback(outcome string)
	ObserveHashDuration(d time.Duration)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	registrations   *prometheus.CounterVec
	logins          *prometheus.CounterVec
	passwordChanges *prometheus.CounterVec
	feedback        *prometheus.CounterVec
	hashDuration    prometheus.Histogram
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iserve_registrations_total",
			Help: "Account registrations by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iserve_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		passwordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iserve_password_changes_total",
			Help: "Password changes by outcome.",
		}, []string{"outcome"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iserve_feedback_emails_total",
			Help: "Feedback emails by outcome.",
		}, []string{"outcome"}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "iserve_password_hash_seconds",
			Help:    "Time spent hashing or verifying passwords.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	reg.MustRegister(c.registrations, c.logins, c.passwordChanges, c.feedback, c.hashDuration)
	return c
}

func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordPasswordChange(outcome string) {
	c.passwordChanges.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordFeedback(outcome string) {
	c.feedback.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveHashDuration(d time.Duration) {
	c.hashDuration.Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRegistration(string)         {}
func (Nop) RecordLogin(string)                {}
func (Nop) RecordPasswordChange(string)       {}
func (Nop) RecordFeedback(string)             {}
func (Nop) ObserveHashDuration(time.Duration) {}
