package metrics

// Package metrics holds the Prometheus instrumentation for the auth flow.
// All methods are nil-receiver safe so callers can run uninstrumented in
// tests.

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arcadis"

// AuthMetrics counts sign-in attempts and profile lookups by outcome.
type AuthMetrics struct {
	signInAttempts *prometheus.CounterVec
	profileLookups *prometheus.CounterVec
	sessionChanges *prometheus.CounterVec
}

// NewAuthMetrics registers the auth collectors on reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		signInAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "sign_in_attempts_total",
			Help:      "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		profileLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "profile_lookups_total",
			Help:      "Profile lookups by outcome.",
		}, []string{"outcome"}),
		sessionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "session_changes_total",
			Help:      "Identity store session-change events by type.",
		}, []string{"event"}),
	}
	reg.MustRegister(m.signInAttempts, m.profileLookups, m.sessionChanges)
	return m
}

// SignIn records one sign-in attempt.
func (m *AuthMetrics) SignIn(outcome string) {
	if m == nil {
		return
	}
	m.signInAttempts.WithLabelValues(outcome).Inc()
}

// ProfileLookup records one profile lookup.
func (m *AuthMetrics) ProfileLookup(outcome string) {
	if m == nil {
		return
	}
	m.profileLookups.WithLabelValues(outcome).Inc()
}

// SessionChange records one identity store event.
func (m *AuthMetrics) SessionChange(event string) {
	if m == nil {
		return
	}
	m.sessionChanges.WithLabelValues(event).Inc()
}

// NewRegistry builds a registry pre-loaded with process and Go runtime
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
