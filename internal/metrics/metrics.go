// Package metrics defines all Prometheus metrics for athena-dhcpc.
// All metrics use the "athena_dhcpc_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "athena_dhcpc"

// --- Protocol Metrics ---

var (
	// MessagesSent counts DHCP messages the client transmitted, by type.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Total DHCP messages sent, by message type.",
	}, []string{"msg_type"})

	// RepliesAccepted counts server replies that passed the xid/port gate.
	RepliesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_accepted_total",
		Help:      "Total server replies accepted, by message type.",
	}, []string{"msg_type"})

	// SendErrors counts transport failures while transmitting a message.
	SendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "send_errors_total",
		Help:      "Total transport errors while sending DHCP messages.",
	})
)

// --- State Machine Metrics ---

var (
	// StateTransitions counts lease state machine transitions.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Total lease state machine transitions.",
	}, []string{"from", "to"})

	// Timeouts counts per-state timeouts that restarted the negotiation.
	Timeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timeouts_total",
		Help:      "Total negotiation timeouts, by the state that timed out.",
	}, []string{"state"})

	// Binds counts successful lease acquisitions and renewals.
	Binds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "binds_total",
		Help:      "Total successful lease bindings (acquisitions and renewals).",
	})

	// LeaseSeconds is the duration of the current lease, 0 when unbound
	// and -1 for an infinite lease.
	LeaseSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lease_seconds",
		Help:      "Duration of the current lease in seconds (-1 = infinite).",
	})
)

// --- Event Bus Metrics ---

var (
	// EventsPublished counts events published to the bus, by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total events published to the event bus, by type.",
	}, []string{"event_type"})

	// EventBufferDrops counts events dropped because the bus buffer was full.
	EventBufferDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_buffer_drops_total",
		Help:      "Total events dropped due to a full event bus buffer.",
	})
)

// --- Hook Metrics ---

var (
	// HookExecutions counts script hook runs, by result.
	HookExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_executions_total",
		Help:      "Total script hook executions, by result.",
	}, []string{"result"})

	// HookDuration tracks script hook wall time.
	HookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "hook_duration_seconds",
		Help:      "Wall time of script hook executions in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 30.0},
	})
)

// --- Post-Bind Check Metrics ---

var (
	// DNSCheckDuration tracks latency of post-bind DNS verification queries.
	DNSCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dns_check_duration_seconds",
		Help:      "Latency of post-bind DNS verification queries in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 3.0},
	})

	// DNSCheckFailures counts failed post-bind DNS verifications.
	DNSCheckFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dns_check_failures_total",
		Help:      "Total failed post-bind DNS verification queries.",
	})

	// GatewayProbes counts post-bind gateway reachability probes, by result.
	GatewayProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_probes_total",
		Help:      "Total post-bind gateway reachability probes, by result.",
	}, []string{"result"})
)
