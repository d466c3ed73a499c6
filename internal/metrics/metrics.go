package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsInspectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_requests_inspected_total",
		Help: "Total number of requests evaluated by the security gate",
	})
	requestsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argus_requests_rejected_total",
		Help: "Total number of requests rejected by the security gate, by error code",
	}, []string{"code"})
	securityEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argus_security_events_total",
		Help: "Total number of security events tracked, by kind",
	}, []string{"kind"})
	ruleMatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argus_rule_matches_total",
		Help: "Total number of signature matches, by rule id",
	}, []string{"rule"})
	ipBlocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argus_ip_blocks_total",
		Help: "Total number of IP blocks created, by source (escalation, manual)",
	}, []string{"source"})
	sinkDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "argus_event_sink_dropped_total",
		Help: "Total number of events or blocks dropped because the alert queue was full",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry prometheus.Registerer) {
	registry.MustRegister(
		requestsInspectedTotal,
		requestsRejectedTotal,
		securityEventsTotal,
		ruleMatchesTotal,
		ipBlocksTotal,
		sinkDroppedTotal,
	)
}

// IncInspected increments the evaluated requests counter.
func IncInspected() { requestsInspectedTotal.Inc() }

// IncRejected increments the rejected requests counter for code.
func IncRejected(code string) { requestsRejectedTotal.WithLabelValues(code).Inc() }

// IncSecurityEvent increments the tracked events counter for kind.
func IncSecurityEvent(kind string) { securityEventsTotal.WithLabelValues(kind).Inc() }

// IncRuleMatch increments the signature match counter for rule.
func IncRuleMatch(rule string) { ruleMatchesTotal.WithLabelValues(rule).Inc() }

// IncBlock increments the created blocks counter for source.
func IncBlock(source string) { ipBlocksTotal.WithLabelValues(source).Inc() }

// IncSinkDropped increments the dropped alert counter.
func IncSinkDropped() { sinkDroppedTotal.Inc() }
