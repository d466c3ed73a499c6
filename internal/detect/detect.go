// Package detect classifies untrusted strings against the SQL injection and
// XSS signature tables.
package detect

import (
	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/metrics"
	"github.com/Wikid82/argus/internal/models"
	"github.com/Wikid82/argus/internal/util"
)

// RequestContext identifies where an inspected value came from.
type RequestContext struct {
	Endpoint  string
	UserAgent string
	IP        string
}

// Complete reports whether every context field is populated.
func (rc RequestContext) Complete() bool {
	return rc.Endpoint != "" && rc.UserAgent != "" && rc.IP != ""
}

// Tracker receives security events. reputation.Store satisfies it.
type Tracker interface {
	TrackSecurityEvent(kind models.EventKind, ip string, details models.EventDetails)
}

// Match returns the first rule of kind matching input. Non-string and empty
// inputs never match.
func Match(kind models.EventKind, input any) (Rule, bool) {
	s, ok := input.(string)
	if !ok || s == "" {
		return Rule{}, false
	}
	for _, r := range rules {
		if r.Kind == kind && r.Pattern.MatchString(s) {
			return r, true
		}
	}
	return Rule{}, false
}

// SQLInjection reports whether input looks like a SQL injection payload.
func SQLInjection(input any) bool {
	_, ok := Match(models.EventSQLInjection, input)
	return ok
}

// XSS reports whether input looks like a cross-site scripting payload.
func XSS(input any) bool {
	_, ok := Match(models.EventXSS, input)
	return ok
}

// Detector is the context-aware variant: on a match with a complete
// RequestContext it reports a SecurityEvent to its Tracker.
type Detector struct {
	tracker Tracker
}

// NewDetector returns a Detector reporting to t. A nil tracker disables reporting.
func NewDetector(t Tracker) *Detector {
	return &Detector{tracker: t}
}

// SQLInjection classifies input and reports a match.
func (d *Detector) SQLInjection(input any, rc RequestContext) bool {
	return d.check(models.EventSQLInjection, input, rc)
}

// XSS classifies input and reports a match.
func (d *Detector) XSS(input any, rc RequestContext) bool {
	return d.check(models.EventXSS, input, rc)
}

func (d *Detector) check(kind models.EventKind, input any, rc RequestContext) bool {
	rule, ok := Match(kind, input)
	if !ok {
		return false
	}
	metrics.IncRuleMatch(rule.ID)
	if d == nil || d.tracker == nil || !rc.Complete() {
		return true
	}

	payload := models.TruncatePayload(input.(string))
	logger.Component("detect").WithFields(map[string]interface{}{
		"rule":     rule.ID,
		"kind":     string(kind),
		"ip":       rc.IP,
		"endpoint": util.SanitizeForLog(rc.Endpoint),
		"payload":  util.SanitizeForLog(payload),
	}).Warn("suspicious input detected")

	d.tracker.TrackSecurityEvent(kind, rc.IP, models.EventDetails{
		Endpoint:  rc.Endpoint,
		UserAgent: rc.UserAgent,
		Payload:   payload,
	})
	return true
}
