package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	before := testutil.ToFloat64(requestsRejectedTotal.WithLabelValues("RATE_LIMITED"))
	IncRejected("RATE_LIMITED")
	assert.Equal(t, before+1, testutil.ToFloat64(requestsRejectedTotal.WithLabelValues("RATE_LIMITED")))

	IncInspected()
	IncSecurityEvent("XSS")
	IncRuleMatch("xss-script-tag")
	IncBlock("manual")
	IncSinkDropped()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["argus_requests_inspected_total"])
	assert.True(t, names["argus_ip_blocks_total"])
	assert.True(t, names["argus_event_sink_dropped_total"])
}
