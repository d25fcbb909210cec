package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreRegistered(t *testing.T) {
	SponsorRequests.WithLabelValues("approved").Inc()
	ExecuteAttempts.WithLabelValues("ok").Inc()
	LookupAttempts.WithLabelValues("found").Inc()
	DecodeFailures.WithLabelValues("campaign").Inc()
	Recoveries.WithLabelValues("plain").Inc()
	TrackerRefreshes.WithLabelValues("ok").Inc()

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"campaign_sponsor_requests_total",
		"campaign_execute_attempts_total",
		"campaign_lookup_attempts_total",
		"campaign_decode_failures_total",
		"campaign_recovery_total",
		"campaign_tracker_refreshes_total",
	} {
		require.True(t, names[name], name)
	}
}

func TestCountersAreLabelled(t *testing.T) {
	before := testutil.ToFloat64(Recoveries.WithLabelValues("creator"))
	Recoveries.WithLabelValues("creator").Inc()
	Recoveries.WithLabelValues("respondent").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(Recoveries.WithLabelValues("creator")))
}
