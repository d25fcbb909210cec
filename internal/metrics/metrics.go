package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector of the client; cmd/campaignctl exposes it.
var Registry = prometheus.NewRegistry()

var (
	SponsorRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sponsor_requests_total",
		Help: "Sponsor service round-trips by outcome.",
	}, []string{"outcome"})

	ExecuteAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_execute_attempts_total",
		Help: "Transaction execution calls by outcome.",
	}, []string{"outcome"})

	LookupAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_lookup_attempts_total",
		Help: "Post-submission transaction lookups by outcome.",
	}, []string{"outcome"})

	DecodeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_decode_failures_total",
		Help: "Ledger objects skipped because they could not be decoded.",
	}, []string{"kind"})

	Recoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_recovery_total",
		Help: "Auto-recovery runs by outcome.",
	}, []string{"outcome"})

	TrackerRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_tracker_refreshes_total",
		Help: "Poller ticks by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(SponsorRequests, ExecuteAttempts, LookupAttempts, DecodeFailures, Recoveries, TrackerRefreshes)
}
