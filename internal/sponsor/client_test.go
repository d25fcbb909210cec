package sponsor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"campaignclient/internal/metrics"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSponsorApproved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sponsor", r.URL.Path)

		var req sponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, `{"kind":"submit-response"}`, req.TxSerialized)
		require.Equal(t, "0xb2", req.Sender)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"txBytes":"AAEC","sponsorSignature":"c3Bvbg==","sponsorAddress":"0x5"}`))
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.SponsorRequests.WithLabelValues("approved"))
	sponsored, err := NewClient(server.URL).Sponsor(context.Background(), []byte(`{"kind":"submit-response"}`), "0xb2")
	require.NoError(t, err)
	require.Equal(t, "AAEC", sponsored.TxBytes)
	require.Equal(t, "c3Bvbg==", sponsored.SponsorSignature)
	require.Equal(t, "0x5", sponsored.SponsorAddress)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.SponsorRequests.WithLabelValues("approved")))
}

func TestSponsorRejected(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Daily limit reached","code":"quota_exceeded","remaining":0}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Sponsor(context.Background(), []byte(`{}`), "0xb2")
	var sponsorErr *SponsorError
	require.True(t, errors.As(err, &sponsorErr))
	require.Equal(t, http.StatusTooManyRequests, sponsorErr.StatusCode)
	require.True(t, sponsorErr.QuotaExceeded())
	require.Equal(t, "Daily limit reached", sponsorErr.Message)
	require.NotNil(t, sponsorErr.Remaining)
	require.Equal(t, uint64(0), *sponsorErr.Remaining)
	require.Equal(t, 1, calls)
}

func TestSponsorPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gas station empty", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Sponsor(context.Background(), []byte(`{}`), "0xb2")
	var sponsorErr *SponsorError
	require.True(t, errors.As(err, &sponsorErr))
	require.Equal(t, CodeUnknown, sponsorErr.Code)
	require.Equal(t, "gas station empty", sponsorErr.Message)
	require.Nil(t, sponsorErr.Remaining)
}

func TestSponsorUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url).Sponsor(context.Background(), []byte(`{}`), "0xb2")
	var sponsorErr *SponsorError
	require.True(t, errors.As(err, &sponsorErr))
	require.Equal(t, CodeUnavailable, sponsorErr.Code)
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sponsor/status", r.URL.Path)
		require.Equal(t, "0xb2", r.URL.Query().Get("address"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"limits": {"maxCampaigns": 3, "maxResponses": 20},
			"used": {"campaigns": 3, "responses": 4},
			"remaining": {"campaigns": 0, "responses": 16},
			"canSponsorCampaign": false,
			"canSponsorResponse": true
		}`))
	}))
	defer server.Close()

	status, err := NewClient(server.URL).Status(context.Background(), "0xb2")
	require.NoError(t, err)
	require.Equal(t, "0xb2", status.Address)
	require.Equal(t, uint64(20), status.Limits.MaxResponses)
	require.Equal(t, uint64(16), status.Remaining.Responses)
	require.False(t, status.CanSponsorCampaign)
	require.True(t, status.CanSponsorResponse)
}
