package sponsor

import (
	"context"
	"net/http"
	"time"

	"campaignclient/internal/logger"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type sponsorRequest struct {
	TxSerialized string `json:"txSerialized"`
	Sender       string `json:"sender"`
}

// Sponsored is a transaction the sponsor has paid gas for and co-signed.
// TxBytes are the gas-augmented bytes the sender must sign.
type Sponsored struct {
	TxBytes          string `json:"txBytes"`
	SponsorSignature string `json:"sponsorSignature"`
	SponsorAddress   string `json:"sponsorAddress"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) Sponsor(ctx context.Context, txSerialized []byte, sender string) (*Sponsored, error) {
	logger.Debug("requesting sponsorship...", zap.String("sender", sender))

	var out Sponsored
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sponsorRequest{TxSerialized: string(txSerialized), Sender: sender}).
		SetResult(&out).
		Post("/sponsor")
	if err != nil {
		metrics.SponsorRequests.WithLabelValues("unavailable").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &SponsorError{Code: CodeUnavailable, Message: err.Error()}
	}
	if !resp.IsSuccess() {
		sponsorErr := parseError(resp.StatusCode(), resp.Body())
		metrics.SponsorRequests.WithLabelValues("rejected").Inc()
		logger.Warn("sponsorship refused", zap.Int("status", sponsorErr.StatusCode), zap.String("code", sponsorErr.Code))
		return nil, sponsorErr
	}
	if out.TxBytes == "" || out.SponsorSignature == "" {
		metrics.SponsorRequests.WithLabelValues("rejected").Inc()
		return nil, &SponsorError{StatusCode: resp.StatusCode(), Code: CodeUnknown, Message: "sponsor response is missing the transaction or signature"}
	}

	metrics.SponsorRequests.WithLabelValues("approved").Inc()
	logger.Debug("requesting sponsorship... done", zap.String("sponsor", out.SponsorAddress))
	return &out, nil
}

// Status reads the sponsorship quota for address. It is never cached.
func (c *Client) Status(ctx context.Context, address string) (*model.SponsorshipStatus, error) {
	var out model.SponsorshipStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&out).
		Get("/sponsor/status")
	if err != nil {
		return nil, errors.Wrap(err, "read sponsorship status")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, parseError(resp.StatusCode(), resp.Body())
	}
	if out.Address == "" {
		out.Address = address
	}
	return &out, nil
}
