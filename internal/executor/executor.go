package executor

import (
	"context"
	"encoding/base64"
	"time"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/decoder"
	"campaignclient/internal/logger"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"
	"campaignclient/internal/signer"
	"campaignclient/internal/sponsor"
	"campaignclient/internal/txbuilder"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultExecuteAttempts = 3
	DefaultExecuteDelay    = time.Second
	DefaultLookupAttempts  = 5
	DefaultLookupDelay     = time.Second

	// DefaultAlreadyRespondedAbort is the abort code submit_response raises
	// for a second response from the same address.
	DefaultAlreadyRespondedAbort uint64 = 2
)

// SponsorService is the gas sponsor: it co-signs transactions and reports
// the caller's remaining quota.
type SponsorService interface {
	Sponsor(ctx context.Context, txSerialized []byte, sender string) (*sponsor.Sponsored, error)
	Status(ctx context.Context, address string) (*model.SponsorshipStatus, error)
}

type Options struct {
	ExecuteAttempts       int
	ExecuteDelay          time.Duration
	LookupAttempts        int
	LookupDelay           time.Duration
	AlreadyRespondedAbort uint64
}

func DefaultOptions() Options {
	return Options{
		ExecuteAttempts:       DefaultExecuteAttempts,
		ExecuteDelay:          DefaultExecuteDelay,
		LookupAttempts:        DefaultLookupAttempts,
		LookupDelay:           DefaultLookupDelay,
		AlreadyRespondedAbort: DefaultAlreadyRespondedAbort,
	}
}

// Result describes a submission. It is returned together with any error so
// the caller can tell how far the submission got.
type Result struct {
	Trail  Trail
	Digest string
	// CampaignID is the created campaign; empty when not a creation or when
	// the lookup timed out, in which case LookupErr is a *LookupTimeout.
	CampaignID string
	LookupErr  error
	Sponsor    string
	Response   *blockchain.TransactionResponse
}

func (r *Result) enter(s State) {
	r.Trail = append(r.Trail, s)
}

// SponsoredExecutor runs the two-signature submission protocol.
type SponsoredExecutor struct {
	ledger  blockchain.Ledger
	sponsor SponsorService
	opts    Options
}

func New(ledger blockchain.Ledger, sponsorService SponsorService, opts Options) *SponsoredExecutor {
	if opts.ExecuteAttempts < 1 {
		opts.ExecuteAttempts = 1
	}
	if opts.LookupAttempts < 1 {
		opts.LookupAttempts = 1
	}
	return &SponsoredExecutor{ledger: ledger, sponsor: sponsorService, opts: opts}
}

func (e *SponsoredExecutor) Execute(ctx context.Context, tx *txbuilder.Transaction, s signer.Signer) (*Result, error) {
	result := &Result{}
	result.enter(StateBuilt)

	sender := s.Address()
	tx.Sender = sender
	serialized, err := tx.Serialize()
	if err != nil {
		return result, err
	}

	logger.Debug("sponsored submission: requesting sponsor...", zap.String("kind", string(tx.Kind)), zap.String("sender", sender))
	result.enter(StateSponsorRequested)
	if err := e.checkQuota(ctx, tx.Kind, sender); err != nil {
		result.enter(StateSponsorRejected)
		return result, err
	}
	sponsored, err := e.sponsor.Sponsor(ctx, serialized, sender)
	if err != nil {
		result.enter(StateSponsorRejected)
		return result, err
	}
	result.enter(StateSponsorApproved)
	result.Sponsor = sponsored.SponsorAddress

	rawBytes, err := base64.StdEncoding.DecodeString(sponsored.TxBytes)
	if err != nil {
		return result, &sponsor.SponsorError{Code: sponsor.CodeUnknown, Message: "sponsor returned transaction bytes that are not base64"}
	}
	result.Digest = blockchain.TransactionDigest(rawBytes)

	logger.Debug("sponsored submission: signing...", zap.String("digest", result.Digest))
	userSignature, err := s.SignTransaction(ctx, sponsored.TxBytes)
	if err != nil {
		if sigErr := signer.Classify(err); sigErr != nil {
			return result, sigErr
		}
		return result, &signer.SignatureError{Kind: signer.Invalid, Err: err}
	}
	result.enter(StateUserSigned)

	signatures := []string{userSignature, sponsored.SponsorSignature}
	resp, err := e.execute(ctx, result.Digest, sponsored.TxBytes, signatures)
	if err != nil {
		return result, err
	}
	result.enter(StateSubmitted)
	result.Response = resp
	if resp.Digest != "" {
		result.Digest = resp.Digest
	}

	if resp.Effects == nil {
		// executed with local wait always reports effects
		result.enter(StateConfirmFailed)
		logger.Warn("sponsored submission: no effects reported", zap.String("digest", result.Digest))
		return result, &ExecutionError{Digest: result.Digest, Unknown: true, Err: errors.New("execution response carries no effects")}
	}
	if !resp.Succeeded() {
		result.enter(StateConfirmFailed)
		return result, e.failure(tx, result.Digest, resp.Effects.Status.Error)
	}
	result.enter(StateConfirmed)
	logger.Info("sponsored submission: confirmed", zap.String("kind", string(tx.Kind)), zap.String("digest", result.Digest))

	if tx.Kind == txbuilder.KindCreateCampaign {
		id, lookupErr := e.ResolveCreatedID(ctx, result.Digest, resp.ObjectChanges)
		result.CampaignID = id
		result.LookupErr = lookupErr
	}
	return result, nil
}

// checkQuota reads the sponsorship status fresh and refuses when the quota
// for this kind of transaction is used up.
func (e *SponsoredExecutor) checkQuota(ctx context.Context, kind txbuilder.Kind, sender string) error {
	status, err := e.sponsor.Status(ctx, sender)
	if err != nil {
		var sponsorErr *sponsor.SponsorError
		if errors.As(err, &sponsorErr) {
			return sponsorErr
		}
		return &sponsor.SponsorError{Code: sponsor.CodeUnavailable, Message: err.Error()}
	}

	allowed, remaining := status.CanSponsorResponse, status.Remaining.Responses
	if kind == txbuilder.KindCreateCampaign {
		allowed, remaining = status.CanSponsorCampaign, status.Remaining.Campaigns
	}
	if allowed {
		return nil
	}
	metrics.SponsorRequests.WithLabelValues("quota_exceeded").Inc()
	return &sponsor.SponsorError{
		Code:      sponsor.CodeQuotaExceeded,
		Message:   "sponsorship quota for " + string(kind) + " is used up",
		Remaining: &remaining,
	}
}

// execute submits the signed bytes, repeating only the execution call on
// transport failures. Signatures are reused as they are.
func (e *SponsoredExecutor) execute(ctx context.Context, digest, txBytes string, signatures []string) (*blockchain.TransactionResponse, error) {
	var resp *blockchain.TransactionResponse
	attempt := 0
	op := func() error {
		attempt++
		r, err := e.ledger.ExecuteTransactionBlock(ctx, txBytes, signatures)
		if err == nil {
			metrics.ExecuteAttempts.WithLabelValues("accepted").Inc()
			resp = r
			return nil
		}
		if sigErr := signer.Classify(err); sigErr != nil && sigErr.NeedsReauthentication() {
			metrics.ExecuteAttempts.WithLabelValues("rejected").Inc()
			return backoff.Permanent(sigErr)
		}
		if !blockchain.IsTransportError(err) {
			metrics.ExecuteAttempts.WithLabelValues("rejected").Inc()
			return backoff.Permanent(&ExecutionError{Digest: digest, Err: err})
		}
		metrics.ExecuteAttempts.WithLabelValues("transport_error").Inc()
		logger.Warn("sponsored submission: execution failed, retrying",
			zap.String("digest", digest), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.opts.ExecuteDelay), uint64(e.opts.ExecuteAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		var execErr *ExecutionError
		var sigErr *signer.SignatureError
		if errors.As(err, &execErr) || errors.As(err, &sigErr) {
			return nil, err
		}
		return nil, &ExecutionError{Digest: digest, Unknown: true, Err: err}
	}
	return resp, nil
}

func (e *SponsoredExecutor) failure(tx *txbuilder.Transaction, digest, status string) *ExecutionError {
	execErr := &ExecutionError{Digest: digest, Executed: true, Status: status}
	execErr.Function, execErr.AbortCode = parseMoveAbort(status)
	if tx.Kind == txbuilder.KindSubmitResponse && execErr.AbortCode != nil &&
		*execErr.AbortCode == e.opts.AlreadyRespondedAbort {
		execErr.AlreadyResponded = true
	}
	logger.Warn("sponsored submission: execution failed", zap.String("digest", digest), zap.String("status", status))
	return execErr
}

// ResolveCreatedID finds the campaign created by digest, first in the object
// changes reported by execution, then by fetching the transaction up to
// LookupAttempts times with LookupDelay between calls. When it gives up it
// returns an empty id and a *LookupTimeout.
func (e *SponsoredExecutor) ResolveCreatedID(ctx context.Context, digest string, changes []blockchain.ObjectChange) (string, error) {
	if id, ok := blockchain.CreatedObjectOfType(changes, decoder.CampaignTypeSuffix); ok {
		return id, nil
	}

	logger.Debug("resolving created campaign...", zap.String("digest", digest))
	var id string
	var lastErr error
	attempts := 0
	op := func() error {
		attempts++
		resp, err := e.ledger.GetTransactionBlock(ctx, digest)
		if err != nil {
			metrics.LookupAttempts.WithLabelValues("error").Inc()
			lastErr = err
			return err
		}
		found, ok := blockchain.CreatedObjectOfType(resp.ObjectChanges, decoder.CampaignTypeSuffix)
		if !ok {
			metrics.LookupAttempts.WithLabelValues("miss").Inc()
			lastErr = nil
			return errors.New("created campaign not indexed yet")
		}
		metrics.LookupAttempts.WithLabelValues("resolved").Inc()
		id = found
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.opts.LookupDelay), uint64(e.opts.LookupAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if lastErr == nil && ctx.Err() != nil {
			lastErr = ctx.Err()
		}
		logger.Warn("resolving created campaign... gave up", zap.String("digest", digest), zap.Int("attempts", attempts))
		return "", &LookupTimeout{Digest: digest, Attempts: attempts, Err: lastErr}
	}

	logger.Debug("resolving created campaign... done", zap.String("campaign", id))
	return id, nil
}
