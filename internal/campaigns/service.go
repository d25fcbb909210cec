package campaigns

import (
	"context"
	"time"

	"campaignclient/internal/crypto"
	"campaignclient/internal/executor"
	"campaignclient/internal/logger"
	"campaignclient/internal/model"
	"campaignclient/internal/recovery"
	"campaignclient/internal/results"
	"campaignclient/internal/signer"
	"campaignclient/internal/storage"
	"campaignclient/internal/txbuilder"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type CampaignReader interface {
	Campaign(ctx context.Context, id string) (*model.Campaign, error)
	CampaignsByCreator(ctx context.Context, creator string) ([]*model.Campaign, error)
	ResponseDigests(ctx context.Context, c *model.Campaign) (results.Attribution, error)
}

type Submitter interface {
	Execute(ctx context.Context, tx *txbuilder.Transaction, s signer.Signer) (*executor.Result, error)
}

type SponsorStatus interface {
	Status(ctx context.Context, address string) (*model.SponsorshipStatus, error)
}

type Dependencies struct {
	Reader   CampaignReader
	Builder  *txbuilder.Builder
	Executor Submitter
	Sponsor  SponsorStatus
	Storage  storage.Storage
	Recovery *recovery.Engine
	Signer   signer.Signer
	// Identity is nil when the signer cannot provide an identity secret.
	Identity signer.IdentitySource
	Now      func() time.Time
}

// Service is what the UI layer calls: it creates campaigns, submits
// responses, and presents campaigns and their results for one user.
type Service struct {
	deps Dependencies
}

func NewService(deps Dependencies) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// Address is empty for a read-only service without a signer.
func (s *Service) Address() string {
	if s.deps.Signer == nil {
		return ""
	}
	return s.deps.Signer.Address()
}

var (
	ErrNoSigner  = errors.New("no signer configured")
	ErrNoSponsor = errors.New("no sponsor service configured")
)

type CreateRequest struct {
	Title       string
	Description string
	Questions   []txbuilder.QuestionInput
	EndTime     time.Time
	AccessType  model.AccessType
	Whitelist   []string
	Encrypt     bool
}

type CreateResult struct {
	Digest string
	// CampaignID is empty when the created object could not be found in time;
	// LookupErr then says so. The campaign exists either way.
	CampaignID string
	LookupErr  error
	// Password is set for encrypted campaigns.
	Password string
	Trail    executor.Trail
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := s.canSubmit(); err != nil {
		return nil, err
	}
	input := txbuilder.CreateCampaignInput{
		Title:       req.Title,
		Description: req.Description,
		Questions:   req.Questions,
		EndTime:     req.EndTime.UnixMilli(),
		AccessType:  req.AccessType,
		Whitelist:   req.Whitelist,
	}

	var password string
	if req.Encrypt {
		var err error
		input.CampaignSeed, password, err = s.campaignPassword(ctx)
		if err != nil {
			return nil, err
		}
		if input.Title, err = crypto.Encrypt(password, req.Title); err != nil {
			return nil, errors.Wrap(err, "encrypt title")
		}
		if input.Description, err = crypto.Encrypt(password, req.Description); err != nil {
			return nil, errors.Wrap(err, "encrypt description")
		}
		if plain, err := crypto.Decrypt(password, input.Title); err != nil || plain != req.Title {
			return nil, errors.New("campaign password failed validation")
		}
	}

	tx, err := s.deps.Builder.CreateCampaign(input)
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Executor.Execute(ctx, tx, s.deps.Signer)
	out := &CreateResult{Password: password}
	if res != nil {
		out.Digest = res.Digest
		out.CampaignID = res.CampaignID
		out.LookupErr = res.LookupErr
		out.Trail = res.Trail
	}
	if err != nil {
		return out, err
	}

	if password != "" {
		if out.CampaignID == "" {
			logger.Warn("encrypted campaign created but its id is unknown; password not stored", zap.String("digest", out.Digest))
		} else if err := s.deps.Storage.SavePassword(&storage.StoredPassword{
			CampaignID: out.CampaignID,
			Holder:     s.Address(),
			Password:   password,
			Source:     storage.SourceCreated,
		}); err != nil {
			return out, errors.Wrap(err, "store campaign password")
		}
	}
	return out, nil
}

func (s *Service) canSubmit() error {
	if s.deps.Signer == nil {
		return ErrNoSigner
	}
	if s.deps.Executor == nil {
		return ErrNoSponsor
	}
	return nil
}

// campaignPassword derives the password from a fresh seed when an identity
// secret is available, so the creator can recover it anywhere; otherwise a
// random password is used and only local storage keeps it.
func (s *Service) campaignPassword(ctx context.Context) ([]byte, string, error) {
	seed, err := crypto.NewSeed()
	if err != nil {
		return nil, "", err
	}
	if secret := s.identitySecret(ctx); secret != nil {
		key, err := crypto.IdentityKey(secret, s.Address())
		if err != nil {
			return nil, "", err
		}
		password, err := crypto.DerivePassword(seed, key)
		return seed, password, err
	}
	password, err := crypto.RandomPassword()
	return seed, password, err
}

func (s *Service) identitySecret(ctx context.Context) []byte {
	if s.deps.Identity == nil {
		return nil
	}
	secret, ok, err := s.deps.Identity.IdentitySecret(ctx)
	if err != nil || !ok {
		return nil
	}
	return secret
}

type RespondResult struct {
	Digest string
	Trail  executor.Trail
}

func (s *Service) Respond(ctx context.Context, campaignID string, answers map[int]txbuilder.Answer) (*RespondResult, error) {
	if err := s.canSubmit(); err != nil {
		return nil, err
	}
	c, err := s.deps.Reader.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sender := s.Address()
	if err := s.checkPreconditions(c, sender); err != nil {
		return nil, err
	}

	var responseSeed []byte
	if c.Encrypted {
		responseSeed = s.responseSeed(ctx, c, sender)
	}

	tx, err := s.deps.Builder.SubmitResponse(c, answers, responseSeed)
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Executor.Execute(ctx, tx, s.deps.Signer)
	out := &RespondResult{}
	if res != nil {
		out.Digest = res.Digest
		out.Trail = res.Trail
	}
	if err != nil {
		var execErr *executor.ExecutionError
		if errors.As(err, &execErr) && execErr.AlreadyResponded {
			s.journalSeen(c.ID, sender)
			return out, &PreconditionError{CampaignID: c.ID, Reason: AlreadyResponded}
		}
		return out, err
	}

	s.journal(c.ID, sender, out.Digest)
	return out, nil
}

func (s *Service) checkPreconditions(c *model.Campaign, sender string) error {
	submitted, err := s.deps.Storage.HasSubmitted(c.ID, sender)
	if err != nil {
		return errors.Wrap(err, "read submission journal")
	}
	if submitted || c.HasResponded(sender) {
		return &PreconditionError{CampaignID: c.ID, Reason: AlreadyResponded}
	}
	if c.Status(s.deps.Now()) == model.StatusEnded {
		return &PreconditionError{CampaignID: c.ID, Reason: CampaignEnded}
	}
	if !c.CanRespond(sender) {
		return &PreconditionError{CampaignID: c.ID, Reason: NotWhitelisted}
	}
	return nil
}

// responseSeed seals the campaign password for the respondent so the
// respondent can unlock the campaign later from its own response. It is nil
// when the password or the identity secret is not available.
func (s *Service) responseSeed(ctx context.Context, c *model.Campaign, sender string) []byte {
	secret := s.identitySecret(ctx)
	if secret == nil {
		return nil
	}
	outcome, err := s.deps.Recovery.Recover(ctx, c, sender, s.deps.Identity)
	if err != nil || !outcome.Unlocked || outcome.Password == "" {
		return nil
	}
	key, err := crypto.IdentityKey(secret, sender)
	if err != nil {
		return nil
	}
	seed, err := crypto.SealResponseSeed(outcome.Password, key)
	if err != nil {
		logger.Warn("cannot seal response seed", zap.String("campaign", c.ID), zap.Error(err))
		return nil
	}
	return seed
}

func (s *Service) journal(campaignID, sender, digest string) {
	err := s.deps.Storage.RecordSubmission(&storage.SubmittedResponse{
		CampaignID:  campaignID,
		Respondent:  sender,
		TxDigest:    digest,
		SubmittedAt: s.deps.Now().UnixMilli(),
	})
	if err != nil {
		logger.Warn("cannot journal submission", zap.String("campaign", campaignID), zap.Error(err))
	}
}

// journalSeen records a response the ledger already holds without touching an
// existing journal entry.
func (s *Service) journalSeen(campaignID, sender string) {
	err := s.deps.Storage.RecordSubmissions([]*storage.SubmittedResponse{{
		CampaignID:  campaignID,
		Respondent:  sender,
		SubmittedAt: s.deps.Now().UnixMilli(),
	}})
	if err != nil {
		logger.Warn("cannot journal submission", zap.String("campaign", campaignID), zap.Error(err))
	}
}

// View is a campaign as one user sees it.
type View struct {
	Campaign     *model.Campaign
	Title        string
	Description  string
	Unlocked     bool
	LockReason   recovery.LockReason
	Status       model.Status
	IsCreator    bool
	HasResponded bool
	CanRespond   bool
	// MyAnswers are the stored answers of the current user, keyed by question.
	MyAnswers map[int]string
}

func (s *Service) View(ctx context.Context, campaignID string) (*View, error) {
	c, err := s.deps.Reader.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

func (s *Service) view(ctx context.Context, c *model.Campaign) (*View, error) {
	address := s.Address()
	outcome, err := s.deps.Recovery.Recover(ctx, c, address, s.deps.Identity)
	if err != nil {
		return nil, err
	}
	submitted, err := s.deps.Storage.HasSubmitted(c.ID, address)
	if err != nil {
		return nil, errors.Wrap(err, "read submission journal")
	}
	var answers map[int]string
	if response, ok := c.ResponseOf(address); ok && address != "" {
		answers = response.Answers
	}
	return &View{
		Campaign:     c,
		Title:        outcome.Title,
		Description:  outcome.Description,
		Unlocked:     outcome.Unlocked,
		LockReason:   outcome.LockReason(),
		Status:       c.Status(s.deps.Now()),
		IsCreator:    c.IsCreator(address),
		HasResponded: submitted || c.HasResponded(address),
		CanRespond:   c.CanRespond(address),
		MyAnswers:    answers,
	}, nil
}

// Unlock tries a password typed by the user.
func (s *Service) Unlock(ctx context.Context, campaignID, password string) (*View, error) {
	c, err := s.deps.Reader.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Recovery.Unlock(c, s.Address(), password); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// MyCampaigns lists the campaigns created by the current user.
func (s *Service) MyCampaigns(ctx context.Context) ([]*View, error) {
	campaigns, err := s.deps.Reader.CampaignsByCreator(ctx, s.Address())
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(campaigns))
	for _, c := range campaigns {
		v, err := s.view(ctx, c)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Results aggregates a campaign. Failing to attribute text answers to
// transactions only leaves their digests empty.
func (s *Service) Results(ctx context.Context, campaignID string) (*results.CampaignResults, error) {
	c, err := s.deps.Reader.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	attribution, err := s.deps.Reader.ResponseDigests(ctx, c)
	if err != nil {
		logger.Warn("cannot attribute responses", zap.String("campaign", c.ID), zap.Error(err))
		attribution = nil
	}
	return results.Aggregate(c, attribution, s.deps.Now()), nil
}

func (s *Service) Sponsorship(ctx context.Context) (*model.SponsorshipStatus, error) {
	if s.deps.Signer == nil {
		return nil, ErrNoSigner
	}
	if s.deps.Sponsor == nil {
		return nil, ErrNoSponsor
	}
	return s.deps.Sponsor.Status(ctx, s.Address())
}
