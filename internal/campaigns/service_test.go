package campaigns

import (
	"context"
	"testing"
	"time"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/blockchain/ledgertest"
	"campaignclient/internal/crypto"
	"campaignclient/internal/executor"
	"campaignclient/internal/model"
	"campaignclient/internal/reader"
	"campaignclient/internal/recovery"
	"campaignclient/internal/signer"
	"campaignclient/internal/storage"
	"campaignclient/internal/txbuilder"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var (
	now     = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	network = blockchain.NetworkConfig{Name: blockchain.Testnet, PackageID: ledgertest.Package, RegistryID: "0xr1"}
)

type fakeSubmitter struct {
	txs    []*txbuilder.Transaction
	result *executor.Result
	err    error
	// during runs while the transaction is in flight.
	during func()
}

func (f *fakeSubmitter) Execute(ctx context.Context, tx *txbuilder.Transaction, s signer.Signer) (*executor.Result, error) {
	f.txs = append(f.txs, tx)
	if f.during != nil {
		f.during()
	}
	res := f.result
	if res == nil {
		res = &executor.Result{Digest: "D1", Trail: executor.Trail{executor.StateConfirmed}}
	}
	return res, f.err
}

type fakeStatus struct{}

func (fakeStatus) Status(ctx context.Context, address string) (*model.SponsorshipStatus, error) {
	return &model.SponsorshipStatus{Address: address, CanSponsorResponse: true}, nil
}

type fixture struct {
	ledger    *ledgertest.Ledger
	store     *storage.MemoryStorage
	submitter *fakeSubmitter
	session   *signer.SessionSigner
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	session, err := signer.NewSessionSigner([]byte("user session"), time.Time{})
	require.NoError(t, err)

	f := &fixture{
		ledger:    ledgertest.New(),
		store:     storage.NewMemoryStorage(),
		submitter: &fakeSubmitter{},
		session:   session,
	}
	f.service = NewService(Dependencies{
		Reader:   reader.New(f.ledger, network, reader.Options{Attempts: 1}),
		Builder:  txbuilder.New(network),
		Executor: f.submitter,
		Sponsor:  fakeStatus{},
		Storage:  f.store,
		Recovery: recovery.NewEngine(f.store),
		Signer:   session,
		Identity: session,
		Now:      func() time.Time { return now },
	})
	return f
}

func (f *fixture) put(c *model.Campaign) {
	f.ledger.PutObject(c.ID, ledgertest.CampaignData(c))
}

func openCampaign(id string) *model.Campaign {
	return &model.Campaign{
		ID:      id,
		Creator: "0xa1",
		Title:   "Lunch",
		Questions: []model.Question{
			{Text: "Where", Type: model.SingleChoice, Required: true, Options: []string{"thai", "pizza"}, Votes: []uint64{0, 0}},
			{Text: "Notes", Type: model.Text},
		},
		EndTime: now.Add(time.Hour).UnixMilli(),
	}
}

func TestCreateEncryptedStoresValidatedPassword(t *testing.T) {
	f := newFixture(t)
	f.submitter.result = &executor.Result{Digest: "D1", CampaignID: "0xc9"}

	res, err := f.service.Create(context.Background(), CreateRequest{
		Title:       "Salary survey",
		Description: "Anonymous",
		Questions:   []txbuilder.QuestionInput{{Text: "Range", Type: model.SingleChoice, Options: []string{"low", "high"}}},
		EndTime:     now.Add(24 * time.Hour),
		Encrypt:     true,
	})
	require.NoError(t, err)
	require.Equal(t, "0xc9", res.CampaignID)
	require.NotEmpty(t, res.Password)

	tx := f.submitter.txs[0]
	require.Equal(t, ledgertest.Package+"::campaign::create_encrypted_campaign", tx.Target)
	title, _ := tx.Argument("title")
	require.True(t, crypto.IsEncrypted(title.Value.(string)))

	stored, err := f.store.GetPassword("0xc9", f.session.Address())
	require.NoError(t, err)
	require.Equal(t, res.Password, stored.Password)
	require.Equal(t, storage.SourceCreated, stored.Source)

	// the creator can derive the same password again from the seed
	seed, _ := tx.Argument("campaign_seed")
	key, err := crypto.IdentityKey(mustSecret(t, f.session), f.session.Address())
	require.NoError(t, err)
	derived, err := crypto.DerivePassword(seed.Value.([]byte), key)
	require.NoError(t, err)
	require.Equal(t, res.Password, derived)
}

func TestCreateWithUnresolvedIDKeepsPasswordInResult(t *testing.T) {
	f := newFixture(t)
	f.submitter.result = &executor.Result{Digest: "D2", LookupErr: &executor.LookupTimeout{Digest: "D2", Attempts: 5}}

	res, err := f.service.Create(context.Background(), CreateRequest{
		Title:     "Poll",
		Questions: []txbuilder.QuestionInput{{Text: "Why", Type: model.Text}},
		EndTime:   now.Add(time.Hour),
		Encrypt:   true,
	})
	require.NoError(t, err)
	require.Empty(t, res.CampaignID)
	require.NotEmpty(t, res.Password)
	var timeout *executor.LookupTimeout
	require.True(t, errors.As(res.LookupErr, &timeout))
}

func TestRespondJournalsSubmission(t *testing.T) {
	f := newFixture(t)
	f.put(openCampaign("0xc1"))

	res, err := f.service.Respond(context.Background(), "0xc1", map[int]txbuilder.Answer{
		0: txbuilder.Choice("pizza"),
		1: txbuilder.TextAnswer("no onions"),
	})
	require.NoError(t, err)
	require.Equal(t, "D1", res.Digest)

	answers, _ := f.submitter.txs[0].Argument("answers")
	require.Equal(t, []string{"1", "no onions"}, answers.Value)

	submitted, err := f.store.HasSubmitted("0xc1", f.session.Address())
	require.NoError(t, err)
	require.True(t, submitted)

	// a second submission is refused locally
	_, err = f.service.Respond(context.Background(), "0xc1", map[int]txbuilder.Answer{0: txbuilder.Choice("thai")})
	var pre *PreconditionError
	require.True(t, errors.As(err, &pre))
	require.Equal(t, AlreadyResponded, pre.Reason)
	require.Len(t, f.submitter.txs, 1)
}

func TestRespondPreconditions(t *testing.T) {
	f := newFixture(t)

	ended := openCampaign("0xc2")
	ended.EndTime = now.Add(-time.Minute).UnixMilli()
	f.put(ended)

	whitelisted := openCampaign("0xc3")
	whitelisted.AccessType = model.AccessWhitelist
	whitelisted.Whitelist = []string{"0xdd"}
	f.put(whitelisted)

	answered := openCampaign("0xc4")
	answered.Responses = []model.Response{{Respondent: f.session.Address(), Answers: map[int]string{0: "0"}}}
	answered.TotalResponses = 1
	f.put(answered)

	tests := []struct {
		id     string
		reason Precondition
	}{
		{"0xc2", CampaignEnded},
		{"0xc3", NotWhitelisted},
		{"0xc4", AlreadyResponded},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			_, err := f.service.Respond(context.Background(), tt.id, map[int]txbuilder.Answer{0: txbuilder.Choice("thai")})
			var pre *PreconditionError
			require.True(t, errors.As(err, &pre), "got %v", err)
			require.Equal(t, tt.reason, pre.Reason)
		})
	}
	require.Empty(t, f.submitter.txs)
}

func TestRespondDuplicateAbortBecomesPrecondition(t *testing.T) {
	f := newFixture(t)
	f.put(openCampaign("0xc1"))
	f.submitter.err = &executor.ExecutionError{Digest: "D3", Executed: true, AlreadyResponded: true}

	_, err := f.service.Respond(context.Background(), "0xc1", map[int]txbuilder.Answer{0: txbuilder.Choice("thai")})
	var pre *PreconditionError
	require.True(t, errors.As(err, &pre))
	require.Equal(t, AlreadyResponded, pre.Reason)

	submitted, err := f.store.HasSubmitted("0xc1", f.session.Address())
	require.NoError(t, err)
	require.True(t, submitted)
}

func TestRespondDuplicateAbortKeepsJournaledDigest(t *testing.T) {
	f := newFixture(t)
	f.put(openCampaign("0xc1"))
	sender := f.session.Address()
	f.submitter.during = func() {
		// another client journals the earlier response while this one is in flight
		require.NoError(t, f.store.RecordSubmission(&storage.SubmittedResponse{
			CampaignID: "0xc1", Respondent: sender, TxDigest: "Dprev", SubmittedAt: 42,
		}))
	}
	f.submitter.err = &executor.ExecutionError{Digest: "D3", Executed: true, AlreadyResponded: true}

	_, err := f.service.Respond(context.Background(), "0xc1", map[int]txbuilder.Answer{0: txbuilder.Choice("thai")})
	var pre *PreconditionError
	require.True(t, errors.As(err, &pre))
	require.Equal(t, AlreadyResponded, pre.Reason)

	journaled, err := f.store.GetSubmission("0xc1", sender)
	require.NoError(t, err)
	require.Equal(t, "Dprev", journaled.TxDigest)
	require.Equal(t, int64(42), journaled.SubmittedAt)
}

func TestRespondToEncryptedCampaignSealsSeed(t *testing.T) {
	f := newFixture(t)
	password := "shared password"
	c := openCampaign("0xc5")
	var err error
	c.Title, err = crypto.Encrypt(password, "Secret lunch")
	require.NoError(t, err)
	c.Encrypted = true
	c.CampaignSeed = []byte{1}
	f.put(c)

	_, err = f.service.Unlock(context.Background(), "0xc5", password)
	require.NoError(t, err)

	_, err = f.service.Respond(context.Background(), "0xc5", map[int]txbuilder.Answer{0: txbuilder.Choice("thai")})
	require.NoError(t, err)

	seedArg, _ := f.submitter.txs[0].Argument("response_seed")
	seed := seedArg.Value.([]byte)
	require.NotEmpty(t, seed)

	key, err := crypto.IdentityKey(mustSecret(t, f.session), f.session.Address())
	require.NoError(t, err)
	opened, err := crypto.OpenResponseSeed(seed, key)
	require.NoError(t, err)
	require.Equal(t, password, opened)
}

func TestViewAndResults(t *testing.T) {
	f := newFixture(t)
	c := openCampaign("0xc1")
	c.Questions[0].Votes = []uint64{3, 1}
	c.Responses = []model.Response{{Respondent: "0xb2", Answers: map[int]string{0: "0", 1: "fast"}}}
	c.Questions[1].TextResponseCount = 1
	c.TotalResponses = 1
	f.put(c)

	resp := blockchain.TransactionResponse{
		Digest:      "Dresp",
		Transaction: &blockchain.TransactionEnvelope{},
		Effects:     &blockchain.Effects{Status: blockchain.ExecutionStatus{Status: "success"}},
	}
	resp.Transaction.Data.Sender = "0xb2"
	f.ledger.AddTransaction("0xc1", resp)

	view, err := f.service.View(context.Background(), "0xc1")
	require.NoError(t, err)
	require.True(t, view.Unlocked)
	require.Equal(t, "Lunch", view.Title)
	require.Equal(t, model.StatusActive, view.Status)
	require.False(t, view.HasResponded)
	require.True(t, view.CanRespond)
	require.False(t, view.IsCreator)
	require.Nil(t, view.MyAnswers)

	res, err := f.service.Results(context.Background(), "0xc1")
	require.NoError(t, err)
	require.Equal(t, 0, *res.Questions[0].Winner)
	require.Equal(t, 75, res.Questions[0].Options[0].Percentage)
	require.Len(t, res.Questions[1].Answers, 1)
	require.Equal(t, "fast", res.Questions[1].Answers[0].Text)
	require.Equal(t, "Dresp", res.Questions[1].Answers[0].TxDigest)
}

func TestMyCampaigns(t *testing.T) {
	f := newFixture(t)
	mine := openCampaign("0xc1")
	mine.Creator = f.session.Address()
	mine.Responses = []model.Response{{Respondent: f.session.Address(), Answers: map[int]string{0: "1"}}}
	mine.TotalResponses = 1
	f.put(mine)
	f.put(openCampaign("0xc2"))
	f.ledger.PutObject("0xr1", ledgertest.RegistryData(&model.Registry{
		ID:           "0xr1",
		AllCampaigns: []string{"0xc1", "0xc2"},
		ByCreator: map[string][]string{
			f.session.Address(): {"0xc1"},
			"0xa1":              {"0xc2"},
		},
	}))

	views, err := f.service.MyCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "0xc1", views[0].Campaign.ID)
	require.True(t, views[0].IsCreator)
	require.Equal(t, "Lunch", views[0].Title)
	require.Equal(t, model.StatusActive, views[0].Status)
	require.Equal(t, map[int]string{0: "1"}, views[0].MyAnswers)
}

func TestSponsorship(t *testing.T) {
	f := newFixture(t)
	status, err := f.service.Sponsorship(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.session.Address(), status.Address)
	require.True(t, status.CanSponsorResponse)
}

func mustSecret(t *testing.T, source signer.IdentitySource) []byte {
	secret, ok, err := source.IdentitySecret(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return secret
}

func TestReadOnlyServiceRefusesSubmissions(t *testing.T) {
	ledger := ledgertest.New()
	ledger.PutObject("0xc1", ledgertest.CampaignData(openCampaign("0xc1")))
	store := storage.NewMemoryStorage()
	service := NewService(Dependencies{
		Reader:   reader.New(ledger, network, reader.Options{Attempts: 1}),
		Builder:  txbuilder.New(network),
		Storage:  store,
		Recovery: recovery.NewEngine(store),
		Now:      func() time.Time { return now },
	})
	require.Empty(t, service.Address())

	_, err := service.Respond(context.Background(), "0xc1", map[int]txbuilder.Answer{0: txbuilder.Choice("thai")})
	require.ErrorIs(t, err, ErrNoSigner)
	_, err = service.Sponsorship(context.Background())
	require.ErrorIs(t, err, ErrNoSigner)

	view, err := service.View(context.Background(), "0xc1")
	require.NoError(t, err)
	require.Equal(t, "Lunch", view.Title)
}
