package tracker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/blockchain/ledgertest"
	"campaignclient/internal/crypto"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"
	"campaignclient/internal/reader"
	"campaignclient/internal/recovery"
	"campaignclient/internal/results"
	"campaignclient/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const holder = "0xb2"

var (
	now     = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	network = blockchain.NetworkConfig{Name: blockchain.Testnet, PackageID: ledgertest.Package, RegistryID: "0xr1"}
)

type fakeSponsor struct{}

func (fakeSponsor) Status(ctx context.Context, address string) (*model.SponsorshipStatus, error) {
	return &model.SponsorshipStatus{Address: address, CanSponsorResponse: true}, nil
}

func seededLedger() *ledgertest.Ledger {
	ledger := ledgertest.New()
	ledger.PutObject("0xr1", ledgertest.RegistryData(&model.Registry{
		ID:           "0xr1",
		AllCampaigns: []string{"0xc1", "0xc2"},
	}))
	ledger.PutObject("0xc1", ledgertest.CampaignData(&model.Campaign{
		ID:      "0xc1",
		Creator: "0xa1",
		Title:   "Lunch",
		Questions: []model.Question{
			{Text: "Where", Type: model.SingleChoice, Options: []string{"thai", "pizza"}, Votes: []uint64{0, 1}},
			{Text: "Notes", Type: model.Text, TextResponseCount: 1},
		},
		Responses:      []model.Response{{Respondent: holder, Timestamp: 1234, Answers: map[int]string{0: "1", 1: "spicy"}}},
		TotalResponses: 1,
		EndTime:        now.Add(time.Hour).UnixMilli(),
	}))
	ledger.PutObject("0xc2", ledgertest.CampaignData(&model.Campaign{
		ID:        "0xc2",
		Creator:   "0xa1",
		Title:     "Retro",
		Questions: []model.Question{{Text: "Mood", Type: model.Text}},
		EndTime:   now.Add(-time.Hour).UnixMilli(),
	}))

	tx := blockchain.TransactionResponse{
		Digest:      "Dresp",
		Transaction: &blockchain.TransactionEnvelope{},
		Effects:     &blockchain.Effects{Status: blockchain.ExecutionStatus{Status: "success"}},
	}
	tx.Transaction.Data.Sender = holder
	ledger.AddTransaction("0xc1", tx)
	return ledger
}

func newTracker(ledger *ledgertest.Ledger, store storage.Storage, opts Options) *Tracker {
	opts.Holder = holder
	opts.Now = func() time.Time { return now }
	return NewTracker(reader.New(ledger, network, reader.Options{Attempts: 1}), recovery.NewEngine(store), store, fakeSponsor{}, opts)
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	store := storage.NewMemoryStorage()
	tr := newTracker(seededLedger(), store, Options{})
	require.Nil(t, tr.Latest())

	snapshot, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Campaigns, 2)
	require.Equal(t, now, snapshot.RefreshedAt)
	require.Same(t, snapshot, tr.Latest())

	lunch := snapshot.Results["0xc1"]
	require.Equal(t, model.StatusActive, lunch.Status)
	require.Equal(t, 1, *lunch.Questions[0].Winner)
	require.Equal(t, "Dresp", lunch.Questions[1].Answers[0].TxDigest)
	require.Equal(t, model.StatusEnded, snapshot.Results["0xc2"].Status)

	require.True(t, snapshot.Recovery["0xc1"].Unlocked)
	require.Equal(t, recovery.SourcePlain, snapshot.Recovery["0xc2"].Source)
	require.True(t, snapshot.Sponsorship.CanSponsorResponse)

	journaled, err := store.GetSubmission("0xc1", holder)
	require.NoError(t, err)
	require.Equal(t, "Dresp", journaled.TxDigest)
	require.Equal(t, int64(1234), journaled.SubmittedAt)

	submitted, err := store.HasSubmitted("0xc2", holder)
	require.NoError(t, err)
	require.False(t, submitted)
}

func TestRefreshWatchList(t *testing.T) {
	ledger := seededLedger()
	tr := newTracker(ledger, storage.NewMemoryStorage(), Options{Watch: []string{"0xc2"}})

	snapshot, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Campaigns, 1)
	require.Equal(t, "0xc2", snapshot.Campaigns[0].ID)
	// no responses, so nothing to attribute
	require.Zero(t, ledger.Calls("QueryTransactionBlocks"))
}

func TestRefreshFailsWhenCampaignsCannotBeRead(t *testing.T) {
	ledger := seededLedger()
	ledger.FailReads = 10
	tr := newTracker(ledger, storage.NewMemoryStorage(), Options{})

	_, err := tr.Refresh(context.Background())
	require.Error(t, err)
	require.Nil(t, tr.Latest())
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) AllCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}

func (b *blockingSource) Campaigns(ctx context.Context, ids []string) ([]*model.Campaign, error) {
	return nil, nil
}

func (b *blockingSource) ResponseDigests(ctx context.Context, c *model.Campaign) (results.Attribution, error) {
	return nil, nil
}

type countingDecrypt struct {
	calls atomic.Int32
}

func (d *countingDecrypt) IdentityKey(secret []byte, address string) ([]byte, error) {
	return crypto.IdentityKey(secret, address)
}

func (d *countingDecrypt) DerivePassword(seed, key []byte) (string, error) {
	return crypto.DerivePassword(seed, key)
}

func (d *countingDecrypt) OpenResponseSeed(seed, key []byte) (string, error) {
	return crypto.OpenResponseSeed(seed, key)
}

func (d *countingDecrypt) Decrypt(password, ciphertext string) (string, error) {
	d.calls.Add(1)
	return crypto.Decrypt(password, ciphertext)
}

func TestRefreshReusesUnlockedCampaigns(t *testing.T) {
	const password = "shared password"
	title, err := crypto.Encrypt(password, "Salaries")
	require.NoError(t, err)
	description, err := crypto.Encrypt(password, "Anonymous")
	require.NoError(t, err)

	ledger := ledgertest.New()
	ledger.PutObject("0xr1", ledgertest.RegistryData(&model.Registry{ID: "0xr1", AllCampaigns: []string{"0xc3"}}))
	ledger.PutObject("0xc3", ledgertest.CampaignData(&model.Campaign{
		ID:          "0xc3",
		Creator:     "0xa1",
		Title:       title,
		Description: description,
		Encrypted:   true,
		Questions:   []model.Question{{Text: "Band", Type: model.Text}},
		EndTime:     now.Add(time.Hour).UnixMilli(),
	}))

	store := storage.NewMemoryStorage()
	require.NoError(t, store.SavePassword(&storage.StoredPassword{CampaignID: "0xc3", Holder: holder, Password: password, Source: storage.SourceManual}))

	decrypt := &countingDecrypt{}
	engine := recovery.NewEngineWithDerivation(store, decrypt)
	tr := NewTracker(reader.New(ledger, network, reader.Options{Attempts: 1}), engine, store, nil,
		Options{Holder: holder, Now: func() time.Time { return now }})

	snapshot, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Salaries", snapshot.Recovery["0xc3"].Title)
	require.Equal(t, int32(2), decrypt.calls.Swap(0))

	snapshot, err = tr.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, snapshot.Recovery["0xc3"].Unlocked)
	require.Equal(t, "Anonymous", snapshot.Recovery["0xc3"].Description)
	require.Zero(t, decrypt.calls.Load())
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	source := &blockingSource{entered: make(chan struct{}, 1), release: make(chan struct{})}
	store := storage.NewMemoryStorage()
	tr := NewTracker(source, recovery.NewEngine(store), store, nil, Options{})

	skipped := testutil.ToFloat64(metrics.TrackerRefreshes.WithLabelValues("skipped"))

	ctx := context.Background()
	tr.start(ctx)
	<-source.entered
	tr.start(ctx)
	require.Equal(t, skipped+1, testutil.ToFloat64(metrics.TrackerRefreshes.WithLabelValues("skipped")))

	close(source.release)
	tr.inflight.Wait()
	require.NotNil(t, tr.Latest())
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	tr := newTracker(seededLedger(), storage.NewMemoryStorage(), Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var published atomic.Int32
	tr.Subscribe(func(s *Snapshot) {
		if published.Add(1) == 3 {
			cancel()
		}
	})

	err := tr.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, published.Load(), int32(3))
}
