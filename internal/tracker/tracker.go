package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"campaignclient/internal/logger"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"
	"campaignclient/internal/recovery"
	"campaignclient/internal/results"
	"campaignclient/internal/signer"
	"campaignclient/internal/storage"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

type Source interface {
	AllCampaigns(ctx context.Context) ([]*model.Campaign, error)
	Campaigns(ctx context.Context, ids []string) ([]*model.Campaign, error)
	ResponseDigests(ctx context.Context, c *model.Campaign) (results.Attribution, error)
}

type SponsorStatus interface {
	Status(ctx context.Context, address string) (*model.SponsorshipStatus, error)
}

type Options struct {
	Interval time.Duration
	// Holder is the address the snapshot is built for; empty skips recovery
	// of its passwords, journal sync and sponsorship.
	Holder   string
	Identity signer.IdentitySource
	// Watch limits tracking to these campaign ids; empty tracks the registry.
	Watch []string
	Now   func() time.Time
}

// Snapshot is everything the UI renders after one refresh.
type Snapshot struct {
	Campaigns   []*model.Campaign
	Results     map[string]*results.CampaignResults
	Recovery    map[string]*recovery.Outcome
	Sponsorship *model.SponsorshipStatus
	RefreshedAt time.Time
}

type Tracker struct {
	source   Source
	recovery *recovery.Engine
	journal  storage.SubmissionJournal
	sponsor  SponsorStatus
	opts     Options

	refreshing atomic.Bool
	inflight   sync.WaitGroup

	mu          sync.RWMutex
	latest      *Snapshot
	subscribers []func(*Snapshot)
}

// NewTracker wires the poller. sponsor may be nil.
func NewTracker(source Source, engine *recovery.Engine, journal storage.SubmissionJournal, sponsor SponsorStatus, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		source:   source,
		recovery: engine,
		journal:  journal,
		sponsor:  sponsor,
		opts:     opts,
	}
}

// Run refreshes immediately and then on every tick until ctx is done. A tick
// that arrives while the previous refresh is still running is dropped.
func (t *Tracker) Run(ctx context.Context) error {
	logger.Info("tracker started", zap.Duration("interval", t.opts.Interval), zap.Int("watched", len(t.opts.Watch)))
	defer t.inflight.Wait()

	t.start(ctx)
	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("tracker stopped")
			return ctx.Err()
		case <-ticker.C:
			t.start(ctx)
		}
	}
}

func (t *Tracker) start(ctx context.Context) {
	if !t.refreshing.CompareAndSwap(false, true) {
		metrics.TrackerRefreshes.WithLabelValues("skipped").Inc()
		logger.Debug("previous refresh still running, skipping tick")
		return
	}
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		defer t.refreshing.Store(false)
		t.tick(ctx)
	}()
}

func (t *Tracker) tick(ctx context.Context) {
	if _, err := t.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.TrackerRefreshes.WithLabelValues("failed").Inc()
		logger.Error("tracker refresh failed", zap.Error(err))
	}
}

// Refresh builds a new snapshot, publishes it to subscribers and returns it.
func (t *Tracker) Refresh(ctx context.Context) (*Snapshot, error) {
	logger.Debug("refreshing campaigns...")

	campaigns, err := t.campaigns(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Campaigns: campaigns,
		Results:   make(map[string]*results.CampaignResults, len(campaigns)),
		Recovery:  make(map[string]*recovery.Outcome, len(campaigns)),
	}

	if t.opts.Holder != "" {
		if snapshot.Recovery, err = t.recovery.RecoverAll(ctx, campaigns, t.opts.Holder, t.opts.Identity); err != nil {
			return nil, err
		}
	}

	now := t.opts.Now()
	var observed []*storage.SubmittedResponse
	for _, c := range campaigns {
		attribution := t.attribution(ctx, c)
		snapshot.Results[c.ID] = results.Aggregate(c, attribution, now)

		if t.opts.Holder == "" {
			continue
		}
		if response, ok := c.ResponseOf(t.opts.Holder); ok {
			observed = append(observed, &storage.SubmittedResponse{
				CampaignID:  c.ID,
				Respondent:  t.opts.Holder,
				TxDigest:    attribution[model.NormalizeAddress(t.opts.Holder)],
				SubmittedAt: response.Timestamp,
			})
		}
	}
	if len(observed) > 0 {
		if err := t.journal.RecordSubmissions(observed); err != nil {
			return nil, errors.Wrap(err, "sync submission journal")
		}
	}

	if t.sponsor != nil && t.opts.Holder != "" {
		status, err := t.sponsor.Status(ctx, t.opts.Holder)
		if err != nil {
			logger.Warn("cannot read sponsorship status", zap.Error(err))
		} else {
			snapshot.Sponsorship = status
		}
	}

	snapshot.RefreshedAt = t.opts.Now()
	t.publish(snapshot)
	metrics.TrackerRefreshes.WithLabelValues("ok").Inc()
	logger.Debug("refreshing campaigns... done", zap.Int("campaigns", len(campaigns)))
	return snapshot, nil
}

func (t *Tracker) campaigns(ctx context.Context) ([]*model.Campaign, error) {
	if len(t.opts.Watch) > 0 {
		return t.source.Campaigns(ctx, t.opts.Watch)
	}
	return t.source.AllCampaigns(ctx)
}

// attribution is only worth a transaction query when text answers will be shown.
func (t *Tracker) attribution(ctx context.Context, c *model.Campaign) results.Attribution {
	if len(c.Responses) == 0 {
		return nil
	}
	hasText := false
	for i := range c.Questions {
		if c.Questions[i].Type == model.Text {
			hasText = true
			break
		}
	}
	if !hasText && !c.HasResponded(t.opts.Holder) {
		return nil
	}
	attribution, err := t.source.ResponseDigests(ctx, c)
	if err != nil {
		logger.Warn("cannot attribute responses", zap.String("campaign", c.ID), zap.Error(err))
		return nil
	}
	return attribution
}

func (t *Tracker) publish(snapshot *Snapshot) {
	t.mu.Lock()
	t.latest = snapshot
	subscribers := append([]func(*Snapshot){}, t.subscribers...)
	t.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

// Latest returns the last published snapshot, or nil before the first refresh.
func (t *Tracker) Latest() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Subscribe registers fn to be called with every new snapshot.
func (t *Tracker) Subscribe(fn func(*Snapshot)) {
	t.mu.Lock()
	t.subscribers = append(t.subscribers, fn)
	t.mu.Unlock()
}
