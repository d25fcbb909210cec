package reader

import (
	"context"
	"strconv"
	"time"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/decoder"
	"campaignclient/internal/logger"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"
	"campaignclient/internal/results"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// BatchSize is the most object ids sent in one multi-get call.
	BatchSize = 50

	batchConcurrency = 4
	queryPageSize    = 50
	attributionSize  = 256
)

var ErrRegistryNotConfigured = errors.New("campaign registry id is not configured")

type Options struct {
	Attempts int
	Delay    time.Duration
	// RPS limits ledger calls per second; zero disables the limit.
	RPS float64
}

// ChainReader is the read side of the ledger: objects, the registry and the
// transactions that touched a campaign.
type ChainReader struct {
	ledger   blockchain.Ledger
	network  blockchain.NetworkConfig
	limiter  *rate.Limiter
	attempts int
	delay    time.Duration

	flight      singleflight.Group
	attribution *lru.Cache[string, results.Attribution]
}

func New(ledger blockchain.Ledger, network blockchain.NetworkConfig, opts Options) *ChainReader {
	limit := rate.Inf
	burst := 1
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
		burst = max(1, int(opts.RPS))
	}
	cache, err := lru.New[string, results.Attribution](attributionSize)
	if err != nil {
		panic(err)
	}
	return &ChainReader{
		ledger:      ledger,
		network:     network,
		limiter:     rate.NewLimiter(limit, burst),
		attempts:    max(1, opts.Attempts),
		delay:       opts.Delay,
		attribution: cache,
	}
}

func (r *ChainReader) Registry(ctx context.Context) (*model.Registry, error) {
	if r.network.RegistryID == "" {
		return nil, ErrRegistryNotConfigured
	}
	logger.Debug("fetching registry...", zap.String("registry", r.network.RegistryID))

	resp, err := retryRead(ctx, r, "GetObject", func(ctx context.Context) (*blockchain.ObjectResponse, error) {
		return r.ledger.GetObject(ctx, r.network.RegistryID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch registry")
	}
	if resp.Error != nil {
		return nil, errors.Wrap(resp.Error, "fetch registry")
	}
	registry, err := decoder.DecodeRegistry(resp.Data)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues(decoder.KindRegistry.String()).Inc()
		return nil, err
	}

	logger.Debug("fetching registry... done", zap.Int("campaigns", len(registry.AllCampaigns)))
	return registry, nil
}

// Campaign fetches and decodes one campaign. Concurrent calls for the same id
// share one ledger round-trip.
func (r *ChainReader) Campaign(ctx context.Context, id string) (*model.Campaign, error) {
	v, err, _ := r.flight.Do("campaign:"+id, func() (interface{}, error) {
		resp, err := retryRead(ctx, r, "GetObject", func(ctx context.Context) (*blockchain.ObjectResponse, error) {
			return r.ledger.GetObject(ctx, id)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "fetch campaign %s", id)
		}
		if resp.Error != nil {
			return nil, errors.Wrapf(resp.Error, "fetch campaign %s", id)
		}
		campaign, err := decoder.DecodeCampaign(resp.Data)
		if err != nil {
			metrics.DecodeFailures.WithLabelValues(decoder.KindCampaign.String()).Inc()
			return nil, err
		}
		return campaign, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Campaign), nil
}

// Campaigns fetches ids in batches. Objects that are gone or fail to decode
// are logged and skipped; the result keeps the order of ids.
func (r *ChainReader) Campaigns(ctx context.Context, ids []string) ([]*model.Campaign, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	logger.Debug("fetching campaigns...", zap.Int("count", len(ids)))

	chunks := make([][]*model.Campaign, (len(ids)+BatchSize-1)/BatchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i := range chunks {
		i := i
		start := i * BatchSize
		end := min(start+BatchSize, len(ids))
		batch := ids[start:end]
		g.Go(func() error {
			campaigns, err := r.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			chunks[i] = campaigns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*model.Campaign, 0, len(ids))
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	logger.Debug("fetching campaigns... done", zap.Int("decoded", len(out)))
	return out, nil
}

func (r *ChainReader) fetchBatch(ctx context.Context, ids []string) ([]*model.Campaign, error) {
	responses, err := retryRead(ctx, r, "MultiGetObjects", func(ctx context.Context) ([]blockchain.ObjectResponse, error) {
		return r.ledger.MultiGetObjects(ctx, ids)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch campaign batch")
	}

	out := make([]*model.Campaign, 0, len(responses))
	for i, resp := range responses {
		if resp.Error != nil {
			logger.Warn("skipping unavailable campaign", zap.String("id", ids[i]), zap.Error(resp.Error))
			continue
		}
		campaign, err := decoder.DecodeCampaign(resp.Data)
		if err != nil {
			metrics.DecodeFailures.WithLabelValues(decoder.KindCampaign.String()).Inc()
			logger.Warn("skipping undecodable campaign", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, campaign)
	}
	return out, nil
}

func (r *ChainReader) AllCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	registry, err := r.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return r.Campaigns(ctx, registry.AllCampaigns)
}

func (r *ChainReader) CampaignsByCreator(ctx context.Context, creator string) ([]*model.Campaign, error) {
	registry, err := r.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return r.Campaigns(ctx, registry.CampaignsOf(creator))
}

// ResponseDigests attributes responses of c to the transactions that
// submitted them, keyed by normalized sender. Results are cached until the
// campaign's response count changes.
func (r *ChainReader) ResponseDigests(ctx context.Context, c *model.Campaign) (results.Attribution, error) {
	key := c.ID + "#" + strconv.FormatUint(c.TotalResponses, 10)
	if cached, ok := r.attribution.Get(key); ok {
		return cached, nil
	}

	v, err, _ := r.flight.Do("digests:"+key, func() (interface{}, error) {
		return r.queryDigests(ctx, c.ID)
	})
	if err != nil {
		return nil, err
	}
	attribution := v.(results.Attribution)
	r.attribution.Add(key, attribution)
	return attribution, nil
}

func (r *ChainReader) queryDigests(ctx context.Context, campaignID string) (results.Attribution, error) {
	logger.Debug("querying campaign transactions...", zap.String("campaign", campaignID))

	query := blockchain.TransactionQuery{
		Filter:  &blockchain.TransactionFilter{ChangedObject: campaignID},
		Options: &blockchain.TransactionResponseOptions{ShowInput: true, ShowEffects: true},
	}
	attribution := make(results.Attribution)
	var cursor *string
	for {
		page, err := retryRead(ctx, r, "QueryTransactionBlocks", func(ctx context.Context) (*blockchain.TransactionPage, error) {
			return r.ledger.QueryTransactionBlocks(ctx, query, cursor, queryPageSize)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "query transactions of %s", campaignID)
		}
		for _, tx := range page.Data {
			sender := tx.Sender()
			if sender == "" || (tx.Effects != nil && !tx.Succeeded()) {
				continue
			}
			// oldest first, so a later response overrides the creation tx
			attribution[model.NormalizeAddress(sender)] = tx.Digest
		}
		if !page.HasNextPage || page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}

	logger.Debug("querying campaign transactions... done", zap.Int("senders", len(attribution)))
	return attribution, nil
}
