package main

import (
	"context"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/campaigns"
	"campaignclient/internal/config"
	"campaignclient/internal/executor"
	"campaignclient/internal/logger"
	"campaignclient/internal/reader"
	"campaignclient/internal/recovery"
	"campaignclient/internal/signer"
	"campaignclient/internal/sponsor"
	"campaignclient/internal/storage"
	"campaignclient/internal/txbuilder"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// node is everything a command needs, built once from the configuration.
type node struct {
	cfg      *config.Config
	network  blockchain.NetworkConfig
	client   *blockchain.Client
	reader   *reader.ChainReader
	sponsor  *sponsor.Client
	store    *storage.SqliteStorage
	recovery *recovery.Engine
	signer   signer.Signer
	identity signer.IdentitySource
	service  *campaigns.Service
}

func setup(cctx *cli.Context) (*node, error) {
	cfg, err := config.Load(cctx.StringSlice("env")...)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Logger()); err != nil {
		return nil, errors.Wrap(err, "initialize logger")
	}

	n := &node{cfg: cfg, network: cfg.NetworkConfig()}

	logger.Debug("node initialization: ledger client...", zap.String("endpoint", n.network.Endpoint()))
	if n.client, err = blockchain.NewClient(cctx.Context, n.network); err != nil {
		return nil, err
	}
	n.reader = reader.New(n.client, n.network, reader.Options{
		Attempts: cfg.ReadAttempts,
		Delay:    cfg.ReadDelay,
		RPS:      cfg.ReadRPS,
	})

	logger.Debug("node initialization: storage...", zap.String("path", cfg.DatabasePath))
	if n.store, err = storage.NewSqliteStorage(cfg.DatabasePath); err != nil {
		n.Close()
		return nil, err
	}
	n.recovery = recovery.NewEngine(n.store)

	if n.signer, n.identity, err = newSigner(cfg); err != nil {
		n.Close()
		return nil, err
	}

	deps := campaigns.Dependencies{
		Reader:   n.reader,
		Builder:  txbuilder.New(n.network),
		Storage:  n.store,
		Recovery: n.recovery,
		Signer:   n.signer,
		Identity: n.identity,
	}
	if cfg.SponsorURL != "" {
		n.sponsor = sponsor.NewClient(cfg.SponsorURL)
		deps.Sponsor = n.sponsor
		deps.Executor = executor.New(n.client, n.sponsor, executor.Options{
			ExecuteAttempts:       cfg.ExecuteAttempts,
			ExecuteDelay:          cfg.ExecuteDelay,
			LookupAttempts:        cfg.LookupAttempts,
			LookupDelay:           cfg.LookupDelay,
			AlreadyRespondedAbort: executor.DefaultAlreadyRespondedAbort,
		})
	}
	n.service = campaigns.NewService(deps)

	logger.Debug("node initialization... done",
		zap.String("network", string(n.network.Name)),
		zap.String("address", n.service.Address()),
		zap.Bool("sponsored", n.sponsor != nil))
	return n, nil
}

// newSigner prefers the session secret over the wallet mnemonic. Neither
// being set gives a read-only node.
func newSigner(cfg *config.Config) (signer.Signer, signer.IdentitySource, error) {
	switch {
	case cfg.SessionSecret != "":
		s, err := signer.NewSessionSigner([]byte(cfg.SessionSecret), cfg.SessionExpiry())
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case cfg.WalletMnemonic != "":
		s, err := signer.NewKeypairSigner(cfg.WalletMnemonic)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, nil
	}
}

func (n *node) Close() {
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			logger.Warn("cannot close storage", zap.Error(err))
		}
	}
	if n.client != nil {
		n.client.Close()
	}
}

// withNode runs fn with a node that is closed afterwards.
func withNode(fn func(ctx context.Context, cctx *cli.Context, n *node) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		n, err := setup(cctx)
		if err != nil {
			return err
		}
		defer n.Close()
		return fn(cctx.Context, cctx, n)
	}
}
