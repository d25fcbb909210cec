package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campaignclient/internal/campaigns"
	"campaignclient/internal/config"
	"campaignclient/internal/explorer"
	"campaignclient/internal/logger"
	"campaignclient/internal/metrics"
	"campaignclient/internal/model"
	"campaignclient/internal/results"
	"campaignclient/internal/tracker"
	"campaignclient/internal/txbuilder"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "poll campaigns until interrupted and log every snapshot",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "campaign",
			Usage: "campaign ids to watch; all registry campaigns when omitted",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve prometheus metrics on this address, e.g. :9100",
		},
	},
	Action: withNode(runWatch),
}

func runWatch(ctx context.Context, cctx *cli.Context, n *node) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := cctx.String("metrics-addr"); addr != "" {
		serveMetrics(ctx, addr)
	}

	var status tracker.SponsorStatus
	if n.sponsor != nil {
		status = n.sponsor
	}
	t := tracker.NewTracker(n.reader, n.recovery, n.store, status, tracker.Options{
		Interval: n.cfg.PollInterval,
		Holder:   n.service.Address(),
		Identity: n.identity,
		Watch:    cctx.StringSlice("campaign"),
	})
	t.Subscribe(logSnapshot)

	errCh := make(chan error, 1)
	go func() {
		errCh <- t.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForInterrupt():
		logger.Info("interrupt received, stopping tracker")
		cancel()
		<-errCh
		return nil
	}
}

func logSnapshot(s *tracker.Snapshot) {
	locked := 0
	for _, outcome := range s.Recovery {
		if !outcome.Unlocked {
			locked++
		}
	}
	fields := []zap.Field{
		zap.Int("campaigns", len(s.Campaigns)),
		zap.Int("locked", locked),
		zap.Time("refreshed at", s.RefreshedAt),
	}
	if s.Sponsorship != nil {
		fields = append(fields,
			zap.Uint64("remaining campaigns", s.Sponsorship.Remaining.Campaigns),
			zap.Uint64("remaining responses", s.Sponsorship.Remaining.Responses))
	}
	logger.Info("snapshot", fields...)
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

var campaignCmd = &cli.Command{
	Name:      "campaign",
	Usage:     "show a campaign, unlocking it when possible",
	ArgsUsage: "<campaign id>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "password",
			Usage: "password to unlock an encrypted campaign",
		},
	},
	Action: withNode(func(ctx context.Context, cctx *cli.Context, n *node) error {
		id, err := campaignArg(cctx)
		if err != nil {
			return err
		}
		var view *campaigns.View
		if password := cctx.String("password"); password != "" {
			view, err = n.service.Unlock(ctx, id, password)
		} else {
			view, err = n.service.View(ctx, id)
		}
		if err != nil {
			return err
		}
		printView(cctx.App.Writer, view, explorer.For(n.network.Name))
		return nil
	}),
}

func printView(w io.Writer, v *campaigns.View, links explorer.URLs) {
	c := v.Campaign
	fmt.Fprintf(w, "%s\n", v.Title)
	if v.Description != "" {
		fmt.Fprintf(w, "%s\n", v.Description)
	}
	if !v.Unlocked {
		fmt.Fprintf(w, "locked: %s\n", v.LockReason)
	}
	fmt.Fprintf(w, "status:    %s (ends %s)\n", v.Status, time.UnixMilli(c.EndTime).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "creator:   %s\n", model.ShortAddress(c.Creator))
	fmt.Fprintf(w, "access:    %s\n", c.AccessType)
	fmt.Fprintf(w, "responses: %d\n", c.TotalResponses)
	fmt.Fprintf(w, "you:       creator=%t responded=%t can respond=%t\n", v.IsCreator, v.HasResponded, v.CanRespond)
	for i, q := range c.Questions {
		required := ""
		if q.Required {
			required = " *"
		}
		fmt.Fprintf(w, "  %d. [%s] %s%s\n", i, q.Type, q.Text, required)
		for j, option := range q.Options {
			fmt.Fprintf(w, "       %d) %s\n", j, option)
		}
		if value, ok := v.MyAnswers[i]; ok {
			fmt.Fprintf(w, "       you: %s\n", answerText(&c.Questions[i], value))
		}
	}
	fmt.Fprintf(w, "%s\n", links.Object(c.ID))
}

// answerText renders a stored answer with option labels in place of indices.
func answerText(q *model.Question, value string) string {
	if !q.Type.IsChoice() {
		return value
	}
	selected, err := txbuilder.DecodeAnswer(q, value)
	if err != nil {
		logger.Debug("cannot decode stored answer", zap.String("value", value), zap.Error(err))
		return value
	}
	labels := make([]string, len(selected))
	for i, option := range selected {
		labels[i] = q.Options[option]
	}
	return strings.Join(labels, ", ")
}

var mineCmd = &cli.Command{
	Name:  "mine",
	Usage: "list the campaigns created by the configured account",
	Action: withNode(func(ctx context.Context, cctx *cli.Context, n *node) error {
		if n.service.Address() == "" {
			return errors.New("no account configured")
		}
		views, err := n.service.MyCampaigns(ctx)
		if err != nil {
			return err
		}
		printMine(cctx.App.Writer, views)
		return nil
	}),
}

func printMine(w io.Writer, views []*campaigns.View) {
	if len(views) == 0 {
		fmt.Fprintln(w, "no campaigns yet")
		return
	}
	for _, v := range views {
		title := v.Title
		if !v.Unlocked {
			title = "(locked)"
		}
		fmt.Fprintf(w, "%s  %-7s %4d responses  %s\n", v.Campaign.ID, v.Status, v.Campaign.TotalResponses, title)
	}
}

var resultsCmd = &cli.Command{
	Name:      "results",
	Usage:     "aggregate the responses of a campaign",
	ArgsUsage: "<campaign id>",
	Action: withNode(func(ctx context.Context, cctx *cli.Context, n *node) error {
		id, err := campaignArg(cctx)
		if err != nil {
			return err
		}
		res, err := n.service.Results(ctx, id)
		if err != nil {
			return err
		}
		printResults(cctx.App.Writer, res, explorer.For(n.network.Name))
		return nil
	}),
}

func printResults(w io.Writer, res *results.CampaignResults, links explorer.URLs) {
	fmt.Fprintf(w, "%s: %s, %d responses\n", res.CampaignID, res.Status, res.TotalResponses)
	for _, q := range res.Questions {
		fmt.Fprintf(w, "  %d. %s\n", q.Index, q.Text)
		if q.Type.IsChoice() {
			for i, option := range q.Options {
				marker := " "
				if q.Winner != nil && *q.Winner == i {
					marker = "*"
				}
				fmt.Fprintf(w, "     %s %-24s %4d %3d%%\n", marker, option.Label, option.Votes, option.Percentage)
			}
			continue
		}
		for _, answer := range q.Answers {
			link := ""
			if answer.TxDigest != "" {
				link = "  " + links.Transaction(answer.TxDigest)
			}
			fmt.Fprintf(w, "     %s: %s%s\n", answer.Respondent, answer.Text, link)
		}
	}
}

var createCmd = &cli.Command{
	Name:  "create",
	Usage: "create a sponsored campaign from a json file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Usage:    "campaign json file",
			Required: true,
		},
	},
	Action: withNode(func(ctx context.Context, cctx *cli.Context, n *node) error {
		req, err := loadCampaignFile(cctx.String("file"), time.Now())
		if err != nil {
			return err
		}
		res, err := n.service.Create(ctx, req)
		if res != nil && res.Digest != "" {
			fmt.Fprintf(cctx.App.Writer, "transaction: %s\n", explorer.For(n.network.Name).Transaction(res.Digest))
		}
		if err != nil {
			return err
		}
		w := cctx.App.Writer
		if res.CampaignID != "" {
			fmt.Fprintf(w, "campaign:    %s\n", res.CampaignID)
		} else {
			fmt.Fprintf(w, "campaign id not found yet: %v\n", res.LookupErr)
		}
		if res.Password != "" {
			fmt.Fprintf(w, "password:    %s\n", res.Password)
		}
		return nil
	}),
}

var respondCmd = &cli.Command{
	Name:      "respond",
	Usage:     "submit a sponsored response",
	ArgsUsage: "<campaign id>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "answer",
			Usage:    "index=value; multiple choice takes comma separated labels",
			Required: true,
		},
	},
	Action: withNode(func(ctx context.Context, cctx *cli.Context, n *node) error {
		id, err := campaignArg(cctx)
		if err != nil {
			return err
		}
		view, err := n.service.View(ctx, id)
		if err != nil {
			return err
		}
		answers, err := parseAnswers(view.Campaign.Questions, cctx.StringSlice("answer"))
		if err != nil {
			return err
		}
		res, err := n.service.Respond(ctx, id, answers)
		if err != nil {
			var pre *campaigns.PreconditionError
			if errors.As(err, &pre) {
				return cli.Exit(pre.Error(), 2)
			}
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "response: %s\n", explorer.For(n.network.Name).Transaction(res.Digest))
		return nil
	}),
}

var sponsorshipCmd = &cli.Command{
	Name:  "sponsorship",
	Usage: "show the sponsorship quota of the configured account",
	Action: withNode(func(ctx context.Context, cctx *cli.Context, n *node) error {
		status, err := n.service.Sponsorship(ctx)
		if err != nil {
			return err
		}
		w := cctx.App.Writer
		fmt.Fprintf(w, "address:   %s\n", status.Address)
		fmt.Fprintf(w, "campaigns: %d/%d used, can sponsor: %t\n", status.Used.Campaigns, status.Limits.MaxCampaigns, status.CanSponsorCampaign)
		fmt.Fprintf(w, "responses: %d/%d used, can sponsor: %t\n", status.Used.Responses, status.Limits.MaxResponses, status.CanSponsorResponse)
		return nil
	}),
}

var explorerCmd = &cli.Command{
	Name:  "explorer",
	Usage: "print explorer links for the configured network",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Usage: "account address"},
		&cli.StringFlag{Name: "object", Usage: "object id"},
		&cli.StringFlag{Name: "tx", Usage: "transaction digest"},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.StringSlice("env")...)
		if err != nil {
			return err
		}
		links := explorer.For(cfg.NetworkConfig().Name)
		w := cctx.App.Writer

		printed := false
		for _, link := range []struct {
			value  string
			render func(string) string
		}{
			{cctx.String("account"), links.Account},
			{cctx.String("object"), links.Object},
			{cctx.String("tx"), links.Transaction},
		} {
			if link.value != "" {
				fmt.Fprintln(w, link.render(link.value))
				printed = true
			}
		}
		if !printed {
			if cfg.RegistryID == "" {
				return errors.New("nothing to link: pass --account, --object or --tx")
			}
			fmt.Fprintln(w, links.Object(cfg.RegistryID))
		}
		return nil
	},
}

func campaignArg(cctx *cli.Context) (string, error) {
	id := strings.TrimSpace(cctx.Args().First())
	if id == "" {
		return "", errors.New("campaign id is required")
	}
	return id, nil
}
