package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"campaignclient/internal/logger"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "campaignctl",
		Usage: "create, answer and watch sponsored ledger campaigns",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env",
				Usage: "dotenv files to load before the environment",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Commands: []*cli.Command{
			watchCmd,
			campaignCmd,
			mineCmd,
			resultsCmd,
			createCmd,
			respondCmd,
			sponsorshipCmd,
			explorerCmd,
		},
		After: func(*cli.Context) error {
			logger.Sync()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "campaignctl: %v\n", err)
		os.Exit(1)
	}
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
