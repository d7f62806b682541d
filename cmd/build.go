package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"techfeed/config"
	"techfeed/feeds"
)

func buildCmd() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Fetch all sources once and write the artifact",
		Description: `Fetches every configured source concurrently and writes the merged
		items to the artifact, newest first.

		A source that fails to fetch or parse is logged and skipped. Items that
		lack a usable date keep the date recorded for their link in the previous
		artifact.`,
		Flags: []cli.Flag{
			configFlag(),
			outputFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			aggregator, err := newAggregator(cfg)
			if err != nil {
				return err
			}

			items, err := aggregator.Aggregate(ctx.Context, cfg.Sources)
			if err != nil {
				return err
			}

			fmt.Printf("Saved %d items to %s\n", len(items), aggregator.Output())
			return nil
		},
	}
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if output := ctx.String("output"); output != "" {
		cfg.Output = output
	}
	return cfg, nil
}

func newAggregator(cfg *config.Config) (*feeds.Aggregator, error) {
	fetcher := feeds.NewGofeedFetcher(feeds.FetcherConfig{
		Headers:            cfg.Headers,
		Timeout:            cfg.FetchTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})

	var opts []feeds.Option
	if len(cfg.Languages) > 0 {
		tagger, err := feeds.NewLanguageTagger(cfg.Languages)
		if err != nil {
			return nil, err
		}
		opts = append(opts, feeds.WithLanguageTagger(tagger))
	}

	log.WithFields(log.Fields{
		"sources": len(cfg.Sources),
		"output":  cfg.Output,
		"timeout": cfg.FetchTimeout,
	}).Info("Configured aggregator")

	return feeds.NewAggregator(fetcher, cfg.Output, opts...), nil
}
