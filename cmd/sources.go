package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func sourcesCmd() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List the configured sources",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			for _, source := range cfg.Sources {
				fmt.Printf("%-24s %s\n", source.Label, source.Url)
			}
			return nil
		},
	}
}
