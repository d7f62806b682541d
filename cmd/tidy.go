package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"techfeed/artifact"
	"techfeed/db"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing read links that are gone.

		Links marked as read that are no longer part of the artifact are removed
		from every reader's read set. Starred links are always kept.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			outputFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			items, err := artifact.Load(cfg.Output)
			if err != nil {
				return fmt.Errorf("refusing to tidy without an artifact: %w", err)
			}

			database := ctx.String("database")
			log.WithFields(log.Fields{
				"database": database,
			}).Info("Database configured")
			if err := db.Migrate(database); err != nil {
				return err
			}

			store, err := db.NewStore(database)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := db.Tidy(ctx.Context, store, items)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d stale read links\n", removed)
			return nil
		},
	}
}
