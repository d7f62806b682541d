package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "techfeed",
		Usage: "Aggregate tech blogs into a single reading list",
		Description: `Fetches a configured set of RSS and Atom feeds, normalizes their
		entries and writes them as one JSON artifact sorted newest first.

		The artifact can be read in the browser through the built-in server or
		in the terminal. Starred and read links are kept per reader in an SQLite
		or PostgreSQL database.

		Flags can generally be set via environment variables, e.g.:

		--database => TECHFEED_DATABASE=techfeed.db
		--port => TECHFEED_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"TECHFEED_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text or json)",
				EnvVars: []string{"TECHFEED_LOG_FORMAT"},
			},
		},
		Before: func(ctx *cli.Context) error {
			return setupLogging(ctx.String("log-level"), ctx.String("log-format"))
		},
		Commands: []*cli.Command{
			buildCmd(),
			serveCmd(),
			browseCmd(),
			sourcesCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(level string, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	// Keep stdout for command output
	log.SetOutput(os.Stderr)
	return nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/techfeed.toml",
		Usage:   "Path to the sources configuration file",
		EnvVars: []string{"TECHFEED_CONFIG"},
	}
}

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "techfeed.db",
		Usage:   "SQLite database file or postgres:// connection url",
		EnvVars: []string{"TECHFEED_DATABASE"},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Artifact path, overrides the config file",
		EnvVars: []string{"TECHFEED_OUTPUT"},
	}
}
