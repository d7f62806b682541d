package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"techfeed/artifact"
	"techfeed/db"
	"techfeed/feeds"
	"techfeed/models"
	"techfeed/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the tech feed",
		Description: `Starts the tech feed HTTP server and the rebuild scheduler.

		Launches the HTTP server on the specified or default port and rebuilds
		the artifact on the configured interval. Readers get the browser UI on /,
		the raw artifact on /feed.json and a JSON API below /api.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag(),
			outputFlag(),
			&cli.StringFlag{
				Name:    "host",
				Value:   "0.0.0.0",
				Usage:   "Host to listen on",
				EnvVars: []string{"TECHFEED_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"TECHFEED_PORT"},
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Rebuild interval, overrides the config file. 0 disables rebuilding",
				EnvVars: []string{"TECHFEED_INTERVAL"},
			},
			&cli.StringFlag{
				Name:    "cors-origin",
				Usage:   "Allowed CORS origin, e.g. http://localhost:3001",
				EnvVars: []string{"TECHFEED_CORS_ORIGIN"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.IsSet("interval") {
				cfg.Interval = ctx.Duration("interval")
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			store, err := db.NewStore(database)
			if err != nil {
				return err
			}
			defer store.Close()

			aggregator, err := newAggregator(cfg)
			if err != nil {
				return err
			}

			cache := artifact.NewCache(aggregator.Output())
			broadcaster := server.NewBroadcaster()
			app := server.Server(&server.ServerConfig{
				Cache:       cache,
				Store:       store,
				Broadcaster: broadcaster,
				CorsOrigin:  ctx.String("cors-origin"),
			})

			// Graceful shutdown
			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var wg sync.WaitGroup

			if cfg.Interval > 0 {
				scheduler := feeds.NewScheduler(aggregator, cfg.Sources, cfg.Interval)
				scheduler.OnRebuilt = func(items []models.FeedItem) {
					cache.Invalidate()
					broadcaster.BroadcastRebuilt(models.RebuiltEvent{
						Items:     len(items),
						Timestamp: time.Now(),
					})
				}

				wg.Add(1)
				go func() {
					defer wg.Done()
					scheduler.Run(runCtx)
				}()
			} else {
				log.Info("Rebuild interval is 0, serving the existing artifact only")
			}

			listenErr := make(chan error, 1)
			go func() {
				addr := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
				log.WithFields(log.Fields{
					"address": addr,
				}).Info("Starting server")
				listenErr <- app.Listen(addr)
			}()

			select {
			case <-runCtx.Done():
				log.Info("Gracefully shutting down...")
			case err = <-listenErr:
				stop()
			}

			broadcaster.Shutdown()
			if shutdownErr := app.ShutdownWithTimeout(60 * time.Second); shutdownErr != nil {
				log.WithFields(log.Fields{
					"error": shutdownErr,
				}).Error("Error shutting down server")
			}
			wg.Wait()

			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			log.Info("Done!")
			return nil
		},
	}
}
