package feeds

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"techfeed/models"
)

// Scheduler rebuilds the artifact periodically. Failed builds are retried
// with exponential backoff, never waiting longer than the interval.
type Scheduler struct {
	aggregator *Aggregator
	sources    []models.FeedSource
	interval   time.Duration

	// First retry delay after a failed build
	RetryInterval time.Duration

	// Called after every successful build
	OnRebuilt func(items []models.FeedItem)
}

func NewScheduler(aggregator *Aggregator, sources []models.FeedSource, interval time.Duration) *Scheduler {
	return &Scheduler{
		aggregator:    aggregator,
		sources:       sources,
		interval:      interval,
		RetryInterval: 10 * time.Second,
	}
}

// Run builds immediately and then on every tick until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.RetryInterval
	retry.MaxInterval = s.interval
	retry.Multiplier = 2
	retry.MaxElapsedTime = 0 // Never stop retrying
	retry.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	log.WithFields(log.Fields{
		"interval": s.interval,
		"sources":  len(s.sources),
	}).Info("Starting rebuild scheduler")

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping rebuild scheduler")
			return
		case <-timer.C:
			delay := s.interval

			items, err := s.aggregator.Aggregate(ctx, s.sources)
			if err != nil {
				delay = min(retry.NextBackOff(), s.interval)
				log.WithFields(log.Fields{
					"error": err,
					"retry": delay,
				}).Error("Rebuild failed")
			} else {
				retry.Reset()
				if s.OnRebuilt != nil {
					s.OnRebuilt(items)
				}
			}

			timer.Reset(delay)
		}
	}
}
