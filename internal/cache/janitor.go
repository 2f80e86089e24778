package cache

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/metrics"
)

// DefaultSweepSchedule runs the expiry sweep once a day.
const DefaultSweepSchedule = "@daily"

// Janitor periodically sweeps expired entries so a long-running process
// does not rely solely on lazy purge-on-read.
type Janitor struct {
	cache  *Cache
	cron   *cron.Cron
	logger *zap.Logger
}

func NewJanitor(cache *Cache, logger *zap.Logger) *Janitor {
	return &Janitor{
		cache:  cache,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the sweep on the given cron schedule and starts the
// scheduler.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	_, err := j.cron.AddFunc(schedule, func() {
		removed, err := j.cache.SweepExpired(context.Background())
		if err != nil {
			j.logger.Error("scheduled cache sweep failed", zap.Error(err))
			return
		}
		metrics.CacheSweepsTotal.Inc()
		if removed > 0 {
			j.logger.Info("scheduled cache sweep completed", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}
