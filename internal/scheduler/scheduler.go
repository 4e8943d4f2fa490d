package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSpec runs a sync every six hours.
const DefaultSpec = "0 */6 * * *"

// RecentSyncer refreshes the most recent days of data. *api.SeriesFetcher
// implements it.
type RecentSyncer interface {
	SyncRecent(ctx context.Context, days int) error
}

type Scheduler struct {
	ctx     context.Context
	syncer  RecentSyncer
	spec    string
	days    int
	timeout time.Duration
	logger  logrus.FieldLogger
	cron    *cron.Cron
}

func NewScheduler(ctx context.Context, syncer RecentSyncer, spec string, days int, logger logrus.FieldLogger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		ctx:     ctx,
		syncer:  syncer,
		spec:    spec,
		days:    days,
		timeout: 10 * time.Minute,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.syncRecent); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("Scheduler started")
	return nil
}

// syncRecent refreshes the recent window and logs failures
func (s *Scheduler) syncRecent() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.syncer.SyncRecent(ctx, s.days); err != nil {
		s.logger.WithError(err).Error("Failed to sync recent data")
		return
	}
	s.logger.WithField("duration", time.Since(start)).Debug("Recent data synced")
}

// Stop the scheduler and wait for a running sync to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
