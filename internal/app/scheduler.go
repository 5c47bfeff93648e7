package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const backlogSchedule = "@every 1m"

// Scheduler runs the outbox maintenance jobs on cron schedules.
type Scheduler struct {
	cron          *cron.Cron
	jobs          *Jobs
	purgeSchedule string
	log           logrus.FieldLogger
}

func NewScheduler(jobs *Jobs, purgeSchedule string, logger logrus.FieldLogger) *Scheduler {
	log := logger.WithField("component", "scheduler")
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log))))
	return &Scheduler{
		cron:          c,
		jobs:          jobs,
		purgeSchedule: purgeSchedule,
		log:           log,
	}
}

// Start registers the jobs and starts the cron scheduler. A schedule that
// fails to parse is logged and skipped.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.purgeSchedule, s.jobs.PurgePublishedOutbox); err != nil {
		s.log.WithFields(logrus.Fields{"schedule": s.purgeSchedule, "err": err}).Error("failed to schedule outbox purge job")
	} else {
		s.log.WithField("schedule", s.purgeSchedule).Info("scheduled outbox purge job")
	}

	if _, err := s.cron.AddFunc(backlogSchedule, s.jobs.RefreshOutboxBacklog); err != nil {
		s.log.WithField("err", err).Error("failed to schedule outbox backlog job")
	}

	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
