/**
 * @description
 * Scheduled maintenance jobs of the person service. They only touch the event
 * outbox: published rows are purged after the retention window and the
 * backlog gauge is refreshed.
 */
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/store"
)

const jobTimeout = 30 * time.Second

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	outbox    store.OutboxRepository
	retention time.Duration
	log       logrus.FieldLogger
	metrics   *metrics
}

func NewJobs(outbox store.OutboxRepository, retention time.Duration, logger logrus.FieldLogger) *Jobs {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Jobs{
		outbox:    outbox,
		retention: retention,
		log:       logger.WithField("component", "jobs"),
		metrics:   getMetrics(),
	}
}

// PurgePublishedOutbox deletes published outbox rows older than the retention
// window.
func (j *Jobs) PurgePublishedOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	purged, err := j.outbox.PurgePublishedOutbox(ctx, j.retention)
	if err != nil {
		j.log.WithField("err", err).Error("failed to purge published outbox messages")
		return
	}
	j.metrics.outboxPurged.Add(float64(purged))
	j.log.WithFields(logrus.Fields{"purged": purged, "retention": j.retention.String()}).Info("outbox purge job finished")
}

// RefreshOutboxBacklog updates the pending-messages gauge.
func (j *Jobs) RefreshOutboxBacklog() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	pending, err := j.outbox.CountPendingOutbox(ctx)
	if err != nil {
		j.log.WithField("err", err).Error("failed to count pending outbox messages")
		return
	}
	j.metrics.outboxPending.Set(float64(pending))
}
