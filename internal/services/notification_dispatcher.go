package services

import (
	"context"
	"sync"
	"time"

	"github.com/riadtaziri/booking-backend/internal/metrics"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/pkg/mailer"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	maxNotificationBackoff = time.Hour
	staleSendingAfter      = 10 * time.Minute
)

// DispatcherConfig tunes outbox delivery
type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	RatePerSec  float64
	Burst       int
}

// NotificationDispatcher delivers outbox jobs at least once. A failed job is
// rescheduled with exponential backoff until MaxAttempts, then marked dead.
type NotificationDispatcher struct {
	store   NotificationStore
	mailer  mailer.Mailer
	limiter *rate.Limiter
	cfg     DispatcherConfig
	kick    chan struct{}
	mu      sync.Mutex
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewNotificationDispatcher creates a new dispatcher
func NewNotificationDispatcher(
	store NotificationStore,
	m mailer.Mailer,
	cfg DispatcherConfig,
	met *metrics.Metrics,
	logger *logrus.Logger,
) *NotificationDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &NotificationDispatcher{
		store:   store,
		mailer:  m,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cfg:     cfg,
		kick:    make(chan struct{}, 1),
		now:     time.Now,
		metrics: met,
		logger:  logger,
	}
}

// Kick asks Run to dispatch soon. It never blocks.
func (d *NotificationDispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run dispatches whenever kicked until ctx is cancelled
func (d *NotificationDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			d.mu.Lock()
			_, err := d.dispatchLocked(ctx)
			d.mu.Unlock()
			if err != nil && ctx.Err() == nil {
				d.logger.WithError(err).Error("Notification dispatch failed")
			}
		}
	}
}

// DispatchDue claims a batch of due jobs and tries each once. It returns the
// number of jobs delivered. While another batch is in flight it returns at once
// and leaves a kick so Run picks the work up after that batch.
func (d *NotificationDispatcher) DispatchDue(ctx context.Context) (int, error) {
	if !d.mu.TryLock() {
		d.Kick()
		return 0, nil
	}
	defer d.mu.Unlock()
	return d.dispatchLocked(ctx)
}

func (d *NotificationDispatcher) dispatchLocked(ctx context.Context) (int, error) {
	jobs, err := d.store.ClaimDue(ctx, d.now(), d.cfg.BatchSize, staleSendingAfter)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range jobs {
		if err := d.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if d.deliver(ctx, &jobs[i]) {
			sent++
		}
	}

	if depth, err := d.store.CountPending(ctx); err == nil {
		d.metrics.SetQueueDepth(depth)
	}

	if len(jobs) > 0 {
		d.logger.WithFields(logrus.Fields{
			"claimed": len(jobs),
			"sent":    sent,
			"mailer":  d.mailer.GetName(),
		}).Info("Notification batch dispatched")
	}
	return sent, nil
}

// deliver sends one job and records the outcome
func (d *NotificationDispatcher) deliver(ctx context.Context, job *models.NotificationJob) bool {
	msg := mailer.Message{
		To:      job.Recipient,
		Subject: job.Subject,
		HTML:    job.HTML,
	}
	if job.Text != nil {
		msg.Text = *job.Text
	}

	attempts := job.Attempts + 1
	sendErr := d.mailer.Send(ctx, msg)
	log := d.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"kind":      job.Kind,
		"recipient": job.Recipient,
		"attempt":   attempts,
	})

	if sendErr == nil {
		d.metrics.IncNotification("sent", string(job.Kind))
		if err := d.store.MarkSent(ctx, job.ID, attempts); err != nil {
			log.WithError(err).Error("Failed to mark notification sent")
		}
		return true
	}

	if attempts >= d.cfg.MaxAttempts {
		d.metrics.IncNotification("dead", string(job.Kind))
		log.WithError(sendErr).Error("Notification failed permanently")
		if err := d.store.MarkDead(ctx, job.ID, attempts, sendErr.Error()); err != nil {
			log.WithError(err).Error("Failed to mark notification dead")
		}
		return false
	}

	next := d.now().Add(notificationBackoff(d.cfg.BaseBackoff, job.Attempts))
	d.metrics.IncNotification("retry", string(job.Kind))
	log.WithError(sendErr).WithField("next_attempt_at", next).Warn("Notification failed, will retry")
	if err := d.store.MarkRetry(ctx, job.ID, attempts, next, sendErr.Error()); err != nil {
		log.WithError(err).Error("Failed to reschedule notification")
	}
	return false
}

// notificationBackoff is base * 2^priorAttempts, capped at one hour
func notificationBackoff(base time.Duration, priorAttempts int) time.Duration {
	if priorAttempts < 0 {
		priorAttempts = 0
	}
	if priorAttempts > 16 {
		return maxNotificationBackoff
	}
	delay := base << uint(priorAttempts)
	if delay <= 0 || delay > maxNotificationBackoff {
		return maxNotificationBackoff
	}
	return delay
}

// PurgeSent removes delivered jobs older than the retention period
func (d *NotificationDispatcher) PurgeSent(ctx context.Context, retention time.Duration) (int64, error) {
	return d.store.PurgeSent(ctx, d.now().Add(-retention))
}
