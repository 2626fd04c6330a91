package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	sentNotificationRetention = 30 * 24 * time.Hour
	cronJobTimeout            = 5 * time.Minute
)

// RateLimitCleaner removes expired rate limit records
type RateLimitCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron             *cron.Cron
	dispatcher       *NotificationDispatcher
	reservations     *ReservationService
	rateLimits       RateLimitCleaner
	dispatchInterval time.Duration
	logger           *logrus.Logger
}

// NewCronService creates a new CronService. rateLimits may be nil when the
// limiter keeps no rows to clean up.
func NewCronService(
	dispatcher *NotificationDispatcher,
	reservations *ReservationService,
	rateLimits RateLimitCleaner,
	dispatchInterval time.Duration,
	logger *logrus.Logger,
) *CronService {
	if dispatchInterval <= 0 {
		dispatchInterval = 30 * time.Second
	}
	return &CronService{
		cron:             cron.New(cron.WithSeconds()),
		dispatcher:       dispatcher,
		reservations:     reservations,
		rateLimits:       rateLimits,
		dispatchInterval: dispatchInterval,
		logger:           logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Job 1: Deliver due notifications. Writers also kick the dispatcher
	// directly; this catches retries and anything missed.
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.dispatchInterval), s.dispatchNotificationsJob); err != nil {
		return fmt.Errorf("failed to schedule notification dispatch job: %w", err)
	}
	s.logger.WithField("interval", s.dispatchInterval.String()).Info("Scheduled: Dispatch notifications")

	// Job 2: Hourly housekeeping
	// "0 0 * * * *" = At minute 0 of every hour
	if _, err := s.cron.AddFunc("0 0 * * * *", s.cleanupJob); err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	s.logger.Info("Scheduled: Cleanup rate limits and sent notifications (Hourly)")

	// Job 3: Close out finished stays daily at 4 AM
	// "0 0 4 * * *" = At 4:00 AM every day
	if _, err := s.cron.AddFunc("0 0 4 * * *", s.completePastStaysJob); err != nil {
		return fmt.Errorf("failed to schedule complete past stays job: %w", err)
	}
	s.logger.Info("Scheduled: Complete past stays (Daily at 4:00 AM)")

	s.cron.Start()
	s.logger.Info("Cron service started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) dispatchNotificationsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	if _, err := s.dispatcher.DispatchDue(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to dispatch notifications")
	}
}

func (s *CronService) cleanupJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()
	startTime := time.Now()

	if s.rateLimits != nil {
		deleted, err := s.rateLimits.Cleanup(ctx)
		if err != nil {
			s.logger.WithError(err).Error("[CRON] Failed to cleanup rate limits")
		} else if deleted > 0 {
			s.logger.WithField("deleted", deleted).Info("[CRON] Cleaned up rate limit records")
		}
	}

	purged, err := s.dispatcher.PurgeSent(ctx, sentNotificationRetention)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to purge sent notifications")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"purged":   purged,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Cleanup finished")
}

func (s *CronService) completePastStaysJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()
	startTime := time.Now()

	completed, err := s.reservations.CompletePastStays(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to complete past stays")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"completed": completed,
		"duration":  time.Since(startTime).String(),
	}).Info("[CRON] Completed past stays")
}

// RunDispatchNow runs the notification dispatch job immediately
func (s *CronService) RunDispatchNow() {
	s.logger.Info("[MANUAL] Running notification dispatch now...")
	s.dispatchNotificationsJob()
}

// RunCleanupNow runs the housekeeping job immediately
func (s *CronService) RunCleanupNow() {
	s.logger.Info("[MANUAL] Running cleanup now...")
	s.cleanupJob()
}

// RunCompletePastStaysNow runs the stay completion job immediately
func (s *CronService) RunCompletePastStaysNow() {
	s.logger.Info("[MANUAL] Running complete past stays now...")
	s.completePastStaysJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
