package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"paytrack/internal/app"
)

// JobScheduler drives the recurring entry points: a daily occurrence
// generation pass and the notification jobs. Both are safe against double
// triggering: generation sits behind the job-run ledger and notification
// deliveries behind the delivery-log dedup, so the cron specs only decide
// when work is attempted, not how often it takes effect.
type JobScheduler struct {
	cronEngine            *cron.Cron
	generation            *app.GenerationService
	notificationJobs      *app.NotificationJobsService
	logger                *logrus.Logger
	horizonDays           int
	cronSpecGeneration    string
	cronSpecNotifications string
}

func NewJobScheduler(
	generation *app.GenerationService,
	notificationJobs *app.NotificationJobsService,
	logger *logrus.Logger,
	horizonDays int,
	cronSpecGeneration string,
	cronSpecNotifications string,
) *JobScheduler {
	return &JobScheduler{
		cronEngine:            cron.New(cron.WithLocation(time.Local)),
		generation:            generation,
		notificationJobs:      notificationJobs,
		logger:                logger,
		horizonDays:           horizonDays,
		cronSpecGeneration:    cronSpecGeneration,
		cronSpecNotifications: cronSpecNotifications,
	}
}

func (s *JobScheduler) Start() {
	s.logger.Info("Starting job scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecGeneration, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		today := time.Now()
		result, err := s.generation.RunOncePerDay(ctx, today, s.horizonDays)
		if err != nil {
			s.logger.WithError(err).Error("Daily occurrence generation failed")
			return
		}
		if !result.Ran {
			s.logger.Debug("Daily occurrence generation already claimed for today")
		}
	})
	if err != nil {
		s.logger.WithError(err).Fatal("Could not add occurrence generation cron job")
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecNotifications, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		now := time.Now()
		if _, err := s.notificationJobs.Run(ctx, now, now, false); err != nil {
			s.logger.WithError(err).Error("Notification jobs run failed")
		}
	})
	if err != nil {
		s.logger.WithError(err).Fatal("Could not add notification jobs cron job")
	}

	s.cronEngine.Start()
	s.logger.Info("Job scheduler started with jobs.")
}

// RunStartupGeneration runs one guarded generation pass immediately, so a
// freshly started instance does not wait for the next cron trigger.
func (s *JobScheduler) RunStartupGeneration(ctx context.Context) {
	result, err := s.generation.RunOncePerDay(ctx, time.Now(), s.horizonDays)
	if err != nil {
		s.logger.WithError(err).Error("Startup occurrence generation failed")
		return
	}
	if result.Ran {
		s.logger.WithFields(logrus.Fields{
			"generated": result.Result.GeneratedCount,
			"skipped":   result.Result.SkippedExistingCount,
		}).Info("Startup occurrence generation completed")
	}
}

func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs to finish.
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped.")
}
