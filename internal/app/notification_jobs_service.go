package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"paytrack/internal/domain/job"
	"paytrack/internal/domain/notification"
	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
	"paytrack/internal/domain/settings"
	"paytrack/internal/domain/telegram"
)

const (
	// NotificationJobsJobName is the job-run ledger name for the daily
	// notification pass.
	NotificationJobsJobName = "run_notification_jobs"

	telegramSendMaxAttempts = 3
	telegramRetryDelay      = 250 * time.Millisecond

	// digestDedupKey buckets the due-soon and overdue digests to one per
	// day; dailyDedupKey does the same for the summary.
	digestDedupKey = "digest"
	dailyDedupKey  = "daily"
)

// NotificationJobsResult reports one notification pass.
type NotificationJobsResult struct {
	Ran                   bool
	JobName               string
	RunDate               time.Time
	DailySummaryCreated   int
	DueSoonCreated        int
	OverdueCreated        int
	TelegramSent          int
	TelegramErrors        int
	DailySummaryDeferred  bool
	DailySummaryReadyTime string
}

// NotificationJobsService builds the due-soon, overdue and daily-summary
// digests, records them in-app at most once per day through the delivery-log
// claim, and optionally delivers them over Telegram with bounded retries.
type NotificationJobsService struct {
	settings      settings.Repository
	occurrences   payment.OccurrenceRepository
	notifications notification.Repository
	jobs          job.Repository
	telegram      telegram.Client
	logger        *logrus.Logger

	// sleep is swapped in tests; production uses time.Sleep.
	sleep func(time.Duration)
}

func NewNotificationJobsService(
	settingsRepo settings.Repository,
	occurrences payment.OccurrenceRepository,
	notifications notification.Repository,
	jobs job.Repository,
	telegramClient telegram.Client,
	logger *logrus.Logger,
) *NotificationJobsService {
	return &NotificationJobsService{
		settings:      settingsRepo,
		occurrences:   occurrences,
		notifications: notifications,
		jobs:          jobs,
		telegram:      telegramClient,
		logger:        logger,
		sleep:         time.Sleep,
	}
}

type digestRows struct {
	dueSoon    []*payment.OccurrenceRow
	overdue    []*payment.OccurrenceRow
	dueToday   []*payment.OccurrenceRow
	dueSoonEnd time.Time
}

func (s *NotificationJobsService) loadDigestRows(ctx context.Context, today time.Time, as *settings.AppSettings) (*digestRows, error) {
	scheduled, err := s.occurrences.ListScheduled(ctx)
	if err != nil {
		return nil, err
	}

	dueSoonDays := as.DueSoonDays
	if dueSoonDays < 0 {
		dueSoonDays = 0
	}
	result := &digestRows{dueSoonEnd: today.AddDate(0, 0, dueSoonDays)}
	for _, row := range scheduled {
		due := schedule.DateOnly(row.DueDate)
		switch {
		case due.Before(today):
			result.overdue = append(result.overdue, row)
		case !due.After(result.dueSoonEnd):
			result.dueSoon = append(result.dueSoon, row)
		}
		if due.Equal(today) {
			result.dueToday = append(result.dueToday, row)
		}
	}
	return result, nil
}

// DueSoonDigest renders the due-soon digest for on-demand consumers (the
// bot's /duesoon command) without touching the delivery log.
func (s *NotificationJobsService) DueSoonDigest(ctx context.Context, today time.Time) (Digest, error) {
	today = schedule.DateOnly(today)
	_, as, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return Digest{}, err
	}
	rows, err := s.loadDigestRows(ctx, today, as)
	if err != nil {
		return Digest{}, err
	}
	return buildDueSoonDigest(rows.dueSoon, rows.dueSoonEnd), nil
}

// OverdueDigest renders the overdue digest on demand.
func (s *NotificationJobsService) OverdueDigest(ctx context.Context, today time.Time) (Digest, error) {
	today = schedule.DateOnly(today)
	_, as, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return Digest{}, err
	}
	rows, err := s.loadDigestRows(ctx, today, as)
	if err != nil {
		return Digest{}, err
	}
	return buildOverdueDigest(rows.overdue), nil
}

// DailySummaryDigest renders the daily summary on demand.
func (s *NotificationJobsService) DailySummaryDigest(ctx context.Context, today time.Time) (Digest, error) {
	today = schedule.DateOnly(today)
	ps, as, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return Digest{}, err
	}
	rows, err := s.loadDigestRows(ctx, today, as)
	if err != nil {
		return Digest{}, err
	}
	unread, err := s.notifications.CountUnread(ctx)
	if err != nil {
		return Digest{}, err
	}
	return buildDailySummaryDigest(today, rows.dueToday, rows.dueSoon, rows.overdue, unread, ps.Timezone), nil
}

// summaryGate reports whether the daily summary may go out yet: the local
// clock in the configured timezone must have passed the configured HH:MM.
// Malformed configuration opens the gate rather than silencing the summary.
func summaryGate(ps *settings.PaySchedule, as *settings.AppSettings, now time.Time) (bool, string) {
	readyTime, err := normalizeSummaryTime(as.DailySummaryTime)
	if err != nil {
		return true, ""
	}
	var hour, minute int
	fmt.Sscanf(readyTime, "%d:%d", &hour, &minute)

	localNow := now
	if loc, locErr := time.LoadLocation(ps.Timezone); locErr == nil {
		localNow = now.In(loc)
	}

	ready := localNow.Hour() > hour || (localNow.Hour() == hour && localNow.Minute() >= minute)
	return ready, fmt.Sprintf("%s %s", readyTime, ps.Timezone)
}

// Run executes the notification jobs. Deduplication is carried by the
// delivery-log unique constraint, so the method is safe to call any number
// of times per day. forceDailySummary bypasses the summary time gate
// (used by the bot's on-demand command).
func (s *NotificationJobsService) Run(ctx context.Context, today time.Time, now time.Time, forceDailySummary bool) (*NotificationJobsResult, error) {
	today = schedule.DateOnly(today)
	result := &NotificationJobsResult{Ran: true, JobName: NotificationJobsJobName, RunDate: today}

	ps, as, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.loadDigestRows(ctx, today, as)
	if err != nil {
		return nil, err
	}

	if len(rows.dueSoon) > 0 {
		digest := buildDueSoonDigest(rows.dueSoon, rows.dueSoonEnd)
		created, err := s.createInAppIfNew(ctx, notification.TypeDueSoon, digestDedupKey, today, digest)
		if err != nil {
			return nil, err
		}
		if created {
			result.DueSoonCreated = 1
		}
		sent, errored, err := s.maybeSendTelegram(ctx, notification.TypeDueSoon, digestDedupKey, today, digest.TelegramText, as)
		if err != nil {
			return nil, err
		}
		result.TelegramSent += sent
		result.TelegramErrors += errored
	}

	if len(rows.overdue) > 0 {
		digest := buildOverdueDigest(rows.overdue)
		created, err := s.createInAppIfNew(ctx, notification.TypeOverdue, digestDedupKey, today, digest)
		if err != nil {
			return nil, err
		}
		if created {
			result.OverdueCreated = 1
		}
		sent, errored, err := s.maybeSendTelegram(ctx, notification.TypeOverdue, digestDedupKey, today, digest.TelegramText, as)
		if err != nil {
			return nil, err
		}
		result.TelegramSent += sent
		result.TelegramErrors += errored
	}

	unread, err := s.notifications.CountUnread(ctx)
	if err != nil {
		return nil, err
	}
	summary := buildDailySummaryDigest(today, rows.dueToday, rows.dueSoon, rows.overdue, unread, ps.Timezone)

	allowed, readyTime := summaryGate(ps, as, now)
	result.DailySummaryReadyTime = readyTime
	result.DailySummaryDeferred = !allowed && !forceDailySummary
	if allowed || forceDailySummary {
		created, err := s.createInAppIfNew(ctx, notification.TypeDailySummary, dailyDedupKey, today, summary)
		if err != nil {
			return nil, err
		}
		if created {
			result.DailySummaryCreated = 1
		}
		sent, errored, err := s.maybeSendTelegram(ctx, notification.TypeDailySummary, dailyDedupKey, today, summary.TelegramText, as)
		if err != nil {
			return nil, err
		}
		result.TelegramSent += sent
		result.TelegramErrors += errored
	}

	return result, nil
}

// RunOncePerDay runs the notification jobs behind the job-run ledger guard.
func (s *NotificationJobsService) RunOncePerDay(ctx context.Context, today time.Time, now time.Time) (*NotificationJobsResult, error) {
	today = schedule.DateOnly(today)

	claimed, err := s.jobs.TryMarkRun(ctx, NotificationJobsJobName, today)
	if err != nil {
		return nil, fmt.Errorf("failed to claim daily notification run: %w", err)
	}
	if !claimed {
		return &NotificationJobsResult{Ran: false, JobName: NotificationJobsJobName, RunDate: today}, nil
	}
	return s.Run(ctx, today, now, false)
}

// createInAppIfNew claims the in-app delivery slot for the day and, when the
// claim succeeds, writes the notification row.
func (s *NotificationJobsService) createInAppIfNew(ctx context.Context, t notification.Type, dedupKey string, bucketDate time.Time, digest Digest) (bool, error) {
	claimed, err := s.notifications.TryLogDelivery(ctx, t, notification.ChannelInApp, bucketDate, dedupKey, nil)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	n := &notification.Notification{Type: t, Title: digest.Title, Body: digest.Body}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// maybeSendTelegram delivers one digest over Telegram when the channel is
// configured. The pending delivery-log row doubles as the per-day dedup
// claim; once a day's chain ends in an error it is not retried again until
// the next day, which keeps connectivity failures from turning into spam.
// Returns (sent, errored) as 0/1 counters.
func (s *NotificationJobsService) maybeSendTelegram(ctx context.Context, t notification.Type, dedupKey string, bucketDate time.Time, text string, as *settings.AppSettings) (int, int, error) {
	if s.telegram == nil || !as.TelegramEnabled || !as.TelegramBotToken.Valid || !as.TelegramChatID.Valid {
		return 0, 0, nil
	}

	logRow, err := s.notifications.CreateDeliveryLog(ctx, &notification.DeliveryLog{
		Type:       t,
		Channel:    notification.ChannelTelegram,
		BucketDate: bucketDate,
		DedupKey:   dedupKey,
		Status:     notification.DeliveryPending,
	})
	if err != nil {
		return 0, 0, err
	}
	if logRow == nil {
		// Already delivered (or terminally failed) today.
		return 0, 0, nil
	}

	chatID, parseErr := strconv.ParseInt(as.TelegramChatID.String, 10, 64)
	if parseErr != nil {
		finalizeErr := s.notifications.FinalizeDeliveryLog(ctx, logRow.ID, notification.DeliveryError,
			fmt.Sprintf("invalid telegram chat id %q", as.TelegramChatID.String), "", nil)
		if finalizeErr != nil {
			return 0, 0, finalizeErr
		}
		return 0, 1, nil
	}

	options := &telebot.SendOptions{ParseMode: telebot.ModeMarkdownV2}
	var lastErr error
	for attempt := 1; attempt <= telegramSendMaxAttempts; attempt++ {
		sendErr := s.telegram.SendMessage(chatID, text, options)
		if sendErr == nil {
			deliveredAt := time.Now()
			if err := s.notifications.FinalizeDeliveryLog(ctx, logRow.ID, notification.DeliverySent, "", "", &deliveredAt); err != nil {
				return 0, 0, err
			}
			return 1, 0, nil
		}

		lastErr = sendErr
		var deliveryErr *telegram.DeliveryError
		if !errors.As(sendErr, &deliveryErr) || !deliveryErr.Retryable || attempt >= telegramSendMaxAttempts {
			break
		}
		s.sleep(telegramRetryDelay)
	}

	s.logger.WithError(lastErr).WithField("type", t).Warn("telegram delivery failed")
	if err := s.notifications.FinalizeDeliveryLog(ctx, logRow.ID, notification.DeliveryError, lastErr.Error(), "", nil); err != nil {
		return 0, 0, err
	}
	return 0, 1, nil
}
