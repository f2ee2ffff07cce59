package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/domain/notification"
	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
	"paytrack/internal/domain/telegram"
)

type notificationFixture struct {
	*actionFixture
	settings      *fakeSettingsRepo
	notifications *fakeNotificationRepo
	telegram      *fakeTelegramClient
	jobsService   *NotificationJobsService
	sleeps        []time.Duration
}

func newNotificationFixture() *notificationFixture {
	a := newActionFixture()
	f := &notificationFixture{
		actionFixture: a,
		settings:      newFakeSettingsRepo(),
		notifications: newFakeNotificationRepo(),
		telegram:      &fakeTelegramClient{},
	}
	f.jobsService = NewNotificationJobsService(f.settings, a.occurrences, f.notifications, a.jobs, f.telegram, newTestLogger())
	f.jobsService.sleep = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }
	return f
}

func (f *notificationFixture) enableTelegram(chatID string) {
	f.settings.as.TelegramEnabled = true
	f.settings.as.TelegramBotToken = sql.NullString{String: "token", Valid: true}
	f.settings.as.TelegramChatID = sql.NullString{String: chatID, Valid: true}
}

// seedDigestRows creates one overdue, one due-today and one upcoming
// scheduled occurrence around today.
func (f *notificationFixture) seedDigestRows(t *testing.T, today time.Time) {
	t.Helper()
	p := f.addPayment(t, "Rent", 1800, schedule.Date(2026, time.January, 1), schedule.RecurrenceMonthly, true)
	f.addOccurrence(t, p.ID, today.AddDate(0, 0, -5), 1800, payment.StatusScheduled)
	f.addOccurrence(t, p.ID, today, 1800, payment.StatusScheduled)
	f.addOccurrence(t, p.ID, today.AddDate(0, 0, 3), 1800, payment.StatusScheduled)
}

func TestRunCreatesInAppDigestsOncePerDay(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)
	f.seedDigestRows(t, today)

	afterGate := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	first, err := f.jobsService.Run(context.Background(), today, afterGate, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.DueSoonCreated)
	assert.Equal(t, 1, first.OverdueCreated)
	assert.Equal(t, 1, first.DailySummaryCreated)
	assert.Len(t, f.notifications.notifications, 3)

	// The delivery log, not the caller, carries the dedup: a second run the
	// same day creates nothing.
	second, err := f.jobsService.Run(context.Background(), today, afterGate, false)
	require.NoError(t, err)
	assert.Zero(t, second.DueSoonCreated)
	assert.Zero(t, second.OverdueCreated)
	assert.Zero(t, second.DailySummaryCreated)
	assert.Len(t, f.notifications.notifications, 3)

	// A new day starts a new bucket.
	tomorrow := today.AddDate(0, 0, 1)
	third, err := f.jobsService.Run(context.Background(), tomorrow, afterGate.AddDate(0, 0, 1), false)
	require.NoError(t, err)
	assert.Equal(t, 1, third.OverdueCreated)
}

func TestRunSkipsEmptyDigests(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)

	result, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Zero(t, result.DueSoonCreated)
	assert.Zero(t, result.OverdueCreated)
	// The daily summary goes out even when nothing is due.
	assert.Equal(t, 1, result.DailySummaryCreated)
}

func TestDailySummaryTimeGate(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)
	f.seedDigestRows(t, today)

	beforeGate := time.Date(2026, time.February, 10, 6, 30, 0, 0, time.UTC)
	result, err := f.jobsService.Run(context.Background(), today, beforeGate, false)
	require.NoError(t, err)
	assert.True(t, result.DailySummaryDeferred)
	assert.Zero(t, result.DailySummaryCreated)
	assert.Equal(t, "07:00 UTC", result.DailySummaryReadyTime)

	// The digests are not gated, only the summary.
	assert.Equal(t, 1, result.DueSoonCreated)
	assert.Equal(t, 1, result.OverdueCreated)

	afterGate := time.Date(2026, time.February, 10, 7, 0, 0, 0, time.UTC)
	later, err := f.jobsService.Run(context.Background(), today, afterGate, false)
	require.NoError(t, err)
	assert.False(t, later.DailySummaryDeferred)
	assert.Equal(t, 1, later.DailySummaryCreated)
}

func TestDailySummaryForceBypassesGate(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)

	beforeGate := time.Date(2026, time.February, 10, 5, 0, 0, 0, time.UTC)
	result, err := f.jobsService.Run(context.Background(), today, beforeGate, true)
	require.NoError(t, err)
	assert.False(t, result.DailySummaryDeferred)
	assert.Equal(t, 1, result.DailySummaryCreated)
}

func TestTelegramDeliveryDisabledByDefault(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)
	f.seedDigestRows(t, today)

	result, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Zero(t, result.TelegramSent)
	assert.Empty(t, f.telegram.sent)
}

func TestTelegramDelivery(t *testing.T) {
	f := newNotificationFixture()
	f.enableTelegram("12345")
	today := schedule.Date(2026, time.February, 10)
	f.seedDigestRows(t, today)

	result, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TelegramSent)
	require.Len(t, f.telegram.sent, 3)
	for _, msg := range f.telegram.sent {
		assert.Equal(t, int64(12345), msg.chatID)
		assert.NotEmpty(t, msg.text)
	}

	// Second run: delivery slots are claimed, nothing is re-sent.
	again, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 10, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Zero(t, again.TelegramSent)
	assert.Len(t, f.telegram.sent, 3)
}

func TestTelegramRetriesRetryableErrors(t *testing.T) {
	f := newNotificationFixture()
	f.enableTelegram("12345")
	today := schedule.Date(2026, time.February, 10)
	p := f.addPayment(t, "Rent", 1800, schedule.Date(2026, time.January, 1), schedule.RecurrenceMonthly, true)
	f.addOccurrence(t, p.ID, today.AddDate(0, 0, -5), 1800, payment.StatusScheduled)

	flaky := &telegram.DeliveryError{Err: errors.New("connection reset"), Retryable: true}
	f.telegram.errs = []error{flaky, flaky, nil}

	// Before the gate, only the overdue digest is delivered.
	result, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 5, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TelegramSent)
	assert.Zero(t, result.TelegramErrors)
	assert.Len(t, f.sleeps, 2)

	logs, err := f.notifications.ListDeliveryLogs(context.Background(), notification.LogFilters{Channel: notification.ChannelTelegram}, 0, 0, notification.SortNewest)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, notification.DeliverySent, logs[0].Status)
}

func TestTelegramStopsOnNonRetryableError(t *testing.T) {
	f := newNotificationFixture()
	f.enableTelegram("12345")
	today := schedule.Date(2026, time.February, 10)
	p := f.addPayment(t, "Rent", 1800, schedule.Date(2026, time.January, 1), schedule.RecurrenceMonthly, true)
	f.addOccurrence(t, p.ID, today.AddDate(0, 0, -5), 1800, payment.StatusScheduled)

	fatal := &telegram.DeliveryError{Err: errors.New("chat not found"), Retryable: false}
	f.telegram.errs = []error{fatal, nil, nil}

	result, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 5, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Zero(t, result.TelegramSent)
	assert.Equal(t, 1, result.TelegramErrors)
	assert.Empty(t, f.sleeps)
	assert.Empty(t, f.telegram.sent)

	logs, err := f.notifications.ListDeliveryLogs(context.Background(), notification.LogFilters{Channel: notification.ChannelTelegram}, 0, 0, notification.SortNewest)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, notification.DeliveryError, logs[0].Status)

	// The errored slot stays claimed: no retry storm on the next run.
	again, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 6, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Zero(t, again.TelegramSent)
	assert.Empty(t, f.telegram.sent)
}

func TestTelegramExhaustsRetryBudget(t *testing.T) {
	f := newNotificationFixture()
	f.enableTelegram("12345")
	today := schedule.Date(2026, time.February, 10)
	p := f.addPayment(t, "Rent", 1800, schedule.Date(2026, time.January, 1), schedule.RecurrenceMonthly, true)
	f.addOccurrence(t, p.ID, today.AddDate(0, 0, -5), 1800, payment.StatusScheduled)

	flaky := &telegram.DeliveryError{Err: errors.New("connection reset"), Retryable: true}
	f.telegram.errs = []error{flaky, flaky, flaky}

	result, err := f.jobsService.Run(context.Background(), today, time.Date(2026, time.February, 10, 5, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Zero(t, result.TelegramSent)
	assert.Equal(t, 1, result.TelegramErrors)
	// Three attempts mean two backoff sleeps.
	assert.Len(t, f.sleeps, 2)
}

func TestNotificationRunOncePerDayGuard(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)
	now := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)

	first, err := f.jobsService.RunOncePerDay(context.Background(), today, now)
	require.NoError(t, err)
	assert.True(t, first.Ran)

	second, err := f.jobsService.RunOncePerDay(context.Background(), today, now)
	require.NoError(t, err)
	assert.False(t, second.Ran)
}

func TestOnDemandDigests(t *testing.T) {
	f := newNotificationFixture()
	today := schedule.Date(2026, time.February, 10)
	f.seedDigestRows(t, today)

	dueSoon, err := f.jobsService.DueSoonDigest(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 2, dueSoon.Count) // due today + due in 3 days

	overdue, err := f.jobsService.OverdueDigest(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, overdue.Count)

	summary, err := f.jobsService.DailySummaryDigest(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count) // due today only
	assert.Contains(t, summary.Body, "due today")

	// On-demand renders never touch the delivery log.
	assert.Empty(t, f.notifications.logs)
}
