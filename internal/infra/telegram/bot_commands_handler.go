package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"paytrack/internal/app"
	"paytrack/internal/domain/settings"
)

// RegisterBotCommands wires the on-demand bot surface: digests, cycle
// snapshots and a manual generation trigger. When a Telegram chat id is
// configured in app settings, commands are restricted to that chat.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	settingsRepo settings.Repository,
	cycleService *app.CycleService,
	notificationJobs *app.NotificationJobsService,
	generation *app.GenerationService,
	horizonDays int,
	baseLogger *logrus.Entry,
) {
	authorized := func(c telebot.Context) (bool, error) {
		_, as, err := settingsRepo.GetOrCreate(ctx)
		if err != nil {
			return false, err
		}
		if !as.TelegramChatID.Valid {
			return true, nil
		}
		configured, err := strconv.ParseInt(as.TelegramChatID.String, 10, 64)
		if err != nil {
			return true, nil
		}
		return c.Chat() != nil && c.Chat().ID == configured, nil
	}

	guarded := func(command string, handler func(c telebot.Context, logCtx *logrus.Entry) error) func(telebot.Context) error {
		return func(c telebot.Context) error {
			logCtx := baseLogger.WithField("command", command)
			if c.Chat() != nil {
				logCtx = logCtx.WithField("chat_id", c.Chat().ID)
			}
			ok, err := authorized(c)
			if err != nil {
				logCtx.WithError(err).Error("Error checking chat authorization")
				return c.Send("Something went wrong. Please try again later.")
			}
			if !ok {
				logCtx.Warn("Command from unauthorized chat ignored")
				return nil
			}
			return handler(c, logCtx)
		}
	}

	b.Handle("/start", guarded("/start", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /start command")
		return c.Send("Hi! I track your recurring bill payments.\nUse /help for the list of commands.")
	}))

	b.Handle("/help", guarded("/help", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /help command")
		helpText := "Available commands:\n\n" +
			"`/summary` - Daily summary: due today, due soon, overdue.\n" +
			"`/duesoon` - Scheduled payments inside the due-soon window.\n" +
			"`/overdue` - Scheduled payments past their due date.\n" +
			"`/cycle` - Current pay cycle snapshot.\n" +
			"`/generate` - Extend the occurrence horizon now.\n" +
			"`/help` - Show this message."
		return c.Send(helpText, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}))

	b.Handle("/summary", guarded("/summary", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /summary command")
		digest, err := notificationJobs.DailySummaryDigest(ctx, time.Now())
		if err != nil {
			logCtx.WithError(err).Error("Error building daily summary digest")
			return c.Send("Could not build the daily summary. Please try again later.")
		}
		return c.Send(digest.TelegramText, &telebot.SendOptions{ParseMode: telebot.ModeMarkdownV2})
	}))

	b.Handle("/duesoon", guarded("/duesoon", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /duesoon command")
		digest, err := notificationJobs.DueSoonDigest(ctx, time.Now())
		if err != nil {
			logCtx.WithError(err).Error("Error building due-soon digest")
			return c.Send("Could not build the due-soon digest. Please try again later.")
		}
		if digest.Count == 0 {
			return c.Send("Nothing due soon.")
		}
		return c.Send(digest.TelegramText, &telebot.SendOptions{ParseMode: telebot.ModeMarkdownV2})
	}))

	b.Handle("/overdue", guarded("/overdue", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /overdue command")
		digest, err := notificationJobs.OverdueDigest(ctx, time.Now())
		if err != nil {
			logCtx.WithError(err).Error("Error building overdue digest")
			return c.Send("Could not build the overdue digest. Please try again later.")
		}
		if digest.Count == 0 {
			return c.Send("Nothing overdue. Nice.")
		}
		return c.Send(digest.TelegramText, &telebot.SendOptions{ParseMode: telebot.ModeMarkdownV2})
	}))

	b.Handle("/cycle", guarded("/cycle", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /cycle command")
		snapshot, err := cycleService.Snapshot(ctx, time.Now(), app.CycleCurrent)
		if err != nil {
			logCtx.WithError(err).Error("Error building cycle snapshot")
			return c.Send("Could not build the cycle snapshot. Please try again later.")
		}
		text := fmt.Sprintf("%s: %s to %s\n%d occurrences, %s still scheduled.",
			snapshot.Label,
			snapshot.CycleStart.Format("2006-01-02"),
			snapshot.CycleEnd.Format("2006-01-02"),
			snapshot.OccurrenceCount,
			"$"+snapshot.ScheduledAmount.StringFixed(2),
		)
		return c.Send(text)
	}))

	b.Handle("/generate", guarded("/generate", func(c telebot.Context, logCtx *logrus.Entry) error {
		logCtx.Info("Processing /generate command")
		result, err := generation.GenerateAhead(ctx, time.Now(), horizonDays)
		if err != nil {
			logCtx.WithError(err).Error("Error running occurrence generation")
			return c.Send("Occurrence generation failed. Please try again later.")
		}
		return c.Send(fmt.Sprintf("Generated %d occurrences (%d already existed) through %s.",
			result.GeneratedCount,
			result.SkippedExistingCount,
			result.RangeEnd.Format("2006-01-02"),
		))
	}))
}
