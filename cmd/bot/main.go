package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/telebot.v3"

	"paytrack/internal/app"
	"paytrack/internal/domain/telegram"
	"paytrack/internal/infra/config"
	idb "paytrack/internal/infra/database"
	"paytrack/internal/infra/logger"
	"paytrack/internal/infra/scheduler"
	itelegram "paytrack/internal/infra/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.WithField("environment", cfg.Environment).Info("Paytrack starting...")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	log.Info("Database connection established.")

	paymentRepo := idb.NewPostgresPaymentRepository(db)
	occurrenceRepo := idb.NewPostgresOccurrenceRepository(db)
	jobRepo := idb.NewPostgresJobRepository(db)
	settingsRepo := idb.NewPostgresSettingsRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	// The bot surface is optional. Without a token the service still
	// generates occurrences and writes in-app notifications.
	var bot *telebot.Bot
	var telegramClient telegram.Client
	if cfg.TelegramToken != "" {
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := log.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(map[string]any{
						"message": c.Text(),
						"sender":  c.Sender().ID,
						"chat":    c.Chat().ID,
					})
				}
				entry.Error("Telegram bot error")
			},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			log.WithError(err).Fatal("Could not create Telegram bot")
		}
		telegramClient = itelegram.NewTelebotAdapter(bot)
	} else {
		log.Info("TELEGRAM_TOKEN not set, running without the bot surface.")
	}

	generationService := app.NewGenerationService(paymentRepo, occurrenceRepo, jobRepo, log)
	notificationJobsService := app.NewNotificationJobsService(settingsRepo, occurrenceRepo, notificationRepo, jobRepo, telegramClient, log)
	cycleService := app.NewCycleService(settingsRepo, occurrenceRepo)

	jobScheduler := scheduler.NewJobScheduler(
		generationService,
		notificationJobsService,
		log,
		cfg.GenerationHorizonDays,
		cfg.CronSpecGeneration,
		cfg.CronSpecNotifications,
	)
	jobScheduler.Start()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Minute)
	jobScheduler.RunStartupGeneration(startupCtx)
	cancelStartup()

	if bot != nil {
		itelegram.RegisterBotCommands(
			context.Background(),
			bot,
			settingsRepo,
			cycleService,
			notificationJobsService,
			generationService,
			cfg.GenerationHorizonDays,
			log.WithField("component", "bot"),
		)
		log.Info("Bot command handlers registered.")
		go bot.Start()
	}

	log.Info("Application setup complete.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	jobScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	log.Info("Application shut down gracefully.")
}
