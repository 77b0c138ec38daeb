package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"planpact/internal/bot"
	"planpact/internal/config"
	"planpact/internal/httpapi"
	"planpact/internal/logging"
	"planpact/internal/push"
	"planpact/internal/repository"
	"planpact/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	flush, err := logging.InitSentry(cfg.SentryDSN, cfg.Environment)
	if err != nil {
		log.WithError(err).Fatal("Sentry initialization failed")
	}
	defer flush()

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Database initialization failed")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	socialRepo := repository.NewSocialRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := push.NewHub(log)
	var broadcaster push.Broadcaster = hub
	if cfg.RedisURL != "" {
		redisPush, err := push.NewRedisBroadcaster(cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Fatal("Redis initialization failed")
		}
		defer redisPush.Close()
		broadcaster = redisPush

		ready := make(chan struct{})
		go func() {
			if err := redisPush.Relay(ctx, hub, ready); err != nil && !errors.Is(err, context.Canceled) {
				logging.ReportError(log.WithField("component", "push-redis"), "redis_relay", err)
			}
		}()
		select {
		case <-ready:
			log.Info("Redis push relay subscribed")
		case <-time.After(10 * time.Second):
			log.Warn("Redis push relay not ready yet, continuing")
		}
	}

	notifier := service.NewNotificationService(notificationRepo, broadcaster, log)
	dashboards := service.NewDashboardService(planRepo, progressRepo)
	progressSvc := service.NewProgressService(planRepo, progressRepo, broadcaster, cfg.Location, log)
	socialSvc := service.NewSocialService(planRepo, progressRepo, socialRepo, userRepo, notifier, broadcaster, log)

	engine := service.NewEngine(planRepo, progressRepo, notificationRepo, dashboards, notifier, broadcaster, service.EngineConfig{
		Location:                 cfg.Location,
		DeadlineLookahead:        cfg.DeadlineLookahead,
		DeadlineDedupe:           cfg.DeadlineDedupe,
		EncouragementMinDays:     cfg.EncouragementMinDays,
		CompletionThresholdRatio: cfg.CompletionThresholdRatio,
		InactivityDays:           cfg.InactivityDays,
	}, log)

	scheduler := service.NewSchedulerService(cfg.Location, log)
	if err := scheduler.RegisterEngineJobs(engine, service.JobSchedule{
		CheckInReminderTime: cfg.CheckInReminderTime,
		DeadlineInterval:    cfg.DeadlineInterval,
		EncouragementTime:   cfg.EncouragementTime,
		InactivityTime:      cfg.InactivityTime,
	}); err != nil {
		log.WithError(err).Fatal("Scheduling jobs failed")
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.TelegramToken != "" {
		telegramBot, err := bot.New(cfg.TelegramToken, userRepo, dashboards, notifier, log)
		if err != nil {
			log.WithError(err).Fatal("Telegram bot initialization failed")
		}
		notifier.AddSink(telegramBot)
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.ReportError(log.WithField("component", "bot"), "bot_polling", err)
			}
		}()
	}

	app := httpapi.NewApp(httpapi.Deps{
		Dashboards:    dashboards,
		Progress:      progressSvc,
		Social:        socialSvc,
		Notifications: notifier,
		Plans:         planRepo,
		Hub:           hub,
		Health: func(ctx context.Context) error {
			if sqlDB == nil {
				return errors.New("database handle unavailable")
			}
			return sqlDB.PingContext(ctx)
		},
	}, cfg.JWTSecret, log)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     cfg.HTTPAddr,
		"timezone": cfg.Location.String(),
	}).Info("Planpact started")
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.WithError(err).Error("HTTP server stopped with error")
	}

	notifier.Wait()
	log.Info("Shutdown complete")
}
