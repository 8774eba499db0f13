package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tg-broadcast/internal/bot"
	"tg-broadcast/internal/config"
	"tg-broadcast/internal/crash"
	"tg-broadcast/internal/flow"
	"tg-broadcast/internal/handler"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/service"
	"tg-broadcast/internal/storage"
	"tg-broadcast/internal/transport"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")
	crash.SetupCrashHandler()

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional, real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Infof("Database ready (%s)", cfg.Database.Driver)

	tasks := storage.NewTaskRepository(db)
	links := storage.NewLinkRepository(db)
	audits := storage.NewAuditRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status := func(ctx context.Context) (map[string]any, error) {
		n, err := tasks.CountPending(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pending_tasks": n}, nil
	}

	botService, err := bot.Initialize(ctx, cfg, status)
	if err != nil {
		logger.Fatalf("Failed to initialize bot: %v", err)
	}

	loc := cfg.Scheduler.Location()
	tr := transport.NewTelegram(botService.Bot, cfg.Bot.RequestTimeout)
	tracker := service.NewLinkTracker(links)
	dispatcher := service.NewDispatcher(tr, tracker, cfg.Broadcast.TargetGroups, cfg.Broadcast.SendDelay)
	if len(cfg.Broadcast.TargetGroups) == 0 {
		logger.Warningf("No target groups configured, broadcasts will reach nobody")
	}

	schedOpts := service.SchedulerOptions{
		Interval: cfg.Scheduler.Interval,
		Location: loc,
	}
	if cfg.Broadcast.NotifyOnScheduled {
		schedOpts.Notifier = tr
		schedOpts.Notice = func(task models.ScheduledTask, delivered int) string {
			return fmt.Sprintf(models.GetTranslation(cfg.Bot.Language, "scheduled_notice"), delivered)
		}
	}
	scheduler := service.NewScheduler(tasks, dispatcher, schedOpts)

	machine := flow.NewMachine(loc, cfg.Scheduler.DateLayout)
	h := handler.New(botService.Bot, cfg, handler.Deps{
		Machine:    machine,
		Dispatcher: dispatcher,
		Propagator: service.NewPropagator(tr, tracker),
		Auditor:    service.NewAuditor(audits, loc),
		Tasks:      tasks,
	})
	h.SetupMessageHandlers(botService.Handler)

	if botService.Server != nil {
		crash.SafeGoroutine("http-server", func() {
			if err := botService.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("HTTP server error: %v", err)
			}
		})
	}

	scheduler.Start(ctx)

	crash.SafeGoroutine("session-sweeper", func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := machine.Sweep(); n > 0 {
					logger.Debugf("Dropped %d idle authoring sessions", n)
				}
			}
		}
	})

	crash.SafeGoroutine("bot-handler", func() {
		if err := botService.Start(); err != nil {
			logger.Errorf("Bot handler stopped: %v", err)
		}
	})
	logger.Infof("Bot started, distributing to %d groups", len(dispatcher.Destinations()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// finish the running tick before the update stream goes away
	scheduler.Stop()
	cancel()
	botService.Stop(shutdownCtx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("Bot gracefully stopped")
}
