package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"math-learning-bot/internal/application/adjust"
	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/application/usecases"
	"math-learning-bot/internal/config"
	"math-learning-bot/internal/infrastructure/cache"
	"math-learning-bot/internal/infrastructure/filesystem"
	"math-learning-bot/internal/infrastructure/persistence"
	"math-learning-bot/internal/infrastructure/reporting"
	"math-learning-bot/internal/infrastructure/telegram"
	"math-learning-bot/internal/interfaces/telegram/handlers"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the bot
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Long: `Runs the Telegram bot together with the reminder service, the policy
file watcher (when POLICY_FILE is set) and the metrics endpoint (when
METRICS_ADDR is set). Pending preference writes are flushed on shutdown.`,
	RunE: runServe,
}

// loadPolicy reads the configured policy file, or the built-in policy when
// none is configured.
func loadPolicy(path string) (*adjust.Policy, error) {
	pf := config.DefaultPolicy()
	if path != "" {
		var err error
		if pf, err = config.LoadPolicy(path); err != nil {
			return nil, err
		}
	}
	return adjust.NewPolicy(pf)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reporter := reporting.New(logger, registry)

	db, err := persistence.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	policy, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load adjustment policy: %w", err)
	}
	live := adjust.NewLive(policy)

	hub := prefsync.NewHub(persistence.NewPreferenceStore(db), logger,
		prefsync.WithProtection(live),
		prefsync.WithReporter(reporter),
		prefsync.WithMetrics(reporter),
		prefsync.WithCache(cache.NewSnapshots(cache.WithTTL(cfg.CacheTTL))),
		prefsync.WithDebounce(cfg.PersistDebounce),
	)

	// Initialize repositories and use cases
	userRepo := persistence.NewUserRepository(db)
	attemptRepo := persistence.NewAttemptRepository(db)

	userUseCase := usecases.NewUserUseCase(userRepo)
	settingsUseCase := usecases.NewSettingsUseCase(hub, logger)
	quizUseCase := usecases.NewQuizUseCase(hub, attemptRepo, adjust.NewAdjuster(live, logger), nil, logger)

	bot, err := telegram.NewBot(cfg.BotToken, logger)
	if err != nil {
		return err
	}
	if err := bot.SetupCommands(); err != nil {
		logger.Warn("Commands won't show in Telegram's menu", zap.Error(err))
	}

	handlers.NewSettingsNotifier(bot, userUseCase, logger).Subscribe(hub)
	handler := handlers.NewBotHandler(bot, userUseCase, settingsUseCase, quizUseCase, logger)
	reminders := usecases.NewReminderUseCase(bot, userRepo, attemptRepo, settingsUseCase, cfg.Reminders, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return handler.Start(gctx, bot.GetUpdatesChan()) })
	g.Go(func() error {
		<-gctx.Done()
		bot.StopReceivingUpdates()
		return nil
	})
	g.Go(func() error { return reminders.Run(gctx) })

	if cfg.PolicyFile != "" {
		watcher, err := filesystem.NewPolicyWatcher(cfg.PolicyFile, func(pf config.PolicyFile) error {
			next, err := adjust.NewPolicy(pf)
			if err != nil {
				return err
			}
			live.Swap(next)
			return nil
		}, logger, reporter, 0)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if cfg.MetricsAddr != "" {
		g.Go(func() error { return reporting.Serve(gctx, cfg.MetricsAddr, registry, logger) })
	}

	logger.Info("Starting math practice bot", zap.String("db_path", cfg.DBPath))
	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Error("Failed to flush preferences on shutdown", zap.Error(err))
	}
	logger.Info("Bot stopped")
	return runErr
}
