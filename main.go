package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"prosperidad-bot/composer"
	"prosperidad-bot/config"
	"prosperidad-bot/gemini"
	"prosperidad-bot/notify"
	"prosperidad-bot/report"
	"prosperidad-bot/runner"
	"prosperidad-bot/scheduler"
	"prosperidad-bot/store"
	"prosperidad-bot/youtube"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "prosperidad-bot",
		Short:         "Replies to YouTube channel comments with short devotional messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ./config.yaml or $BOT_CONFIG)")

	loadConfig := func() (*config.Config, error) {
		// .env is optional; real deployments export credentials directly.
		_ = godotenv.Load()

		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			slog.Error("failed to load config", "path", path, "error", err)
			return nil, err
		}
		setupLogging(cfg.LogLevel)
		slog.Info("config loaded", "path", path, "channel_id", cfg.ChannelID)
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one polling run and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.close()

			app.runOnce(ctx)
			return nil
		},
	}

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.close()

			sched, err := scheduler.NewScheduler(cfg.Timezone)
			if err != nil {
				slog.Error("failed to initialize scheduler", "timezone", cfg.Timezone, "error", err)
				return err
			}
			if err := sched.Schedule(cfg.Schedule, func() {
				app.runOnce(context.Background())
			}); err != nil {
				slog.Error("failed to schedule run", "spec", cfg.Schedule, "error", err)
				return err
			}
			sched.Start()
			defer sched.Stop()
			slog.Info("daemon started", "schedule", cfg.Schedule, "timezone", cfg.Timezone)

			<-ctx.Done()
			slog.Info("daemon stopped")
			return nil
		},
	}

	var reportCount int
	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Print recent run reports from the archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			archive, err := report.OpenArchive(cfg.ArchivePath)
			if err != nil {
				slog.Error("failed to open archive", "path", cfg.ArchivePath, "error", err)
				return err
			}
			defer archive.Close()

			runs, err := archive.Recent(cmd.Context(), reportCount)
			if err != nil {
				slog.Error("failed to list runs", "error", err)
				return err
			}

			for _, run := range runs {
				fmt.Printf("%s  sent=%d/%d  processed=%d  ia=%d  fallbacks=%d  crisis=%d  errors=%d  %.1fs\n",
					run.ID,
					run.Counts.RepliesSent, run.MaxReplies,
					run.Counts.Processed,
					run.Counts.ModelReplies, run.Counts.Fallbacks,
					run.Counts.CrisisIgnored,
					run.Counts.GeminiErrors+run.Counts.YouTubeErrors,
					run.ElapsedSeconds)
			}
			return nil
		},
	}
	reportsCmd.Flags().IntVarP(&reportCount, "count", "n", 10, "number of runs to show")

	root.AddCommand(runCmd, daemonCmd, reportsCmd)
	return root
}

// app holds the wired dependencies for one process.
type app struct {
	cfg      *config.Config
	answered *store.AnsweredLog
	memory   *store.Memory
	runner   *runner.Runner
	archive  *report.Archive
	notifier *notify.Notifier
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	answered, err := store.OpenAnswered(cfg.AnsweredPath)
	if err != nil {
		slog.Error("failed to open answered ledger", "path", cfg.AnsweredPath, "error", err)
		return nil, err
	}
	slog.Info("answered ledger loaded", "path", cfg.AnsweredPath, "ids", answered.Len())

	memory, err := store.OpenMemory(cfg.MemoryPath,
		store.WithDepth(cfg.MemoryDepth),
		store.WithRetention(cfg.Retention()),
	)
	if err != nil {
		slog.Warn("failed to load conversation memory, starting empty", "path", cfg.MemoryPath, "error", err)
		memory = store.NewMemory(cfg.MemoryPath,
			store.WithDepth(cfg.MemoryDepth),
			store.WithRetention(cfg.Retention()),
		)
	}
	slog.Info("conversation memory loaded", "path", cfg.MemoryPath, "users", memory.Len())

	ytClient, err := youtube.NewClient(ctx,
		cfg.YouTubeAPIKey,
		[]byte(cfg.YouTubeOAuthJSON),
		cfg.ChannelID,
		youtube.WithVideosPerPoll(cfg.VideosPerPoll),
		youtube.WithCommentsPerVideo(cfg.CommentsPerVideo),
	)
	if err != nil {
		slog.Error("failed to create youtube client", "error", err)
		answered.Close()
		return nil, err
	}

	genClient := gemini.NewClient(cfg.GeminiAPIKey, gemini.WithModel(cfg.GeminiModel))
	comp := composer.New(genClient,
		composer.WithMaxLength(cfg.ReplyMaxLength),
		composer.WithHistoryDepth(cfg.MemoryDepth),
	)

	archive, err := report.OpenArchive(cfg.ArchivePath)
	if err != nil {
		slog.Warn("failed to open run archive, continuing without it", "path", cfg.ArchivePath, "error", err)
		archive = nil
	}

	notifier, err := notify.New(cfg.NotifyToken, cfg.NotifyChatID)
	if err != nil {
		slog.Warn("failed to init notifier, continuing without it", "error", err)
		notifier = nil
	}

	gate := rate.NewLimiter(rate.Every(cfg.Delay()), 1)

	run := runner.NewRunner(ytClient, ytClient, comp, answered, memory,
		runner.WithMaxReplies(cfg.MaxReplies),
		runner.WithLookback(cfg.Lookback()),
		runner.WithGate(gate),
		runner.WithDelaySeconds(cfg.DelaySecs),
		runner.WithModel(cfg.GeminiModel),
		runner.WithChannelID(cfg.ChannelID),
	)

	return &app{
		cfg:      cfg,
		answered: answered,
		memory:   memory,
		runner:   run,
		archive:  archive,
		notifier: notifier,
	}, nil
}

func (a *app) runOnce(ctx context.Context) {
	rep, err := a.runner.Run(ctx)
	if err != nil {
		slog.Error("run failed", "error", err)
		return
	}

	if path, err := rep.WriteFile(a.cfg.ReportDir); err != nil {
		slog.Warn("failed to write report file", "error", err)
	} else {
		slog.Info("report written", "path", path)
	}

	if a.archive != nil {
		if err := a.archive.Save(ctx, rep); err != nil {
			slog.Warn("failed to archive run", "error", err)
		}
	}

	if a.notifier != nil {
		if err := a.notifier.RunSummary(rep); err != nil {
			slog.Warn("failed to send run summary", "error", err)
		}
	}

	slog.Info("run complete",
		"id", rep.ID,
		"replies_sent", rep.Counts.RepliesSent,
		"processed", rep.Counts.Processed,
		"fallbacks", rep.Counts.Fallbacks,
		"crisis_ignored", rep.Counts.CrisisIgnored,
		"elapsed_seconds", rep.ElapsedSeconds)
}

func (a *app) close() {
	if err := a.answered.Close(); err != nil {
		slog.Warn("failed to close answered ledger", "error", err)
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			slog.Warn("failed to close archive", "error", err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	return ctx, cancel
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
