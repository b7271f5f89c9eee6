package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"github.com/ezberapp/ezber/internal/alarm"
	"github.com/ezberapp/ezber/internal/config"
	"github.com/ezberapp/ezber/internal/deck"
	"github.com/ezberapp/ezber/internal/domain"
	"github.com/ezberapp/ezber/internal/gen"
	"github.com/ezberapp/ezber/internal/notify"
	"github.com/ezberapp/ezber/internal/queueview"
	"github.com/ezberapp/ezber/internal/scheduler"
	"github.com/ezberapp/ezber/internal/speech"
	"github.com/ezberapp/ezber/internal/storage"
	"github.com/ezberapp/ezber/internal/store"
	"github.com/ezberapp/ezber/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("ezber", pflag.ExitOnError)
	config.Flags(flags)
	// ExitOnError: Parse never returns an error to handle here.
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ezber exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DBPath)

	if cfg.LegacySnapshot != "" {
		migrated, err := db.MigrateLegacy(cfg.LegacySnapshot)
		if err != nil {
			return err
		}
		if migrated {
			logger.Info("migrated legacy snapshot", "path", cfg.LegacySnapshot)
		}
	}

	cards, err := db.LoadCards()
	if err != nil {
		return err
	}
	folders, err := db.LoadFolders()
	if err != nil {
		return err
	}
	settings, err := db.LoadSettings()
	if err != nil {
		return err
	}
	if settings == nil {
		settings = &domain.Settings{TextModel: cfg.TextModel, ImageModel: cfg.ImageModel}
	}
	logger.Info("state loaded", "cards", len(cards), "folders", len(folders))

	clock := clockwork.NewRealClock()
	st := store.New(clock, logger, db, cards, folders, *settings)
	defer st.Flush()

	sched := scheduler.New(clock, logger, st.ActiveCards)
	defer sched.Stop()
	st.OnChange(sched.Rearm)

	activity := web.NewActivity(clock, time.Duration(cfg.HiddenAfter)*time.Second, sched.Rearm)

	notifier := notify.NewService(cfg.NtfyTopic, time.Duration(cfg.NtfyTimeout)*time.Second)
	sink := alarm.New(clock, logger, alarm.TerminalBell{W: os.Stdout}, notifier, activity.Visible)
	defer sink.Stop()

	// Scheduler ticks drive the alarm; open web pages get the same ticks
	// through their own subscriptions.
	go func() {
		ticks := sched.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticks:
				view := queueview.Build(st.ActiveCards(), "", now)
				logger.Info("review due", "due_count", view.DueCount)
				if view.DueCount > 0 {
					sink.Start(ctx)
				}
			}
		}
	}()

	importer := deck.NewImporter(db, st, logger, cfg.ReposDir)
	if summary := importer.SyncAll(); len(summary.Errors) > 0 {
		logger.Warn("deck import finished with errors", "errors", len(summary.Errors))
	}

	sched.Rearm()

	server, err := web.NewServer(web.Options{
		Logger:   logger,
		Clock:    clock,
		Cards:    st,
		Sched:    sched,
		Sink:     sink,
		Activity: activity,
		Speaker:  speech.NewSpeaker(cfg.SpeechCommand, logger),
		Gen:      gen.NewClient(cfg.GenAPIBase, cfg.GenAPIKey, time.Duration(cfg.GenTimeout)*time.Second),
		Importer: importer,
		DB:       db,
	})
	if err != nil {
		return err
	}

	if err := server.Run(ctx, cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shut down cleanly")
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
