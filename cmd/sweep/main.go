// Package main runs the notification sweeps from a scheduler: once, on an interval, or against a
// running server's cron endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campusreach/backend/config"
	"github.com/campusreach/backend/internal/notifications"
	"github.com/campusreach/backend/pkg/database"
	"github.com/campusreach/backend/pkg/mailer"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	if err := newRootCommand(logger).Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	every  time.Duration
	remote string
	secret string
}

type namedRunner struct {
	name   string
	runner notifications.Runner
}

func newRootCommand(logger *zap.Logger) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "sweep",
		Short: "Run CampusReach notification sweeps",
		Long: `Run the scheduled notification sweeps.

Examples:
  # Drain the message notification queue once
  sweep messages

  # Run every sweep every five minutes against the database
  sweep all --every=5m

  # Trigger the digest on a running server
  sweep digest --remote=https://api.campusreach.example --secret=$CRON_SECRET`,
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&o.every, "every", 0, "repeat on this interval until interrupted (0 runs once)")
	root.PersistentFlags().StringVar(&o.remote, "remote", "", "base URL of a running server; call its cron endpoints instead of the database")
	root.PersistentFlags().StringVar(&o.secret, "secret", os.Getenv("CRON_SECRET"), "bearer secret for --remote")

	root.AddCommand(
		newSweepCommand("messages", "Email recipients about unread chat messages", o, logger, notifications.SweepMessages),
		newSweepCommand("reminders", "Ask volunteers to rate events that ended yesterday", o, logger, notifications.SweepReminders),
		newSweepCommand("digest", "Send the weekly digest of new upcoming events", o, logger, notifications.SweepDigest),
		newSweepCommand("all", "Run every sweep in order", o, logger,
			notifications.SweepMessages, notifications.SweepReminders, notifications.SweepDigest),
	)
	return root
}

func newSweepCommand(use, short string, o *options, logger *zap.Logger, sweeps ...string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runners, cleanup, err := buildRunners(ctx, o, logger, sweeps)
			if err != nil {
				return err
			}
			defer cleanup()
			return schedule(ctx, o.every, runners, logger)
		},
	}
}

func buildRunners(ctx context.Context, o *options, logger *zap.Logger, sweeps []string) ([]namedRunner, func(), error) {
	runners := make([]namedRunner, 0, len(sweeps))
	if o.remote != "" {
		for _, name := range sweeps {
			r, err := newRemoteRunner(nil, o.remote, o.secret, name)
			if err != nil {
				return nil, nil, err
			}
			runners = append(runners, namedRunner{name: name, runner: r})
		}
		return runners, func() {}, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	renderer, err := notifications.NewRenderer(notifications.Links{BaseURL: cfg.Server.PublicBaseURL})
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("email templates: %w", err)
	}
	sender := mailer.New(mailer.Config{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		APIKey:      cfg.Email.APIKey,
		APIBaseURL:  cfg.Email.APIBaseURL,
		SMTPHost:    cfg.Email.SMTPHost,
		SMTPPort:    cfg.Email.SMTPPort,
		SMTPUser:    cfg.Email.SMTPUser,
		SMTPPass:    cfg.Email.SMTPPass,
	}, logger)

	all := notifications.NewSweeps(pool, notifications.SweepOptions{
		Mailer:   sender,
		Renderer: renderer,
		Logger:   logger,
	})
	byName := map[string]notifications.Runner{
		notifications.SweepMessages:  all.Messages,
		notifications.SweepReminders: all.Reminders,
		notifications.SweepDigest:    all.Digest,
	}
	for _, name := range sweeps {
		runners = append(runners, namedRunner{name: name, runner: byName[name]})
	}
	return runners, pool.Close, nil
}

// schedule runs the sweeps once, or every interval until ctx is done. Runs never overlap.
func schedule(ctx context.Context, every time.Duration, runners []namedRunner, logger *zap.Logger) error {
	err := runAll(ctx, runners, logger)
	if every <= 0 {
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep scheduler stopped")
			return nil
		case <-ticker.C:
			_ = runAll(ctx, runners, logger)
		}
	}
}

func runAll(ctx context.Context, runners []namedRunner, logger *zap.Logger) error {
	var errs []error
	for _, r := range runners {
		start := time.Now()
		sum, err := r.runner.Run(ctx)
		if err != nil {
			logger.Error("sweep failed", zap.String("sweep", r.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
			continue
		}
		logger.Info("sweep finished",
			zap.String("sweep", r.name),
			zap.Int("total", sum.Total),
			zap.Int("sent", sum.Sent),
			zap.Int("errors", sum.Errors),
			zap.Duration("took", time.Since(start)),
		)
	}
	return errors.Join(errs...)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
