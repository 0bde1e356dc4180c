package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/bootstrapoor/pkg/app"
	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/ethpandaops/bootstrapoor/pkg/env"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServerCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the bootstrapoor server",
		Long: `Start the HTTP server. SIGINT and SIGTERM stop it; in development
SIGHUP closes the application and starts it again from the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), log)
		},
	}
}

func runServer(ctx context.Context, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		err := runOnce(ctx, log)
		if errors.Is(err, app.ErrReloadRequested) {
			// Close errors are joined with the sentinel; surface them but keep going.
			if joined := unwrapReload(err); joined != nil {
				log.WithError(joined).Warn("Errors while closing for reload")
			}

			log.Info("Restarting application")

			continue
		}

		return err
	}
}

func runOnce(ctx context.Context, log *logrus.Logger) error {
	cfg, err := config.Load(env.FromOS())
	if err != nil {
		return err
	}

	log.Debug("Configuration loaded:\n" + cfg.String())

	a, err := app.New(cfg, app.Options{
		Build: app.BuildInfo{
			Version: Version,
			Commit:  GitCommit,
			Date:    BuildDate,
		},
		LogFormat: logFormat,
	})
	if err != nil {
		return err
	}

	var reload chan struct{}

	if cfg.App.IsDevelopment() {
		reload = make(chan struct{}, 1)

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)

		defer signal.Stop(hup)

		go func() {
			select {
			case <-hup:
				reload <- struct{}{}
			case <-ctx.Done():
			}
		}()
	}

	return a.Run(ctx, reload)
}

// unwrapReload returns the errors joined with ErrReloadRequested, if any.
func unwrapReload(err error) error {
	joined, ok := err.(interface{ Unwrap() []error }) //nolint:errorlint // inspecting the join itself
	if !ok {
		return nil
	}

	var rest []error

	for _, e := range joined.Unwrap() {
		if !errors.Is(e, app.ErrReloadRequested) {
			rest = append(rest, e)
		}
	}

	return errors.Join(rest...)
}
