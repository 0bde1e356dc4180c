package main

import (
	"fmt"
	"os"

	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/ethpandaops/bootstrapoor/pkg/env"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Build info (set via ldflags).
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"

	// Global flags.
	logLevel  string
	logFormat string
	envFiles  []string
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := newRootCmd(log).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bootstrapoor",
		Short: "HTTP service bootstrap",
		Long: `bootstrapoor starts an HTTP service from environment configuration.

It wires the router, rate limiting, rotating log files, Prometheus metrics
and an optional Swagger UI.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			switch logFormat {
			case "json":
				log.SetFormatter(&logrus.JSONFormatter{})
			case "text":
				log.SetFormatter(&logrus.TextFormatter{
					FullTimestamp: true,
				})
			default:
				return fmt.Errorf("unknown log format %q", logFormat)
			}

			files := envFiles
			if len(files) == 0 {
				files = config.DefaultEnvFiles(env.FromOS().String("APP_ENV", ""))
			}

			loaded, err := config.LoadEnvFiles(files...)
			if err != nil {
				return err
			}

			if len(loaded) > 0 {
				log.WithField("files", loaded).Debug("Loaded env files")
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), log)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Console log format (text, json)")
	rootCmd.PersistentFlags().StringArrayVar(&envFiles, "env-file", nil,
		"Env file to load before reading the environment; repeatable, earlier files win (default .env, .env.<APP_ENV>)")

	rootCmd.AddCommand(
		newServerCmd(log),
		newConfigCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
