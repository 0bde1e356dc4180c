package main

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/bootstrapoor/pkg/config"
	"github.com/ethpandaops/bootstrapoor/pkg/env"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [path]",
		Short: "Print the resolved configuration",
		Long: `Resolve the configuration from the environment and print it as YAML, with
secrets redacted. A dotted path such as "app.logger.level" prints only
that value.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env.FromOS())
			if err != nil {
				return err
			}

			redacted := cfg.Redacted()

			var value any = redacted

			if len(args) == 1 {
				if redacted.Registry() == nil {
					return errors.New("configuration registry unavailable")
				}

				value = redacted.Registry().Get(args[0])
				if value == nil {
					return fmt.Errorf("unknown configuration path %q", args[0])
				}
			}

			out, err := yaml.Marshal(value)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}
}
