package main

import (
	"context"

	"github.com/dmitrijs2005/vidtube/internal/logging"
	"github.com/dmitrijs2005/vidtube/internal/server"
	"github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with the serve and migrate subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vidtube-server",
		Short:         "VidTube account and session service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String(config.ConfigFlag, "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := server.NewApp(ctx, cfg, logger)
			if err != nil {
				logging.LogError(ctx, logger, "startup failed", err)
				return err
			}
			return app.Run(ctx)
		},
	}
}

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			return server.Migrate(cmd.Context(), cfg, logger)
		},
	}
}

func setup(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewSlogLogger(logging.Setup("vidtube", version, cfg.LogFormat, cmd.ErrOrStderr()))
	return cfg, logger, nil
}
