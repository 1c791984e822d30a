package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/church-agenda/internal/logging"
	"github.com/example/church-agenda/internal/persistence/sqlite"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)

			dbConfig := sqlite.DefaultConfig(cfg.SQLiteDSN)
			dbConfig.Location = cfg.Location
			pool, err := sqlite.NewConnectionPool(dbConfig)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := pool.Migrator(logger)
			if !statusOnly {
				if err := migrator.Run(cmd.Context()); err != nil {
					return err
				}
			}

			status, err := migrator.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			version := status.CurrentVersion
			if version == "" {
				version = "none"
			}
			fmt.Fprintf(out, "current version: %s\n", version)
			for _, applied := range status.Applied {
				fmt.Fprintf(out, "applied  %s  %s\n", applied.Version, applied.AppliedAt.Format(time.RFC3339))
			}
			for _, pending := range status.Pending {
				fmt.Fprintf(out, "pending  %s  %s\n", pending.Version, pending.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "report migration state without applying anything")
	return cmd
}
