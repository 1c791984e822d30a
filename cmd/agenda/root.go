package main

import (
	"github.com/spf13/cobra"

	"github.com/example/church-agenda/internal/config"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	ConfigFile string
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.ConfigFile != "" {
		return config.LoadFile(o.ConfigFile)
	}
	return config.Load()
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "agenda",
		Short:         "Church agenda calendar service",
		Long:          "Serves the merged calendar of locally stored events and read-only external feeds, plus the public projection of public events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (overrides AGENDA_CONFIG_FILE)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newTokenHashCommand())
	cmd.AddCommand(newExternalCommand(opts))

	return cmd
}
