package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/notify"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Today      string // YYYY-MM-DD, overrides the clock
	Format     string // "json" | "text"

	// sink replaces the Postmark client when set.
	sink notify.Sink
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the freshmate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "freshmate",
		Short: "FreshMate - grocery expiry tracker",
		Long: `Track groceries and fridge contents and get an email reminder before
each item expires, plus one alert once it has expired.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides config")
	cmd.PersistentFlags().StringVar(&opts.Today, "today", "", "evaluate as if today were this date (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))

	return cmd
}

func (o *RootOptions) validate() error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.Today != "" {
		if _, err := model.ParseDate(o.Today); err != nil {
			return WrapExitError(ExitCommandError, "invalid --today", err)
		}
	}
	return nil
}
