package cli

import (
	"fmt"
	"slices"

	logger_adapter "property-sync-service/internal/adapters/logger"
	"property-sync-service/internal/core/port"

	"github.com/spf13/cobra"
)

// RootOptions - глобальные флаги
type RootOptions struct {
	Format   string // json | text
	LogLevel string
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand собирает syncctl: офлайн-доступ к движку синхронизации для поддержки
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Offline tools for property records",
		Long: `syncctl runs the property synchronization engine without the service:
price normalization, plausibility checks, change detection with audit and locks,
project propagation and a local SQLite record store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level for diagnostics on stderr")

	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewPropagateCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))

	return cmd
}

// logger пишет в stderr, чтобы не портить JSON в stdout
func (o *RootOptions) logger(cmd *cobra.Command) port.LoggerPort {
	return logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Writer: cmd.ErrOrStderr(),
		Level:  logger_adapter.ParseLevel(o.LogLevel),
	}).WithFields(port.Fields{"component": "syncctl", "command": cmd.Name()})
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: o.Format, Writer: cmd.OutOrStdout()}
}
