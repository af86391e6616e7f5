package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogFormat string // "json" | "text"
	Config    string
}

// ValidFormats defines the allowed output and log formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the topoload CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "topoload",
		Short: "topoload - bulk topology import",
		Long: `Bulk-load network topology (locations, tray network, equipment and
cables) from GeoJSON layers into the inventory system.

Every run is idempotent: items already present are reported, never
duplicated. Cable routes are stored in the route database.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), opts))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to topoload.cue")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewRouteCommand(opts))

	return cmd
}

func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}
