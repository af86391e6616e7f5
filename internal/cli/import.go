package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/topoload/internal/config"
	"github.com/roach88/topoload/internal/ident"
	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/loader"
	"github.com/roach88/topoload/internal/report"
	"github.com/roach88/topoload/internal/restapi"
	"github.com/roach88/topoload/internal/store"
)

// Backend is a logged-in inventory session.
type Backend interface {
	loader.Inventory
	Entity(kind inventory.Kind) inventory.Entity
	Close(ctx context.Context) error
}

// Dialer opens a Backend.
type Dialer func(ctx context.Context, cfg config.Inventory, logger *slog.Logger) (Backend, error)

// ImportOptions holds flags for the import and cleanup commands.
type ImportOptions struct {
	*RootOptions
	Data        string
	Layers      []string
	Database    string
	Driver      string
	BatchSize   int
	Cleanup     bool
	MetricsFile string

	// Dial opens the inventory session. Defaults to the REST gateway.
	Dial Dialer
	// RunIDs overrides the run ID generator (for testing).
	RunIDs ident.Generator
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return newImportCommand(&ImportOptions{RootOptions: rootOpts})
}

func newImportCommand(opts *ImportOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import topology layers into the inventory",
		Long: `Import every configured layer from <data>/<layer>.json, in order.

Items already in the inventory are left untouched. Cables are connected
section by section and their routes stored in the route database.

Exit status is 0 when every item succeeded, 1 when some items failed and
2 when the run could not start or was aborted.

Example:
  topoload import --config topoload.cue --data ./export
  topoload import --data ./export --layers node,cable --db ./routes.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}
	addImportFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Cleanup, "cleanup", false, "delete imported items instead of creating them")
	return cmd
}

// NewCleanupCommand creates the cleanup command, import --cleanup.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	return newCleanupCommand(&ImportOptions{RootOptions: rootOpts})
}

func newCleanupCommand(opts *ImportOptions) *cobra.Command {
	opts.Cleanup = true
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete previously imported items",
		Long: `Delete the inventory items matching <data>/<layer>.json, layers in
reverse order so cables go before the locations they connect.

Items not found in the inventory are skipped; nothing is created.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}
	addImportFlags(cmd, opts)
	return cmd
}

func addImportFlags(cmd *cobra.Command, opts *ImportOptions) {
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "directory of <layer>.json GeoJSON files (required)")
	cmd.Flags().StringSliceVar(&opts.Layers, "layers", nil, "only run these layers")
	cmd.Flags().StringVar(&opts.Database, "db", "", "route/audit database DSN (overrides config)")
	cmd.Flags().StringVar(&opts.Driver, "db-driver", "", "route/audit database driver: sqlite|postgres (overrides config)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "concurrent calls per batch (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	_ = cmd.MarkFlagRequired("data")
}

func runImport(cmd *cobra.Command, opts *ImportOptions) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	logger := slog.Default()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "load config", err)
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "invalid flags", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.OpenDriver(ctx, cfg.Store.Driver, cfg.Store.DSN, store.WithCreatedBy(cfg.CreatedBy))
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeStore, "open store", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()

	dial := opts.Dial
	if dial == nil {
		dial = DialREST
	}
	backend, err := dial(ctx, cfg.Inventory, logger)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeSession, "open inventory session", err)
	}
	defer func() {
		if err := backend.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("logout failed", "error", err)
		}
	}()

	layers, err := loader.Layers(cfg, loader.Deps{
		Entities:  backend.Entity,
		Inventory: backend,
		Routes:    st,
		Logger:    logger,
	})
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "build layers", err)
	}

	reg := prometheus.NewRegistry()
	orchOpts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithBatchSize(cfg.BatchSize),
		loader.WithAudit(st),
		loader.WithMetrics(importer.NewMetrics(reg)),
		loader.WithOnly(opts.Layers...),
	}
	if opts.RunIDs != nil {
		orchOpts = append(orchOpts, loader.WithIDGenerator(opts.RunIDs))
	}
	if cfg.Report.Enabled() {
		up, err := report.New(ctx, report.Config{
			Bucket:   cfg.Report.Bucket,
			Region:   cfg.Report.Region,
			Endpoint: cfg.Report.Endpoint,
			Prefix:   cfg.Report.Prefix,
		}, logger)
		if err != nil {
			return fail(out, ExitCommandError, ErrCodeConfig, "report uploader", err)
		}
		orchOpts = append(orchOpts, loader.WithUploader(up))
	}

	orch, err := loader.New(layers, orchOpts...)
	if err != nil {
		return fail(out, ExitCommandError, ErrCodeConfig, "invalid layers", err)
	}

	rep, runErr := orch.Run(ctx, loader.FileCollector{Dir: opts.Data}, opts.Cleanup)

	if path := firstNonEmpty(opts.MetricsFile, cfg.MetricsTextfile); path != "" {
		if err := importer.WriteTextfile(path, reg); err != nil {
			logger.Warn("metrics textfile not written", "path", path, "error", err)
		}
	}

	if rep == nil {
		return fail(out, ExitCommandError, ErrCodeRun, "run did not start", runErr)
	}
	if err := out.Success(reportView{rep}); err != nil {
		return err
	}
	if runErr != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: run %s aborted", ErrCodeRun, rep.RunID), runErr)
	}
	if rep.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: %d item(s) failed", rep.RunID, rep.Totals.Failures()))
	}
	return nil
}

// applyFlags lets command-line flags win over file and environment.
func applyFlags(cfg *config.Config, opts *ImportOptions) {
	if opts.Database != "" {
		cfg.Store.DSN = opts.Database
	}
	if opts.Driver != "" {
		cfg.Store.Driver = opts.Driver
	}
	if opts.BatchSize != 0 {
		cfg.BatchSize = opts.BatchSize
	}
}

// DialREST logs in to the REST gateway.
func DialREST(ctx context.Context, cfg config.Inventory, logger *slog.Logger) (Backend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("inventory.base_url is not set (TOPOLOAD_BASE_URL)")
	}
	client := restapi.New(restapi.Session{
		BaseURL:   cfg.BaseURL,
		User:      cfg.User,
		Password:  cfg.Password,
		ManID:     cfg.ManID,
		UserGroup: cfg.UserGroup,
		Timeout:   cfg.HTTPTimeout(),
	}, restapi.WithLogger(logger))
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return restBackend{client}, nil
}

type restBackend struct {
	*restapi.Client
}

func (b restBackend) Entity(kind inventory.Kind) inventory.Entity {
	return b.Client.Entity(kind)
}

func (b restBackend) Close(ctx context.Context) error {
	return b.Client.Logout(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// reportView renders a run report as a table.
type reportView struct {
	*loader.Report
}

func (v reportView) Text() string {
	var b strings.Builder
	mode := "import"
	if v.Cleanup {
		mode = "cleanup"
	}
	fmt.Fprintf(&b, "run %s (%s): %s\n\n", v.RunID, mode, v.Status)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "LAYER\tTOTAL\tGOOD\tCREATED\tDELETED\tFAILED\tDUPLICATE\tSKIPPED\t")
	row := func(name string, c importer.Counts) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
			name, c.Total, c.Good, c.JustImported, c.JustDeleted, c.Failures(), c.Duplicate, c.Skipped)
	}
	for _, l := range v.Layers {
		row(l.Name, l.Counts)
	}
	row("total", v.Totals)
	tw.Flush()

	for _, l := range v.Layers {
		for _, f := range l.Failures {
			fmt.Fprintf(&b, "\n%s #%d %s: %s", l.Name, f.Seq, f.Outcome, f.Message)
		}
	}
	if len(v.Layers) > 0 && v.Totals.Failures() > 0 {
		b.WriteString("\n")
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "\naborted: %s\n", v.Error)
	}
	return b.String()
}
