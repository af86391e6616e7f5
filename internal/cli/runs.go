package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/topoload/internal/config"
	"github.com/roach88/topoload/internal/store"
)

// StoreOptions holds flags for commands that only read the route/audit store.
type StoreOptions struct {
	*RootOptions
	Database string
	Driver   string
}

func (o *StoreOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "route/audit database DSN (overrides config)")
	cmd.Flags().StringVar(&o.Driver, "db-driver", "", "route/audit database driver: sqlite|postgres (overrides config)")
}

// open loads the configuration and opens the store it names.
func (o *StoreOptions) open(cmd *cobra.Command, out *OutputFormatter) (*store.Store, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, fail(out, ExitCommandError, ErrCodeConfig, "load config", err)
	}
	if o.Database != "" {
		cfg.Store.DSN = o.Database
	}
	if o.Driver != "" {
		cfg.Store.Driver = o.Driver
	}
	st, err := store.OpenDriver(commandContext(cmd), cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fail(out, ExitCommandError, ErrCodeStore, "open store", err)
	}
	return st, nil
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}
	var runID string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs or show the outcomes of one",
		Long: `List the import and cleanup runs recorded in the audit store, newest
first. With --run, show the per-item outcomes of that run.

Example:
  topoload runs --db ./routes.db
  topoload runs --db ./routes.db --run 0192f4a1-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			st, err := opts.open(cmd, out)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := commandContext(cmd)

			if runID == "" {
				runs, err := st.Runs(ctx)
				if err != nil {
					return fail(out, ExitCommandError, ErrCodeStore, "list runs", err)
				}
				return out.Success(runList(runs))
			}

			run, err := st.GetRun(ctx, runID)
			if err != nil {
				return fail(out, ExitCommandError, ErrCodeStore, "read run", err)
			}
			if run == nil {
				return fail(out, ExitFailure, ErrCodeNotFound, fmt.Sprintf("run %s not found", runID), nil)
			}
			rows, err := st.Outcomes(ctx, runID)
			if err != nil {
				return fail(out, ExitCommandError, ErrCodeStore, "read outcomes", err)
			}
			return out.Success(runDetail{Run: *run, Outcomes: rows})
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&runID, "run", "", "show outcomes of this run")
	return cmd
}

type runList []store.Run

func (l runList) Text() string {
	if len(l) == 0 {
		return "no runs recorded\n"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODE\tSTATUS\tSTARTED\tFINISHED")
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RunID, mode(r.Cleanup), r.Status, r.StartedAt, r.FinishedAt)
	}
	tw.Flush()
	return b.String()
}

type runDetail struct {
	Run      store.Run          `json:"run" yaml:"run"`
	Outcomes []store.OutcomeRow `json:"outcomes" yaml:"outcomes"`
}

func (d runDetail) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s): %s\n\n", d.Run.RunID, mode(d.Run.Cleanup), d.Run.Status)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tSEQ\tKEY\tOUTCOME\tELID\tMESSAGE")
	for _, o := range d.Outcomes {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", o.Layer, o.Seq, o.IdentityKey, o.Outcome, o.Elid, o.Message)
	}
	tw.Flush()
	return b.String()
}

func mode(cleanup bool) string {
	if cleanup {
		return "cleanup"
	}
	return "import"
}
