package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/topoload/internal/store"
)

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "route <cable-elid>",
		Short: "Show the stored route of a cable",
		Long: `Print the tray sections a cable was routed through, in hop order.

Example:
  topoload route --db ./routes.db DC-000123`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			st, err := opts.open(cmd, out)
			if err != nil {
				return err
			}
			defer st.Close()

			hops, err := st.RouteHops(commandContext(cmd), args[0])
			if err != nil {
				return fail(out, ExitCommandError, ErrCodeStore, "read route", err)
			}
			if len(hops) == 0 {
				return fail(out, ExitFailure, ErrCodeNotFound, fmt.Sprintf("no route stored for cable %s", args[0]), nil)
			}
			return out.Success(routeView(hops))
		},
	}
	opts.addFlags(cmd)
	return cmd
}

type routeView []store.RouteRow

func (r routeView) Text() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTRAY SECTION\tSWAP\tLINK")
	for _, h := range r {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", h.Hop.Sequence, h.Hop.TraySectionElid, h.Hop.Swapped, h.LinkElid)
	}
	tw.Flush()
	return b.String()
}
