package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/compgroup/internal/store"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var groupOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List computations",
		Long: `List computations with their id, name, enabled flag and group.

Example:
  convert2group list --db hdb.db
  convert2group list --db hdb.db --groups --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, rootOpts, groupOnly)
		},
	}
	cmd.Flags().BoolVar(&groupOnly, "groups", false, "list group computations only")
	return cmd
}

// CompRow is one line of the list output.
type CompRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	Enabled   bool   `json:"enabled"`
	Group     string `json:"group,omitempty"`
}

// CompList is the list command output.
type CompList []CompRow

func (l CompList) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tALGORITHM\tENABLED\tGROUP")
	for _, r := range l {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", r.ID, r.Name, r.Algorithm, r.Enabled, r.Group)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func runList(cmd *cobra.Command, opts *RootOptions, groupOnly bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cmd.ErrOrStderr(), cfg.Verbose || opts.Verbose)

	st, err := store.Open(cfg.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err).WithCode(ErrCodeDatabase)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	comps, err := st.ListComputations(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list computations", err).WithCode(ErrCodeDatabase)
	}
	list := CompList{}
	for _, c := range comps {
		if groupOnly && !c.IsGroupComp() {
			continue
		}
		list = append(list, CompRow{
			ID:        int64(c.ID),
			Name:      c.Name,
			Algorithm: c.AlgorithmName,
			Enabled:   c.Enabled,
			Group:     c.GroupName,
		})
	}
	return opts.formatter(cmd).Success(list)
}
