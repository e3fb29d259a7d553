package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit  int
	Offset int
	Status string
}

// historyPage is the json/yaml payload of the history command.
type historyPage struct {
	Entries []dto.HistoryEntry `json:"entries"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// NewHistoryCommand lists past imports of a teacher, newest first.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List past imports",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of imports to show")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of imports to skip")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only show success, partial or failure")
	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if err := requireTenant(f, opts.RootOptions); err != nil {
		return err
	}
	if opts.Limit <= 0 {
		_ = f.Error("INVALID_FLAG", "--limit must be positive", nil)
		return NewExitError(ExitCommandError, "--limit must be positive")
	}

	backend, err := openBackend(cmd, f, opts.RootOptions)
	if err != nil {
		return err
	}
	defer backend.Close()

	entries, total, err := backend.History(cmd.Context(), models.HistoryFilter{
		TeacherID: opts.Tenant,
		Status:    models.ImportStatus(opts.Status),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
	if err != nil {
		return reportError(f, err)
	}

	page := historyPage{Entries: entries, Total: total, Limit: opts.Limit, Offset: opts.Offset}
	if err := f.Success(page, func(w io.Writer) { writeHistory(w, page) }); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}

func writeHistory(w io.Writer, page historyPage) {
	if len(page.Entries) == 0 {
		fmt.Fprintln(w, "No imports recorded")
		return
	}
	for _, e := range page.Entries {
		st := e.Stats
		fmt.Fprintf(w, "%s  %s  %-7s  classrooms +%d ~%d  submissions +%d v%d  grades kept=%d orphaned=%d\n",
			e.Timestamp, e.ID, e.Status,
			st.ClassroomsCreated, st.ClassroomsUpdated,
			st.SubmissionsCreated, st.SubmissionsVersioned,
			st.GradesPreserved, st.GradesOrphaned)
	}
	fmt.Fprintf(w, "Showing %d-%d of %d\n", page.Offset+1, page.Offset+len(page.Entries), page.Total)
}
