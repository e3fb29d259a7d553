package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

// NewDiffCommand previews what importing a snapshot would change.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "diff <snapshot.json>",
		Short:         "Preview an import against stored data",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args, cmd)
		},
	}
}

func runDiff(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if err := requireTenant(f, opts); err != nil {
		return err
	}
	raw, err := readSnapshot(cmd, args[0])
	if err != nil {
		return fileError(f, err)
	}

	backend, err := openBackend(cmd, f, opts)
	if err != nil {
		return err
	}
	defer backend.Close()

	result, err := backend.Diff(cmd.Context(), raw, opts.tenant())
	if err != nil {
		return reportError(f, err)
	}
	if err := f.Success(result, func(w io.Writer) { writeDiff(w, result) }); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}

func writeDiff(w io.Writer, result *dto.DiffResult) {
	if result.IsFirstImport {
		fmt.Fprintln(w, "First import: yes")
	} else {
		fmt.Fprintln(w, "First import: no")
	}
	if ex := result.Existing; ex != nil {
		fmt.Fprintf(w, "Existing: %d classrooms, %d assignments, %d active enrollments, %d submissions (%d graded)\n",
			ex.Classrooms, ex.Assignments, ex.ActiveEnrollments, ex.Submissions, ex.Graded)
	}
	if n := result.New; n != nil {
		fmt.Fprintf(w, "New: %d classrooms, %d assignments, %d enrollments, %d submissions, %d grades\n",
			len(n.Classrooms), n.Assignments, n.Enrollments, n.Submissions, n.Grades)
		for _, c := range n.Classrooms {
			fmt.Fprintf(w, "  + %s  %s\n", c.ID, c.Name)
		}
	}
	if ch := result.Changes; ch != nil {
		fmt.Fprintf(w, "Changes: %d assignments updated, %d submissions versioned, %d unchanged, %d grades preserved, %d grades orphaned, %d enrollments archived\n",
			ch.AssignmentsUpdated, ch.SubmissionsVersioned, ch.SubmissionsUnchanged, ch.GradesPreserved, ch.GradesOrphaned, ch.EnrollmentsArchived)
		for _, c := range ch.Classrooms {
			fmt.Fprintf(w, "  ~ %s  %s  students %d->%d assignments %d->%d submissions %d->%d ungraded %d->%d\n",
				c.ID, c.Name,
				c.Before.Students, c.After.Students,
				c.Before.Assignments, c.After.Assignments,
				c.Before.Submissions, c.After.Submissions,
				c.Before.Ungraded, c.After.Ungraded)
		}
	}
	writeStats(w, result.Stats)
	writeSkipped(w, result.Skipped)
}

func writeStats(w io.Writer, st models.ImportStats) {
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  classrooms   created=%d updated=%d\n", st.ClassroomsCreated, st.ClassroomsUpdated)
	fmt.Fprintf(w, "  assignments  created=%d updated=%d\n", st.AssignmentsCreated, st.AssignmentsUpdated)
	fmt.Fprintf(w, "  enrollments  created=%d updated=%d archived=%d\n", st.EnrollmentsCreated, st.EnrollmentsUpdated, st.EnrollmentsArchived)
	fmt.Fprintf(w, "  submissions  created=%d versioned=%d unchanged=%d\n", st.SubmissionsCreated, st.SubmissionsVersioned, st.SubmissionsUnchanged)
	fmt.Fprintf(w, "  grades       created=%d preserved=%d orphaned=%d\n", st.GradesCreated, st.GradesPreserved, st.GradesOrphaned)
	if st.Skipped > 0 {
		fmt.Fprintf(w, "  skipped      %d\n", st.Skipped)
	}
}

func writeSkipped(w io.Writer, skipped []models.SkippedEntity) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintln(w, "Skipped:")
	for _, s := range skipped {
		fmt.Fprintf(w, "  %s %s (classroom %s): %s\n", s.Kind, s.ExternalID, s.ClassroomID, s.Reason)
	}
}
