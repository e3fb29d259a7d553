package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/service"
)

const defaultMaxSnapshotBytes = 32 * 1024 * 1024

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	MaxBytes int64
}

// NewValidateCommand checks a snapshot file without touching stored data.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <snapshot.json>",
		Short: "Validate a snapshot file offline",
		Long: `Decode and validate a classroom snapshot and print its stats and preview.
Nothing is read from or written to the database. Use "-" to read stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}
	cmd.Flags().Int64Var(&opts.MaxBytes, "max-bytes", defaultMaxSnapshotBytes, "reject snapshots larger than this (0 disables)")
	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	raw, err := readSnapshot(cmd, args[0])
	if err != nil {
		return fileError(f, err)
	}
	f.VerboseLog("read %d bytes from %s", len(raw), args[0])

	validator := service.NewSnapshotValidator(opts.MaxBytes, nil)
	_, result, err := validator.ValidateRaw(raw, opts.tenant())
	if err != nil {
		return reportError(f, err)
	}

	if err := f.Success(result, func(w io.Writer) { writeValidation(w, result) }); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if !result.IsValid {
		return NewExitError(ExitFailure, fmt.Sprintf("snapshot is invalid (%d %s)", len(result.Issues), plural(len(result.Issues), "issue")))
	}
	return nil
}

func writeValidation(w io.Writer, result dto.ValidationResult) {
	if result.IsValid {
		fmt.Fprintln(w, "Snapshot: valid")
	} else {
		fmt.Fprintf(w, "Snapshot: invalid (%d %s)\n", len(result.Issues), plural(len(result.Issues), "issue"))
	}
	fmt.Fprintf(w, "Teacher: %s <%s>\n", result.Preview.Teacher.Name, result.Preview.Teacher.Email)
	st := result.Stats
	fmt.Fprintf(w, "Classrooms: %d  Students: %d  Assignments: %d  Submissions: %d  Ungraded: %d\n",
		st.Classrooms, st.Students, st.Assignments, st.Submissions, st.Ungraded)

	if len(result.Preview.Classrooms) > 0 {
		fmt.Fprintln(w)
		for _, c := range result.Preview.Classrooms {
			fmt.Fprintf(w, "  %s  %s  students=%d assignments=%d submissions=%d ungraded=%d\n",
				c.ID, c.Name, c.Students, c.Assignments, c.Submissions, c.Ungraded)
		}
	}
	if len(result.Issues) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Issues:")
		for _, issue := range result.Issues {
			fmt.Fprintf(w, "  %s: %s\n", issue.Path, issue.Message)
		}
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
