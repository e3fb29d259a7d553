package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

// NewImportCommand merges a snapshot into stored data.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Import a snapshot",
		Long: `Validate the snapshot and merge it into stored data, one transaction per
classroom. Exits 1 when any classroom failed to commit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args, cmd)
		},
	}
}

func runImport(opts *RootOptions, args []string, cmd *cobra.Command) error {
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

	result, err := backend.Import(cmd.Context(), raw, opts.tenant())
	if err != nil {
		if result == nil {
			return reportError(f, err)
		}
		// the data is committed but the history entry is not
		appErr := appErrors.FromError(err)
		_ = f.Error(appErr.Code, appErr.Message, result)
		return WrapExitError(ExitFailure, appErr.Message, err)
	}

	if err := f.Success(result, func(w io.Writer) { writeImport(w, result) }); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if result.Status != models.ImportStatusSuccess {
		return NewExitError(ExitFailure, fmt.Sprintf("import %s: %s", result.Status, result.Summary))
	}
	return nil
}

func writeImport(w io.Writer, result *dto.ImportResult) {
	fmt.Fprintf(w, "Import %s: %s\n", result.SnapshotID, result.Status)
	fmt.Fprintln(w, result.Summary)
	fmt.Fprintf(w, "Processing time: %dms\n", result.ProcessingTimeMs)
	writeStats(w, result.Stats)
	if len(result.Failures) > 0 {
		fmt.Fprintln(w, "Failures:")
		for _, fl := range result.Failures {
			fmt.Fprintf(w, "  %s  %s: %s\n", fl.ClassroomID, fl.Name, fl.Error)
		}
	}
	writeSkipped(w, result.Skipped)
}
