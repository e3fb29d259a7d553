// Package cli implements snapshotctl, the operator command line for
// validating, previewing and importing classroom snapshots.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "text" | "json" | "yaml"
	Tenant      string
	TenantEmail string

	// Backend opens the database-backed services for diff, import and history.
	Backend BackendFactory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the snapshotctl root command.
func NewRootCommand(backend BackendFactory) *cobra.Command {
	opts := &RootOptions{Backend: backend}

	cmd := &cobra.Command{
		Use:   "snapshotctl",
		Short: "Validate, preview and import classroom snapshots",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
				return NewExitError(ExitCommandError, msg)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Tenant, "tenant", "", "teacher id the snapshot belongs to")
	cmd.PersistentFlags().StringVar(&opts.TenantEmail, "tenant-email", "", "teacher email; the snapshot owner must match it when set")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
