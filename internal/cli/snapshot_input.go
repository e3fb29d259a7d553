package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

// readSnapshot reads the snapshot named by path; "-" reads stdin.
func readSnapshot(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read snapshot from stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return raw, nil
}

func (o *RootOptions) tenant() models.Tenant {
	return models.Tenant{ID: o.Tenant, Email: o.TenantEmail}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// fileError reports an unreadable input file.
func fileError(f *OutputFormatter, err error) error {
	_ = f.Error("FILE_ERROR", err.Error(), nil)
	return WrapExitError(ExitCommandError, "cannot read snapshot", err)
}

// requireTenant fails commands that touch stored data without --tenant.
func requireTenant(f *OutputFormatter, opts *RootOptions) error {
	if opts.Tenant != "" {
		return nil
	}
	_ = f.Error("TENANT_REQUIRED", "--tenant is required", nil)
	return NewExitError(ExitCommandError, "--tenant is required")
}

// openBackend connects the database-backed services.
func openBackend(cmd *cobra.Command, f *OutputFormatter, opts *RootOptions) (Backend, error) {
	if opts.Backend == nil {
		_ = f.Error("BACKEND_UNAVAILABLE", "no backend configured", nil)
		return nil, NewExitError(ExitCommandError, "no backend configured")
	}
	backend, err := opts.Backend(cmd.Context(), opts.Verbose)
	if err != nil {
		_ = f.Error("BACKEND_UNAVAILABLE", err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "cannot open backend", err)
	}
	return backend, nil
}
