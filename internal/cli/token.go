package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classroom-snapshot-api/internal/service"
	"github.com/noah-isme/classroom-snapshot-api/pkg/config"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Secret string
	Issuer string
	Name   string
	TTL    time.Duration
}

type issuedToken struct {
	Token     string `json:"token"`
	TeacherID string `json:"teacherId"`
	ExpiresIn string `json:"expiresIn"`
}

// NewTokenCommand signs a bearer token for local testing of the API.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a teacher",
		Long: `Sign an HS256 token for --tenant with the API's JWT secret.
The secret and issuer default to JWT_SECRET and JWT_ISSUER.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&opts.Issuer, "issuer", "", "token issuer (default $JWT_ISSUER)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "teacher display name")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if err := requireTenant(f, opts.RootOptions); err != nil {
		return err
	}

	secret, issuer := opts.Secret, opts.Issuer
	if secret == "" {
		cfg, err := config.Load()
		if err != nil {
			_ = f.Error("CONFIG_ERROR", err.Error(), nil)
			return WrapExitError(ExitCommandError, "load config", err)
		}
		secret = cfg.JWT.Secret
		if issuer == "" {
			issuer = cfg.JWT.Issuer
		}
	}
	if secret == "" {
		_ = f.Error("CONFIG_ERROR", "no signing secret: pass --secret or set JWT_SECRET", nil)
		return NewExitError(ExitCommandError, "no signing secret")
	}

	auth := service.NewAuthService(service.AuthConfig{Secret: secret, Issuer: issuer})
	token, err := auth.IssueToken(opts.tenant(), opts.Name, opts.TTL)
	if err != nil {
		return reportError(f, err)
	}
	out := issuedToken{Token: token, TeacherID: opts.Tenant, ExpiresIn: opts.TTL.String()}
	if err := f.Success(out, func(w io.Writer) { fmt.Fprintln(w, token) }); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
