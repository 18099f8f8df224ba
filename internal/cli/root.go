// Package cli implements portalctl, the operator command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/conferenceportal/internal/adminauth"
	"github.com/Lllllllleong/conferenceportal/internal/metrics"
	"github.com/Lllllllleong/conferenceportal/internal/review"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	As     string // acting user id
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// App is what commands operate on.
type App struct {
	Store  store.Store
	Review *review.Service
}

// Opener connects to the backing store.
type Opener func(ctx context.Context) (store.Store, error)

// NewApp builds the services the CLI drives. Operators have no bearer token,
// so privilege comes from the registry and the user's role.
func NewApp(st store.Store) *App {
	admins := adminauth.NewResolver(adminauth.RegistryStrategy{Store: st}, adminauth.RoleStrategy{Store: st})
	return &App{
		Store:  st,
		Review: review.NewService(st, nil, nil, admins, metrics.New(), review.LoadConfig()),
	}
}

// NewRootCommand creates the portalctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}
	var app *App

	cmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Operate the conference submission portal",
		Long:  "Administrative tooling for submission review, identity verification and the administrators registry.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			st, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("connecting to store: %w", err)
			}
			app = NewApp(st)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Store.Close()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "user id to act as")

	appFn := func() *App { return app }
	cmd.AddCommand(newTransitionCommand(opts, appFn))
	cmd.AddCommand(newHistoryCommand(opts, appFn))
	cmd.AddCommand(newVerifyIdentityCommand(opts, appFn))
	cmd.AddCommand(newGrantAdminCommand(opts, appFn))

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

func requireActor(opts *RootOptions) error {
	if opts.As == "" {
		return fmt.Errorf("--as is required")
	}
	return nil
}
