package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/conferenceportal/internal/review"
)

func newTransitionCommand(opts *RootOptions, app func() *App) *cobra.Command {
	var comments string
	cmd := &cobra.Command{
		Use:   "transition <submission-id> <status>",
		Short: "Record a review decision on a submission",
		Long: `Move a submission to accepted, accepted_with_revision or rejected.

accepted_with_revision requires --comments, which the author sees as
revision instructions.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireActor(opts); err != nil {
				return err
			}
			sub, err := app().Review.TransitionStatus(cmd.Context(), review.TransitionRequest{
				SubmissionID: args[0],
				AdminID:      opts.As,
				Status:       args[1],
				Comments:     comments,
			})
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), sub)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (version %d)\n", sub.ID, sub.Status, sub.CurrentVersion)
			return nil
		},
	}
	cmd.Flags().StringVarP(&comments, "comments", "c", "", "review comments")
	return cmd
}

func newHistoryCommand(opts *RootOptions, app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <submission-id>",
		Short: "Show every version of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireActor(opts); err != nil {
				return err
			}
			versions, err := app().Review.VersionHistory(cmd.Context(), args[0], opts.As)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), versions)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tSTATUS\tSUBMITTED\tCOMMENT\tFILE")
			for _, v := range versions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", v.Version, v.Status, v.SubmittedAt.Format(time.RFC3339), v.AdminComment, v.FileURL)
			}
			return tw.Flush()
		},
	}
}

func newVerifyIdentityCommand(opts *RootOptions, app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:       "verify-identity <user-id> <approve|reject>",
		Short:     "Approve or reject a pending identity document",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"approve", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireActor(opts); err != nil {
				return err
			}
			user, err := app().Review.ReviewIdentityDocument(cmd.Context(), opts.As, args[0], args[1])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s verification is now %s\n", user.ID, user.VerificationStatus)
			return nil
		},
	}
}

func newGrantAdminCommand(opts *RootOptions, app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "grant-admin <user-id>",
		Short: "Add a user to the administrators registry",
		Long: `Add a user to the administrators registry.

This writes the registry directly with the operator's own cloud
credentials and does not consult --as.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app().Store.RegisterAdmin(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("registering admin: %w", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"userId": args[0], "status": "granted"})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s added to the administrators registry\n", args[0])
			return nil
		},
	}
}
