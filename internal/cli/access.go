package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sesamum.org/internal/auth"
)

func canCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "can [action] [resource]",
		Short: "Check whether the current identity may perform an action",
		Long: `Evaluates the role-based permission table locally.

Actions: create, read, update, delete
Resources: projects, events, companies, staffs, users, checks
(the singular forms project, event, company, staff, user, check also work)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := auth.ParseAction(args[0])
			if err != nil {
				return err
			}
			resource, err := auth.ParseResource(args[1])
			if err != nil {
				return err
			}

			var item *auth.Item
			if cmd.Flags().Changed("company") {
				owner, _ := cmd.Flags().GetInt64("company")
				item = auth.OwnedBy(owner)
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			actor := e.sess.Actor(cmd.Context())
			if auth.Can(actor, action, resource, item) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: allowed\n", okMark, action, resource)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: denied\n", failMark, action, resource)
			return ErrDenied
		},
	}
	cmd.Flags().Int64("company", 0, "owning company id of the target record")
	return cmd
}
