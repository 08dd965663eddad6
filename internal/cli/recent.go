package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sesamum.org/internal/recent"
)

func recentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Manage the recent activity log",
	}
	cmd.AddCommand(recentListCmd(), recentAddCmd(), recentClearCmd())
	return cmd
}

func recentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent visits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			visits := recent.NewTracker(e.backend.KV).List(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(visits)
			}
			if len(visits) == 0 {
				fmt.Fprintln(out, "No recent activity.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tTITLE\tURL\tWHEN")
			for _, v := range visits {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Type, v.Title, v.URL, v.Timestamp.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "print the log as JSON")
	return cmd
}

func recentAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [type] [title]",
		Short: "Record a visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := recent.Type(args[0])
			if !recent.ValidType(t) {
				return fmt.Errorf("invalid visit type: %s\nValid types: event, project, user, checkin, staff, company", args[0])
			}
			v := recent.Visit{Type: t, Title: args[1]}
			v.Description, _ = cmd.Flags().GetString("description")
			v.URL, _ = cmd.Flags().GetString("url")
			if cmd.Flags().Changed("entity") {
				id, _ := cmd.Flags().GetInt64("entity")
				v.EntityID = &id
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			added, ok := recent.NewTracker(e.backend.KV).Add(cmd.Context(), v)
			if !ok {
				return fmt.Errorf("failed to record visit")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Recorded %s %q (%s)\n", okMark, added.Type, added.Title, added.ID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "short description")
	cmd.Flags().String("url", "", "dashboard path of the entity")
	cmd.Flags().Int64("entity", 0, "entity id; repeated visits to the same entity replace each other")
	return cmd
}

func recentClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded visit",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			if !recent.NewTracker(e.backend.KV).Clear(cmd.Context()) {
				return fmt.Errorf("failed to clear recent activity")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared recent activity\n", okMark)
			return nil
		},
	}
}
