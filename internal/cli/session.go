package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/auth"
	"sesamum.org/internal/dashboard"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token pair locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("SESAMUM_PASSWORD")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("email and password are required\nHint: use --email and --password or SESAMUM_PASSWORD")
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			tokens, err := e.api.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %s", apiclient.ErrorMessage(err))
			}
			if err := e.sess.SetTokens(cmd.Context(), tokens.Access, tokens.Refresh); err != nil {
				return fmt.Errorf("failed to store tokens: %w", err)
			}
			name := email
			if actor := e.sess.Actor(cmd.Context()); actor != nil && actor.Name != "" {
				name = actor.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s\n", okMark, name)
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if refresh, ok := e.sess.RefreshToken(cmd.Context()); ok {
				if err := e.api.Logout(cmd.Context(), refresh); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: server logout failed: %s\n", apiclient.ErrorMessage(err))
				}
			}
			if err := e.sess.Logout(cmd.Context(), "user"); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed out\n", okMark)
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			refresh, ok := e.sess.RefreshToken(cmd.Context())
			if !ok {
				return errors.New("not signed in\nHint: run login first")
			}
			tokens, err := e.api.Refresh(cmd.Context(), refresh)
			if err != nil {
				return fmt.Errorf("refresh failed: %s", apiclient.ErrorMessage(err))
			}
			if err := e.sess.SetTokens(cmd.Context(), tokens.Access, tokens.Refresh); err != nil {
				return fmt.Errorf("failed to store tokens: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Session refreshed\n", okMark)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity and the pages it can reach",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			actor := e.sess.Actor(cmd.Context())
			if actor == nil {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			fmt.Fprintf(out, "%s <%s>\n", actor.Name, actor.Email)
			fmt.Fprintf(out, "  Role: %s\n", color.New(color.FgCyan).Sprint(actor.Role))
			if actor.CompanyID != nil {
				fmt.Fprintf(out, "  Company: %d\n", *actor.CompanyID)
			}
			if dev := e.sess.DevRole(cmd.Context()); dev != "" {
				fmt.Fprintf(out, "  Dev override: %s\n", dev)
			}
			fmt.Fprintln(out, "  Pages:")
			for _, item := range dashboard.Navigation(actor.Role) {
				fmt.Fprintf(out, "    %-10s %s\n", item.Label, item.Path)
			}
			return nil
		},
	}
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage the development role override",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [role]",
		Short: "Act as another role (admin, company, control, dev)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.sess.SetDevRole(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, auth.ErrInvalidInput) {
					return fmt.Errorf("invalid role: %s\nValid roles: admin, company, control, dev", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Role override set to %s\n", okMark, args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the role override",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.sess.SetDevRole(cmd.Context(), ""); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Role override cleared\n", okMark)
			return nil
		},
	})
	return cmd
}
