// Package cli implements sesamumctl, a terminal client that shares session
// and recent-activity state with the dashboard agent.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/config"
	"sesamum.org/internal/dashboard"
	"sesamum.org/internal/session"
	"sesamum.org/internal/store"
	"sesamum.org/internal/store/sqlite"
)

// ErrDenied is returned by a permission check that fails.
var ErrDenied = errors.New("permission denied")

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// NewRootCmd builds the sesamumctl command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "sesamumctl",
		Short:         "Sesamum credentialing dashboard client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultState, err := sqlite.DefaultPath()
	if err != nil {
		defaultState = "state.db"
	}
	apiURL := os.Getenv("SESAMUM_API_BASE_URL")
	if apiURL == "" {
		apiURL = config.DefaultAPIBaseURL
	}
	root.PersistentFlags().String("state", defaultState, "path to the local state database")
	root.PersistentFlags().String("api", apiURL, "credentialing API base URL")
	root.PersistentFlags().Bool("dev", os.Getenv("SESAMUM_DEV_MODE") == "true", "fall back to the built-in dev user")

	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(whoamiCmd())
	root.AddCommand(roleCmd())
	root.AddCommand(canCmd())
	root.AddCommand(recentCmd())
	root.AddCommand(metricsCmd())
	return root
}

// env is the state a command runs against.
type env struct {
	backend *store.Backend
	sess    *session.Session
	api     *apiclient.Client
	svc     *dashboard.Service
}

func openEnv(cmd *cobra.Command) (*env, error) {
	statePath, _ := cmd.Flags().GetString("state")
	apiURL, _ := cmd.Flags().GetString("api")
	dev, _ := cmd.Flags().GetBool("dev")

	backend, err := store.Open(cmd.Context(), config.Config{StateBackend: "sqlite", StatePath: statePath})
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}
	sess := session.New(backend.KV, session.WithDevUser(dev))
	api := apiclient.New(apiURL, apiclient.WithCredentials(sess))
	return &env{
		backend: backend,
		sess:    sess,
		api:     api,
		svc:     dashboard.NewService(api),
	}, nil
}

func (e *env) Close() error { return e.backend.Close() }
