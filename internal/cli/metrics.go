package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sesamum.org/internal/apiclient"
	"sesamum.org/internal/dashboard"
	"sesamum.org/internal/poll"
)

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show dashboard metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			watch, _ := cmd.Flags().GetBool("watch")
			if !watch {
				m, err := e.svc.Metrics(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to load metrics: %s", apiclient.ErrorMessage(err))
				}
				printMetrics(cmd.OutOrStdout(), m, time.Now())
				return nil
			}

			interval, _ := cmd.Flags().GetDuration("interval")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			f := poll.New(e.svc.Metrics,
				poll.WithName("cli_metrics"),
				poll.WithInterval(interval),
				poll.WithPauseWhenHidden(false),
			)
			updates := f.Subscribe(ctx)
			f.Start(ctx)
			defer f.Stop()

			out := cmd.OutOrStdout()
			for st := range updates {
				switch {
				case st.Loading:
				case st.Error != "":
					fmt.Fprintf(out, "%s %s\n", failMark, color.New(color.FgRed).Sprint(st.Error))
				case st.Data != nil && st.LastUpdate != nil:
					printMetrics(out, *st.Data, *st.LastUpdate)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("watch", false, "keep polling until interrupted")
	cmd.Flags().Duration("interval", poll.DefaultInterval, "polling interval for --watch")
	return cmd
}

func printMetrics(w io.Writer, m dashboard.Metrics, at time.Time) {
	fmt.Fprintf(w, "Updated %s\n", at.Local().Format(time.TimeOnly))
	fmt.Fprintf(w, "  Active events:    %d\n", m.ActiveEvents)
	fmt.Fprintf(w, "  Projects:         %d\n", m.TotalProjects)
	fmt.Fprintf(w, "  Companies:        %d\n", m.TotalCompanies)
	fmt.Fprintf(w, "  Users:            %d\n", m.TotalUsers)
	fmt.Fprintf(w, "  Recent check-ins: %d\n", m.RecentCheckIns)
}
