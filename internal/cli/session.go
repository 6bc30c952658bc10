package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"github.com/tesla-access/tesla-client/internal/metrics"
	"github.com/tesla-access/tesla-client/session"
)

func printState(out io.Writer, s session.State) {
	fmt.Fprintf(out, "Status:    %s\n", s.Status)
	fmt.Fprintf(out, "Logged in: %t\n", s.LoggedIn)
	if !s.LastRefreshAt.IsZero() {
		fmt.Fprintf(out, "Refreshed: %s\n", s.LastRefreshAt.Format(time.RFC3339))
	}
	if !s.AccessTokenExpiresAt.IsZero() {
		fmt.Fprintf(out, "Expires:   %s\n", s.AccessTokenExpiresAt.Format(time.RFC3339))
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Restore the stored session and report its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop, err := a.startSession(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			s := m.Snapshot()
			printState(cmd.OutOrStdout(), s)
			if !s.LoggedIn && a.metrics.RefreshCount(metrics.TriggerStartup, metrics.ResultFailure) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Stored session was rejected, log in again")
			}
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Obtain a new access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop, err := a.startSession(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			if err := m.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			printState(cmd.OutOrStdout(), m.Snapshot())
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var noBanner bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session fresh and print every state change until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			if !noBanner {
				banner := figure.NewFigure(a.cfg.GetAppName(), "cybermedium", true)
				fmt.Fprintln(out, banner.String())
			}

			m, stop, err := a.startSession(ctx)
			if err != nil {
				return err
			}
			defer stop()

			states, unsubscribe := m.Subscribe()
			defer unsubscribe()

			var (
				last    session.State
				printed bool
			)
			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "stopped")
					return nil
				case s, ok := <-states:
					if !ok {
						return nil
					}
					if printed && s.Status == last.Status && s.LastRefreshAt.Equal(last.LastRefreshAt) {
						continue
					}
					last, printed = s, true
					refreshed := "never"
					if !s.LastRefreshAt.IsZero() {
						refreshed = s.LastRefreshAt.Format(time.TimeOnly)
					}
					fmt.Fprintf(out, "%s  %-16s refreshed=%s\n", time.Now().Format(time.TimeOnly), s.Status, refreshed)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "Do not print the banner")
	return cmd
}
