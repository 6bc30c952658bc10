package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tesla-access/tesla-client/resources"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}
	cmd.AddCommand(newUsersListCmd(a), newUsersArchiveCmd(a))
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	var q resources.UserQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop, err := a.requireLogin(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			users, err := resources.New(m).Users.List(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tROLE\tSTATUS")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n", u.ID, u.Username, u.FirstName, u.LastName, u.Role, u.Status)
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.Role, "role", "", "Filter by role")
	f.StringVar(&q.Status, "status", "", "Filter by status (archived users are hidden unless requested)")
	f.StringVar(&q.OrderBy, "order-by", "", "Order by username, firstName, lastName, role or status")
	f.StringVar(&q.OrderDir, "order-dir", "", "asc or desc")
	f.IntVar(&q.Page, "page", 0, "Page number, starting at 1")
	f.IntVar(&q.PerPage, "per-page", 0, "Page size (server default 20, max 100)")
	return cmd
}

func newUsersArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <user_id>",
		Short: "Archive a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop, err := a.requireLogin(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			if err := resources.New(m).Users.Archive(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("archive user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s archived\n", args[0])
			return nil
		},
	}
}

func newReportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Export audit reports",
	}
	cmd.AddCommand(newReportsExportCmd(a))
	return cmd
}

func newReportsExportCmd(a *app) *cobra.Command {
	var (
		format, output, start, end string
		q                          resources.ReportQuery
	)

	kinds := make([]string, 0, len(resources.ReportKinds))
	for _, k := range resources.ReportKinds {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:       "export <" + strings.Join(kinds, "|") + ">",
		Short:     "Export a report as CSV or JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if q.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if q.EndDate, err = parseDate(end); err != nil {
				return err
			}

			m, stop, err := a.requireLogin(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			body, err := resources.New(m).Reports.Export(cmd.Context(), resources.ReportKind(args[0]), q, resources.Format(format))
			if err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0600); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&format, "format", string(resources.FormatCSV), "csv or json")
	f.StringVarP(&output, "output", "o", "", "Output file (stdout if omitted)")
	f.StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	f.StringVar(&q.UserID, "user", "", "Filter by user id")
	f.StringVar(&q.DeviceID, "device", "", "Filter by device id")
	f.StringVar(&q.AccessCardID, "access-card", "", "Filter by access card id")
	f.StringVar(&q.AccessNodeID, "access-node", "", "Filter by access node id")
	f.StringVar(&q.Action, "action", "", "Filter by action")
	f.IntVar(&q.Page, "page", 0, "Page number, starting at 1")
	f.IntVar(&q.PerPage, "per-page", 0, "Rows per page")
	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
