package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run `tesla login`")

// prompt reads one line from in after printing label to out.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the refresh token for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				if username, err = prompt(in, cmd.OutOrStdout(), "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(in, cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}

			m, stop, err := a.startSession(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			if err := m.Login(cmd.Context(), username, password); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted if omitted)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted if omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the stored refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop, err := a.startSession(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			if err := m.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out locally (server said: %v)\n", err)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var username, password, firstName, lastName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (does not log in)",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.newClient().Register(cmd.Context(), username, password, firstName, lastName)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	return cmd
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, stop, err := a.requireLogin(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			who, err := m.WhoAmI(cmd.Context())
			if err != nil {
				return fmt.Errorf("who-am-i: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", who.ID)
			fmt.Fprintf(out, "Username: %s\n", who.Username)
			fmt.Fprintf(out, "Name:     %s %s\n", who.FirstName, who.LastName)
			return nil
		},
	}
}
