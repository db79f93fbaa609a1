package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and keep the session token",
		Long: `Authenticates against the API. The password is read from --password,
then from DNSCTL_PASSWORD, then from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = a.v.GetString("password")
			}
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if err := a.sessions.Login(cmd.Context(), args[0], password); err != nil {
				return err
			}
			user, _ := a.sessions.User()
			a.success("Logged in as %s (%s)", user.Username, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.sessions.Logout(cmd.Context())
			a.success("Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.sessions.User()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s)\n", user.Username, user.Role)
			return nil
		},
	}
}
