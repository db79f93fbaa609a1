package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer accounts (admin)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.users.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := a.table()
			fmt.Fprintln(tw, "USERNAME\tROLE\tCREATED\tLAST LOGIN")
			for _, u := range list {
				last := "never"
				if u.LastLogin != nil {
					last = u.LastLogin.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.Role, u.CreatedAt.Format(time.RFC3339), last)
			}
			return tw.Flush()
		},
	}

	var password, role string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.users.Create(cmd.Context(), args[0], password, role); err != nil {
				return err
			}
			a.success("User %s created", args[0])
			return nil
		},
	}
	create.Flags().StringVar(&password, "password", "", "Initial password, at least 8 characters")
	create.Flags().StringVar(&role, "role", "user", "Role: admin or user")
	_ = create.MarkFlagRequired("password")

	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.users.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.success("User %s deleted", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}
