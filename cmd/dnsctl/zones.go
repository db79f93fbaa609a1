package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dnsmanager/internal/model"
	"dnsmanager/internal/zones"
)

func (a *app) zonesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones [query]",
		Short: "List zones, optionally filtered by name or file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := a.zones.List(cmd.Context())
			if err != nil {
				return err
			}
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			matched := zones.Filter(all, query)

			tw := a.table()
			fmt.Fprintln(tw, "NAME\tFILE\tTYPE")
			for _, z := range matched {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", z.Name, z.File, z.Type)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if z, ok := zones.Single(matched); ok && query != "" {
				fmt.Fprintf(a.out, "\nOne match. Show its records with: dnsctl records %s\n", z.File)
			}
			return nil
		},
	}

	var create model.NewZone
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a forward or reverse zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			create.Name = args[0]
			if err := a.zones.Create(cmd.Context(), create); err != nil {
				return err
			}
			a.success("Zone %s created", create.Name)
			return nil
		},
	}
	createCmd.Flags().StringVar(&create.Type, "type", "forward", "Zone type: forward or reverse")
	createCmd.Flags().StringSliceVar(&create.AllowTransferIPs, "allow-transfer", nil, "Addresses allowed to transfer the zone")
	createCmd.Flags().StringSliceVar(&create.AlsoNotifyIPs, "also-notify", nil, "Addresses notified of changes")

	cmd.AddCommand(createCmd)
	return cmd
}
