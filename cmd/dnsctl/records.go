package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dnsmanager/internal/dnsrecord"
	"dnsmanager/internal/failure"
)

func (a *app) recordsCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "records <zone-file>",
		Short: "Show the records of a zone",
		Long: `Shows the SOA and the records of a zone. The leading number of each row
addresses the record in "records update" and "records delete".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.records.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.printRecords(search)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only show records whose name, value or type contains this")

	cmd.AddCommand(a.recordAddCmd(), a.recordUpdateCmd(), a.recordDeleteCmd())
	return cmd
}

func (a *app) printRecords(search string) error {
	file, zd, ok := a.records.Snapshot()
	if !ok {
		return failure.Validation("No zone selected")
	}
	fmt.Fprintf(a.out, "Zone %s  serial %s  primary %s  admin %s\n\n", file, zd.SOA.Serial, zd.SOA.PrimaryNS, zd.SOA.AdminEmail)

	tw := a.table()
	fmt.Fprintln(tw, "#\tTYPE\tNAME\tVALUE\tCOMMENT")
	for i, rec := range zd.Records {
		if search != "" && !dnsrecord.MatchesQuery(rec, search) {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, rec.Type(), dnsrecord.DisplayName(rec), dnsrecord.DisplayValue(rec), rec.Comment)
	}
	return tw.Flush()
}

// parseSets turns repeated key=value flags into form values.
func parseSets(sets []string) (map[string]string, error) {
	values := make(map[string]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, failure.Validation("Expected field=value, got %q", s)
		}
		values[strings.TrimSpace(k)] = v
	}
	return values, nil
}

// pick returns the record at the 1-based position shown by "records".
func (a *app) pick(arg string) (dnsrecord.Record, error) {
	_, zd, _ := a.records.Snapshot()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(zd.Records) {
		return dnsrecord.Record{}, failure.NotFound("Record not found")
	}
	return zd.Records[n-1], nil
}

func fieldHelp() string {
	var b strings.Builder
	b.WriteString("Fields per type:\n")
	for _, t := range dnsrecord.Types() {
		names := make([]string, 0, 5)
		for _, f := range dnsrecord.FieldsFor(t) {
			names = append(names, f.Name)
		}
		fmt.Fprintf(&b, "  %-6s %s\n", t, strings.Join(names, ", "))
	}
	return b.String()
}

func (a *app) recordAddCmd() *cobra.Command {
	var (
		rtype   string
		sets    []string
		comment string
	)
	cmd := &cobra.Command{
		Use:     "add <zone-file>",
		Short:   "Add a record",
		Long:    "Adds a record built from --type and --set field=value pairs.\n\n" + fieldHelp(),
		Example: "  dnsctl records add Z123 --type MX --set name=@ --set priority=10 --set mailserver=mail.example.com.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := dnsrecord.ParseType(rtype)
			if !ok {
				return failure.Validation("Unsupported record type: %s", rtype)
			}
			values, err := parseSets(sets)
			if err != nil {
				return err
			}
			rec, err := dnsrecord.Parse(t, values, comment)
			if err != nil {
				return err
			}
			if err := a.records.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.records.Add(cmd.Context(), rec); err != nil {
				return err
			}
			a.success("Record added")
			return a.printRecords("")
		},
	}
	cmd.Flags().StringVar(&rtype, "type", "", "Record type")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as field=value, repeatable")
	cmd.Flags().StringVar(&comment, "comment", "", "Record comment")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (a *app) recordUpdateCmd() *cobra.Command {
	var (
		sets    []string
		comment string
	)
	cmd := &cobra.Command{
		Use:   "update <zone-file> <number>",
		Short: "Change fields of a record",
		Long: `Replaces the record at <number> (as shown by "records") with a copy whose
--set fields are changed. The type cannot change.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseSets(sets)
			if err != nil {
				return err
			}
			if err := a.records.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			old, err := a.pick(args[1])
			if err != nil {
				return err
			}

			values := dnsrecord.Fields(old)
			for k, v := range changes {
				values[k] = v
			}
			newComment := old.Comment
			if cmd.Flags().Changed("comment") {
				newComment = comment
			}
			updated, err := dnsrecord.Parse(old.Type(), values, newComment)
			if err != nil {
				return err
			}
			if err := a.records.Update(cmd.Context(), old, updated); err != nil {
				return err
			}
			a.success("Record updated")
			return a.printRecords("")
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as field=value, repeatable")
	cmd.Flags().StringVar(&comment, "comment", "", "New comment")
	return cmd
}

func (a *app) recordDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <zone-file> <number>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.records.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			rec, err := a.pick(args[1])
			if err != nil {
				return err
			}
			if err := a.records.Delete(cmd.Context(), rec); err != nil {
				return err
			}
			a.success("Record deleted")
			return a.printRecords("")
		},
	}
}

func (a *app) reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <zone-name>",
		Short: "Reload a zone on the nameserver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.records.ReloadZone(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.success("Zone %s reloaded", args[0])
			return nil
		},
	}
}

func (a *app) restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the DNS service (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.records.RestartService(cmd.Context()); err != nil {
				return err
			}
			a.success("Service restarted")
			return nil
		},
	}
}
