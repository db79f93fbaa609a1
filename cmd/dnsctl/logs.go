package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dnsmanager/internal/audit"
)

func (a *app) logsCmd() *cobra.Command {
	var (
		f      audit.Filter
		action string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Action = audit.Action(action)
			if f.Action != "" && !f.Action.Valid() {
				return fmt.Errorf("unknown action %q", action)
			}
			token, err := a.sessions.Token()
			if err != nil {
				return err
			}
			events, err := a.api.Logs(cmd.Context(), token, f)
			if err != nil {
				return a.sessions.Observe(cmd.Context(), err)
			}

			tw := a.table()
			fmt.Fprintln(tw, "TIME\tUSER\tACTION\tSTATUS\tZONE\tTYPE\tERROR")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					ev.Timestamp.Local().Format(time.DateTime), ev.User, ev.Action, ev.Status, ev.Zone, ev.RecordType, ev.ErrorMessage)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of entries")
	cmd.Flags().StringVar(&f.User, "user", "", "Only entries of this user")
	cmd.Flags().StringVar(&action, "action", "", "Only entries of this action")
	cmd.Flags().StringVar(&f.Zone, "zone", "", "Only entries of this zone")
	return cmd
}
