package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploads, plots and reports older than the retention period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dirs, err := a.roots()
			if err != nil {
				return err
			}
			removed := a.sweeper(dirs).RunNow()
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s) older than %s\n", removed, a.cfg.Storage.Retention)
			return nil
		},
	}
}
