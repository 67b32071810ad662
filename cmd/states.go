package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatesCmd() *cobra.Command {
	var (
		site   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "states",
		Short: "Lists the crawl-state ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			states, err := appInstance.Tracker().List(cmd.Context(), site)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(states); err != nil {
					return fmt.Errorf("write states: %w", err)
				}
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SITE\tSTATUS\tITEMS\tUPDATED\tSITEMAP\tERROR")
			for _, st := range states {
				items := "-"
				if st.Count != nil {
					items = strconv.Itoa(*st.Count)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					st.Site, st.Status, items, st.UpdatedAt.Format(time.RFC3339), st.URL, st.Error)
			}
			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write states: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "only rows for this site")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
