package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

func newScrapeCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrapes a single product page and prints the record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := appInstance.Orchestrator().ScrapeURL(cmd.Context(), args[0], appInstance.Headers())
			if err != nil {
				return fmt.Errorf("scrape %s: %w", args[0], err)
			}
			if save {
				if err := store.UpsertByURL(cmd.Context(), appInstance.Comics(), rec); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "upsert the record into the record repository")
	return cmd
}
