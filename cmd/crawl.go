package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/crawler"
)

type crawlOptions struct {
	site string
	out  string
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured retailer sitemaps",
		Long: `Walks each configured target's sitemap index, scrapes every product page
of the sub-sitemaps not yet completed, and stores the records. Interrupting
a crawl is safe: the next run resumes from the crawl-state ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.site, "site", "", "crawl only this configured site")
	cmd.Flags().StringVar(&opts.out, "out", "", `also write records as JSON lines to this file ("-" for stdout)`)
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	targets, err := appInstance.Targets(opts.site)
	if err != nil {
		return err
	}

	var extra []crawler.Sink
	if opts.out != "" {
		w, closeOut, err := openOutput(cmd, opts.out)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeOut(); cerr != nil {
				logger.Warn("close output failed", zap.Error(cerr))
			}
		}()
		extra = append(extra, crawler.NewJSONLinesSink(w))
	}

	summaries := make(map[string]crawler.Summary, len(targets))
	var errs []error
	for _, target := range targets {
		summary, err := appInstance.Orchestrator().Run(cmd.Context(), target, appInstance.Sink(target.Site, extra...))
		summaries[target.Site] = summary
		if errors.Is(err, context.Canceled) {
			logger.Warn("crawl interrupted; rerun to resume", zap.String("site", target.Site))
			return nil
		}
		if err != nil {
			logger.Error("crawl failed", zap.String("site", target.Site), zap.Error(err))
			errs = append(errs, fmt.Errorf("crawl %s: %w", target.Site, err))
		}
	}

	if opts.out != "-" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	logger.Info("crawl command finished", zap.Int("targets", len(targets)), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}
