package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/model"
	"github.com/sells-group/crawlspace/internal/store"
)

var seedsCmd = &cobra.Command{
	Use:   "seeds",
	Short: "Schedule seed crawls and track their jobs",
}

// withCrawlData opens the store and the crawler and resolves the selected
// workspace's context.
func withCrawlData(ctx context.Context, fn func(st store.Store, sc store.StorageContext) error) error {
	st, err := openStore(ctx, "jobs")
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	sc, err := store.Resolve(ctx, st, collection.CrawlData)
	if err != nil {
		return err
	}
	return fn(st, sc)
}

var seedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the seeds of the selected workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCrawlData(cmd.Context(), func(st store.Store, sc store.StorageContext) error {
			seeds, err := st.ListSeeds(cmd.Context(), sc)
			if err != nil {
				return err
			}
			return writeSeeds(cmd.OutOrStdout(), seeds)
		})
	},
}

var seedsAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Record a seed URL and schedule its crawl",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCrawlData(cmd.Context(), func(st store.Store, sc store.StorageContext) error {
			svc, err := initCrawler(st, cfg)
			if err != nil {
				return err
			}
			job, err := svc.ScheduleSeed(cmd.Context(), sc, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled job %s (%s/%s)\n", job.ID, job.Project, job.Spider)
			return nil
		})
	},
}

var seedsKeywordsCmd = &cobra.Command{
	Use:   "keywords <term>...",
	Short: "Schedule one search-engine job for the given terms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCrawlData(cmd.Context(), func(st store.Store, sc store.StorageContext) error {
			svc, err := initCrawler(st, cfg)
			if err != nil {
				return err
			}
			job, err := svc.ScheduleKeywords(cmd.Context(), sc, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled job %s (%s/%s)\n", job.ID, job.Project, job.Spider)
			return nil
		})
	},
}

var seedsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Poll the scheduler and store the current state of every seed job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCrawlData(cmd.Context(), func(st store.Store, sc store.StorageContext) error {
			svc, err := initCrawler(st, cfg)
			if err != nil {
				return err
			}
			res, err := svc.RefreshStates(cmd.Context(), sc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d updated=%d failed=%d\n", res.Checked, res.Updated, res.Failed)
			return nil
		})
	},
}

func writeSeeds(out io.Writer, seeds []model.SeedRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "URL\tSTATE\tJOB\tSPIDER\tUPDATED")
	for _, s := range seeds {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.URL, s.State, s.JobID, s.Spider, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func init() {
	seedsCmd.AddCommand(seedsListCmd)
	seedsCmd.AddCommand(seedsAddCmd)
	seedsCmd.AddCommand(seedsKeywordsCmd)
	seedsCmd.AddCommand(seedsRefreshCmd)
	rootCmd.AddCommand(seedsCmd)
}
