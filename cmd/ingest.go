package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/ingest"
	"github.com/sells-group/crawlspace/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Bulk-load URLs",
}

var ingestKnownCmd = &cobra.Command{
	Use:   "known <file>",
	Short: "Load known URLs, one per line, into the known-data namespace",
	Long:  "Reads one URL per line. Blank lines and lines starting with '#' are ignored; invalid URLs are reported and skipped. Use '-' to read stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return eris.Wrap(err, "ingest known: open input")
			}
			defer f.Close() //nolint:errcheck
			in = f
		}

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sc, err := store.Resolve(ctx, st, collection.KnownData)
		if err != nil {
			return err
		}
		res, err := ingest.KnownURLs(ctx, st, sc, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "lines=%d inserted=%d duplicates=%d invalid=%d\n",
			res.Lines, res.Inserted, res.Duplicates, res.Invalid)
		return nil
	},
}

func init() {
	ingestCmd.AddCommand(ingestKnownCmd)
	rootCmd.AddCommand(ingestCmd)
}
