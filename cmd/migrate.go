package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables without touching existing data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var namespaceCmd = &cobra.Command{
	Use:   "namespace",
	Short: "Manage the tables of a namespace",
}

var namespaceInitCmd = &cobra.Command{
	Use:   "init <crawl-data|cc-crawl-data|known-data>",
	Short: "Drop and recreate every table of a namespace",
	Long:  "Drops and recreates the tables of the namespace. For crawl-data these are the tables of the selected workspace. All their rows are lost.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errNeedsConfirmation
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return runNamespaceInit(ctx, st, cmd.OutOrStdout(), args[0])
	},
}

func runNamespaceInit(ctx context.Context, st store.Store, out io.Writer, mode string) error {
	ns, err := collection.ParseNamespace(mode)
	if err != nil {
		return err
	}
	sc, err := store.Resolve(ctx, st, ns)
	if err != nil {
		return err
	}
	if err := st.InitCollections(ctx, sc); err != nil {
		return err
	}
	fmt.Fprintf(out, "reinitialized %s (%s)\n", ns, sc.Collections.URLs)
	return nil
}

func init() {
	namespaceInitCmd.Flags().Bool("yes", false, "confirm dropping all rows")

	namespaceCmd.AddCommand(namespaceInitCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(namespaceCmd)
}
