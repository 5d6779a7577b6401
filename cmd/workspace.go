package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crawlspace/internal/model"
	"github.com/sells-group/crawlspace/internal/store"
)

var errNeedsConfirmation = errors.New("destructive command: pass --yes to confirm")

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
}

// -- workspace list --

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		output, _ := cmd.Flags().GetString("output")
		list, err := st.ListWorkspaces(ctx)
		if err != nil {
			return eris.Wrap(err, "workspace list")
		}
		return writeWorkspaces(cmd.OutOrStdout(), list, output)
	},
}

// -- workspace create --

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a workspace and its tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ws, err := st.CreateWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		if sel, _ := cmd.Flags().GetBool("select"); sel {
			if err := st.SelectWorkspace(ctx, ws.ID); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created workspace %s (%s)\n", ws.Name, ws.ID)
		return nil
	},
}

// -- workspace select --

var workspaceSelectCmd = &cobra.Command{
	Use:   "select <id|name>",
	Short: "Make a workspace the selected one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ws, err := findWorkspace(ctx, st, args[0])
		if err != nil {
			return err
		}
		if err := st.SelectWorkspace(ctx, ws.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "selected workspace %s\n", ws.Name)
		return nil
	},
}

// -- workspace delete --

var workspaceDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a workspace and drop its tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ws, err := findWorkspace(ctx, st, args[0])
		if err != nil {
			return err
		}
		if err := st.DeleteWorkspace(ctx, ws.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted workspace %s\n", ws.Name)
		return nil
	},
}

// -- workspace init --

var workspaceInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Drop every workspace and start over with an empty default",
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		if err := st.InitWorkspaces(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "workspaces reset; default selected")
		return nil
	},
}

// findWorkspace looks ref up as an id first and then as a name.
func findWorkspace(ctx context.Context, st store.Workspaces, ref string) (*model.Workspace, error) {
	ws, err := st.GetWorkspace(ctx, ref)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, store.ErrWorkspaceNotFound) {
		return nil, err
	}
	list, err := st.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Name == ref {
			return &list[i], nil
		}
	}
	return nil, eris.Wrapf(store.ErrWorkspaceNotFound, "workspace %s", ref)
}

// writeWorkspaces renders list as a table, json or yaml.
func writeWorkspaces(out io.Writer, list []model.Workspace, format string) error {
	switch format {
	case "", "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SELECTED\tNAME\tID\tKEYWORDS\tBLUR\tCREATED")
		for _, ws := range list {
			mark := ""
			if ws.Selected {
				mark = "*"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				mark, ws.Name, ws.ID, len(ws.Keywords), ws.BlurLevel, ws.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	return eris.Errorf("unknown output format %q (want table, json or yaml)", format)
}

func init() {
	workspaceListCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	workspaceCreateCmd.Flags().Bool("select", false, "select the workspace after creating it")
	workspaceInitCmd.Flags().Bool("yes", false, "confirm dropping every workspace")

	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceSelectCmd)
	workspaceCmd.AddCommand(workspaceDeleteCmd)
	workspaceCmd.AddCommand(workspaceInitCmd)
	rootCmd.AddCommand(workspaceCmd)
}
