package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/KaramelBytes/insighto-cli/internal/report"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved dashboard runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runsStore()
		if err != nil {
			return err
		}
		list, err := store.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tTEMPLATE\tROWS\tSOURCE")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Template, s.Rows, s.Source)
		}
		return tw.Flush()
	},
}

var runsShowFormat string

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved run as json, md or html",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runsStore()
		if err != nil {
			return err
		}
		run, err := store.Load(args[0])
		if err != nil {
			return err
		}
		var out []byte
		if runsShowFormat == "" || runsShowFormat == report.FormatJSON {
			out, err = utils.PrettyJSON(run)
		} else {
			if run.State == nil {
				return fmt.Errorf("run %s has no state", run.ID)
			}
			out, err = render(run.State, runsShowFormat)
		}
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runsStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsShowCmd.Flags().StringVarP(&runsShowFormat, "format", "f", "json", "output format: json|md|html")
}
