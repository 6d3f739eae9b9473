package cmd

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/schema"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	inspSample int
	inspSource sourceFlags
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <dataset>",
	Short: "Summarize a dataset and show the inferred role of each column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context(), args[0], inspSource)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, dataset.Summarize(ds, inspSample))
		fmt.Fprintln(out, "\n[ROLES]")
		for _, p := range schema.InferRoles(ds).Pairs() {
			fmt.Fprintf(out, "- %s: %s\n", p.Column, p.Role)
		}
		if lines := insight.BasicKPI(ds); len(lines) > 0 {
			fmt.Fprintln(out, "\n[NUMERIC KPIS]")
			for _, l := range lines {
				fmt.Fprintf(out, "- %s\n", l)
			}
		}
		return nil
	},
}

var (
	mapTemplate string
	mapJSON     bool
	mapSource   sourceFlags
)

var mapCmd = &cobra.Command{
	Use:   "map <dataset>",
	Short: "Show how template fields resolve to dataset columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := resolveTemplate(mapTemplate)
		if err != nil {
			return err
		}
		ds, err := loadDataset(cmd.Context(), args[0], mapSource)
		if err != nil {
			return err
		}
		m := schema.MapTemplateFields(tpl, schema.InferRoles(ds))
		out := cmd.OutOrStdout()
		if mapJSON {
			b, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		}
		if len(m) == 0 {
			fmt.Fprintln(out, "(no fields mapped)")
			return nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "- %s -> %s\n", k, m[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntVar(&inspSample, "sample", 5, "example values shown per column")
	inspSource.register(inspectCmd.Flags())

	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().StringVarP(&mapTemplate, "template", "t", "", "template name or file (default from config)")
	mapCmd.Flags().BoolVar(&mapJSON, "json", false, "print the mapping as JSON")
	mapSource.register(mapCmd.Flags())
}
