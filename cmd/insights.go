package cmd

import (
	"fmt"

	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	insTarget     string
	insDate       string
	insCategory   string
	insMethod     string
	insPolish     bool
	insProvider   string
	insModel      string
	insOllamaHost string
	insJSON       bool
	insSource     sourceFlags
)

var insightsCmd = &cobra.Command{
	Use:   "insights <dataset>",
	Short: "Print plain-language insights for a dataset without a template",
	Example: `  insighto insights sales.csv --target Revenue --date Date --category Region
  insighto insights sales.csv --target Revenue --anomaly-method robust --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ds, err := loadDataset(ctx, args[0], insSource)
		if err != nil {
			return err
		}
		opt := insightOptions(cfg)
		if insMethod != "" {
			switch insMethod {
			case insight.MethodZScore, insight.MethodRobust:
				opt.AnomalyMethod = insMethod
			default:
				return fmt.Errorf("unsupported --anomaly-method: %s (use %s|%s)", insMethod, insight.MethodZScore, insight.MethodRobust)
			}
		}
		if insPolish {
			p, err := buildPolisher(ctx, cfg, runtimeOptions{ProviderFlag: insProvider, ModelFlag: insModel, OllamaHost: insOllamaHost})
			if err != nil {
				return fmt.Errorf("init polisher: %w", err)
			}
			opt.Polisher = p
		}
		rep := insight.Generate(ctx, ds, insight.Params{Target: insTarget, Date: insDate, Category: insCategory}, opt)

		out := cmd.OutOrStdout()
		if insJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		}
		if rep.Polished {
			fmt.Fprintln(out, rep.Insights[0])
			return nil
		}
		for _, s := range rep.Insights {
			fmt.Fprintf(out, "- %s\n", s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	f := insightsCmd.Flags()
	f.StringVar(&insTarget, "target", "", "numeric target column")
	f.StringVar(&insDate, "date", "", "date column for the monthly trend")
	f.StringVar(&insCategory, "category", "", "category column for concentration")
	f.StringVar(&insMethod, "anomaly-method", "", "anomaly detection: zscore|robust (default from config)")
	f.BoolVar(&insPolish, "polish", false, "rewrite insights through a text generation service")
	f.StringVar(&insProvider, "provider", "", "text generation provider: ollama|openrouter|bedrock")
	f.StringVar(&insModel, "model", "", "model used for polishing")
	f.StringVar(&insOllamaHost, "ollama-host", "", "Ollama base URL")
	f.BoolVar(&insJSON, "json", false, "print the full insight report as JSON")
	insSource.register(f)
}
