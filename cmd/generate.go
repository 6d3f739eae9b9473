package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	genTemplate   string
	genFormat     string
	genOutputPath string
	genPolish     bool
	genProvider   string
	genModel      string
	genOllamaHost string
	genTarget     string
	genDate       string
	genCategory   string
	genSave       bool
	genQuiet      bool
	genTimeoutSec int
	genSource     sourceFlags
)

var generateCmd = &cobra.Command{
	Use:   "generate <dataset>",
	Short: "Build a dashboard (KPIs, charts, insights) from a dataset and a template",
	Example: `  insighto generate sales.csv
  insighto generate sales.xlsx --sheet Orders -t ./my_dashboard.yaml --format md -o report.md
  insighto generate postgres://user@db/shop --table orders --target amount --save
  insighto generate sales.csv --polish --provider ollama --model llama3 --format html -o report.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		ctx := cmd.Context()
		if genTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(genTimeoutSec)*time.Second)
			defer cancel()
		}

		tpl, err := resolveTemplate(genTemplate)
		if err != nil {
			return err
		}
		ds, err := loadDataset(ctx, src, genSource)
		if err != nil {
			return err
		}

		opt := pipeline.Options{
			Params:  insight.Params{Target: genTarget, Date: genDate, Category: genCategory},
			Insight: insightOptions(cfg),
		}
		if genPolish {
			p, err := buildPolisher(ctx, cfg, runtimeOptions{ProviderFlag: genProvider, ModelFlag: genModel, OllamaHost: genOllamaHost})
			if err != nil {
				return fmt.Errorf("init polisher: %w", err)
			}
			opt.Insight.Polisher = p
		}

		runner, closeCache := newRunner(ctx, cfg, cmd.ErrOrStderr())
		defer closeCache()
		st, err := runner.Run(ctx, ds, tpl, opt)
		if err != nil {
			return err
		}

		out, err := render(st, genFormat)
		if err != nil {
			return err
		}
		if err := writeOutput(out, outputOptions{Path: genOutputPath, Quiet: genQuiet, Writer: cmd.OutOrStdout()}); err != nil {
			return err
		}
		if genSave {
			store, err := runsStore()
			if err != nil {
				return err
			}
			run, err := store.Save(dataset.Redact(src), st)
			if err != nil {
				return err
			}
			if !genQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved run %s\n", run.ID)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	f := generateCmd.Flags()
	f.StringVarP(&genTemplate, "template", "t", "", "template name or file (default from config)")
	f.StringVarP(&genFormat, "format", "f", "json", "output format: json|md|html")
	f.StringVarP(&genOutputPath, "output", "o", "", "write output to a file instead of stdout")
	f.BoolVar(&genPolish, "polish", false, "rewrite insights through a text generation service")
	f.StringVar(&genProvider, "provider", "", "text generation provider: ollama|openrouter|bedrock (default from config)")
	f.StringVar(&genModel, "model", "", "model used for polishing (default from config)")
	f.StringVar(&genOllamaHost, "ollama-host", "", "Ollama base URL (default from config)")
	f.StringVar(&genTarget, "target", "", "numeric target column for insights (default picked from the mapping)")
	f.StringVar(&genDate, "date", "", "date column for insights")
	f.StringVar(&genCategory, "category", "", "category column for insights")
	f.BoolVar(&genSave, "save", false, "store the result in run history")
	f.BoolVarP(&genQuiet, "quiet", "q", false, "suppress status messages")
	f.IntVar(&genTimeoutSec, "timeout-sec", 0, "overall timeout in seconds (0 = none)")
	genSource.register(f)
}
