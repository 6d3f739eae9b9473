package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	srvAddr       string
	srvOrigins    []string
	srvPolish     bool
	srvProvider   string
	srvModel      string
	srvOllamaHost string
	srvMaxUpload  int64
	srvNoWatch    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API over HTTP",
	Example: `  insighto serve --addr :8080
  INSIGHTO_API_TOKEN=secret insighto serve --polish --provider ollama`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg, err := templateRegistry()
		if err != nil {
			return err
		}
		if !srvNoWatch {
			if err := reg.Watch(ctx, 250*time.Millisecond); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: template hot reload disabled: %v\n", err)
			}
		}

		var polisher insight.Polisher
		if srvPolish {
			p, err := buildPolisher(ctx, cfg, runtimeOptions{ProviderFlag: srvProvider, ModelFlag: srvModel, OllamaHost: srvOllamaHost})
			if err != nil {
				return fmt.Errorf("init polisher: %w", err)
			}
			polisher = p
		}

		store, err := runsStore()
		if err != nil {
			return err
		}
		runner, closeCache := newRunner(ctx, cfg, cmd.ErrOrStderr())
		defer closeCache()

		addr := srvAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServerAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		token := ""
		if cfg != nil {
			token = cfg.APIToken
		}
		if token == "" {
			logger.Warn("api token not set; /api routes are open")
		}

		s := server.New(server.Config{
			Templates:      reg,
			Runs:           store,
			Runner:         runner,
			Insight:        insightOptions(cfg),
			Polisher:       polisher,
			APIToken:       token,
			AllowedOrigins: srvOrigins,
			MaxUpload:      srvMaxUpload,
		})
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Listening on %s\n", addr)
		return s.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVar(&srvAddr, "addr", "", "listen address (default from config)")
	f.StringSliceVar(&srvOrigins, "cors-origin", nil, "allowed CORS origins (default *)")
	f.BoolVar(&srvPolish, "polish", false, "enable insight polishing for requests that ask for it")
	f.StringVar(&srvProvider, "provider", "", "text generation provider: ollama|openrouter|bedrock")
	f.StringVar(&srvModel, "model", "", "model used for polishing")
	f.StringVar(&srvOllamaHost, "ollama-host", "", "Ollama base URL")
	f.Int64Var(&srvMaxUpload, "max-upload", server.DefaultMaxUpload, "maximum upload size in bytes")
	f.BoolVar(&srvNoWatch, "no-watch", false, "do not reload templates when files change")
}
