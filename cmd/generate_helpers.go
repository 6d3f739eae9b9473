package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/insighto-cli/internal/config"
	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/KaramelBytes/insighto-cli/internal/report"
	"github.com/KaramelBytes/insighto-cli/internal/runs"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
	"github.com/spf13/pflag"
)

// sourceFlags are the dataset options shared by every command that reads a dataset.
type sourceFlags struct {
	table     string
	sheet     string
	sheetIdx  int
	maxRows   int
	delimiter string
}

func (s *sourceFlags) register(f *pflag.FlagSet) {
	f.StringVar(&s.table, "table", "", "table name for database sources (postgres://, sqlite://, snowflake://)")
	f.StringVar(&s.sheet, "sheet", "", "XLSX: sheet name")
	f.IntVar(&s.sheetIdx, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet not provided)")
	f.IntVar(&s.maxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
	f.StringVar(&s.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default by extension)")
}

func (s *sourceFlags) options(c *cfgpkg.Global) (dataset.Options, error) {
	opt := dataset.Options{
		MaxRows:    s.maxRows,
		Sheet:      s.sheet,
		SheetIndex: s.sheetIdx,
		Table:      s.table,
	}
	if c != nil {
		opt.Region = c.AWSRegion
	}
	switch s.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "\t", "tab":
		opt.Delimiter = '\t'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", s.delimiter)
	}
	return opt, nil
}

func loadDataset(ctx context.Context, src string, flags sourceFlags) (*dataset.Dataset, error) {
	opt, err := flags.options(cfg)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Load(ctx, src, opt)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded", "source", dataset.Redact(src), "rows", ds.Rows(), "columns", ds.NumColumns())
	return ds, nil
}

func templateRegistry() (*template.Registry, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.TemplatesDir
	}
	return template.NewRegistry(dir)
}

// resolveTemplate accepts a template file path or a registry name; empty means the configured default.
func resolveTemplate(ref string) (*template.Template, error) {
	if ref != "" && template.IsTemplateFile(ref) {
		if _, err := os.Stat(ref); err == nil {
			return template.LoadFile(ref)
		}
	}
	if ref == "" && cfg != nil {
		ref = cfg.DefaultTemplate
	}
	if ref == "" {
		ref = template.DefaultName
	}
	reg, err := templateRegistry()
	if err != nil {
		return nil, err
	}
	return reg.Get(ref)
}

func runsStore() (*runs.Store, error) {
	if cfg == nil || cfg.RunsDir == "" {
		return nil, errors.New("no runs directory configured (set runs_dir)")
	}
	return runs.NewStore(cfg.RunsDir), nil
}

// insightOptions applies configured thresholds over the defaults.
func insightOptions(c *cfgpkg.Global) insight.Options {
	opt := insight.DefaultOptions()
	if c == nil {
		return opt
	}
	if c.CorrThreshold > 0 {
		opt.CorrThreshold = c.CorrThreshold
	}
	if c.AnomalyZ > 0 {
		opt.AnomalyZ = c.AnomalyZ
	}
	if c.AnomalyMethod != "" {
		opt.AnomalyMethod = c.AnomalyMethod
	}
	return opt
}

type runtimeOptions struct {
	ProviderFlag string
	ModelFlag    string
	OllamaHost   string
}

func buildRuntime(ctx context.Context, c *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 30 * time.Second
	retryMax := 1
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if c != nil {
		if c.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
		}
		if c.RetryMaxAttempts > 0 {
			retryMax = c.RetryMaxAttempts
		}
		if c.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(c.RetryBaseDelayMs) * time.Millisecond
		}
		if c.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && c != nil && c.LLMProvider != "" {
		providerName = strings.ToLower(c.LLMProvider)
	}
	if providerName == "" || providerName == "local" {
		providerName = ai.ProviderOllama
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" && c != nil {
		apiKey = c.OpenRouterAPIKey
	}
	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		APIKey:      apiKey,
	}
	if c != nil {
		rc.Region = c.AWSRegion
	}
	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && c != nil {
			host = c.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
	}

	rt, err := ai.GetRuntime(ctx, providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return rt, providerName, nil
}

func selectModel(c *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c != nil && c.LLMModel != "" {
		return c.LLMModel
	}
	if provider == ai.ProviderBedrock {
		return ai.DefaultBedrockModel
	}
	return "llama3"
}

func buildPolisher(ctx context.Context, c *cfgpkg.Global, opts runtimeOptions) (*ai.Polisher, error) {
	rt, provider, err := buildRuntime(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	p := &ai.Polisher{Runtime: rt, Model: selectModel(c, provider, opts.ModelFlag), MaxTokens: 512, Temperature: 0.2}
	if c != nil {
		if c.LLMMaxTokens > 0 {
			p.MaxTokens = c.LLMMaxTokens
		}
		p.Temperature = c.LLMTemperature
	}
	logger.Debug("polisher ready", "provider", provider, "model", p.Model)
	return p, nil
}

// newRunner wires the Redis result cache when configured. An unreachable cache is a warning, not an error.
func newRunner(ctx context.Context, c *cfgpkg.Global, w io.Writer) (*pipeline.Runner, func()) {
	r := &pipeline.Runner{}
	if c == nil || c.RedisAddr == "" {
		return r, func() {}
	}
	cache, err := pipeline.NewRedisCache(ctx, c.RedisAddr)
	if err != nil {
		fmt.Fprintf(w, "⚠ Warning: result cache disabled: %v\n", err)
		return r, func() {}
	}
	r.Cache = cache
	r.TTL = time.Duration(c.CacheTTLSec) * time.Second
	return r, func() { _ = cache.Close() }
}

func render(st *pipeline.State, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", report.FormatJSON:
		return utils.PrettyJSON(st)
	case report.FormatMarkdown, "markdown":
		md, err := report.Markdown(st)
		if err != nil {
			return nil, err
		}
		return []byte(md), nil
	case report.FormatHTML:
		return report.HTML(st)
	default:
		return nil, fmt.Errorf("unsupported --format: %s (use json|md|html)", format)
	}
}

type outputOptions struct {
	Path   string
	Quiet  bool
	Writer io.Writer
}

// writeOutput prints content, or writes it to Path when set.
func writeOutput(content []byte, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.Path == "" {
		_, err := w.Write(content)
		return err
	}
	if err := utils.SafeWriteFile(opts.Path, content, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "💾 Saved output to %s\n", opts.Path)
	}
	return nil
}
