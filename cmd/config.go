package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insighto-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/insighto-cli/internal/config"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Insighto configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "templates_dir: %s\n", cfg.TemplatesDir)
		fmt.Fprintf(out, "default_template: %s\n", cfg.DefaultTemplate)
		fmt.Fprintf(out, "runs_dir: %s\n", cfg.RunsDir)
		fmt.Fprintf(out, "llm_provider: %s\n", cfg.LLMProvider)
		fmt.Fprintf(out, "llm_model: %s\n", cfg.LLMModel)
		fmt.Fprintf(out, "llm_max_tokens: %d\n", cfg.LLMMaxTokens)
		fmt.Fprintf(out, "llm_temperature: %.3f\n", cfg.LLMTemperature)
		fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		fmt.Fprintf(out, "openrouter_api_key: %s\n", mask(cfg.OpenRouterAPIKey))
		fmt.Fprintf(out, "aws_region: %s\n", cfg.AWSRegion)
		if cfg.RedisAddr != "" {
			fmt.Fprintf(out, "redis_addr: %s\n", cfg.RedisAddr)
			fmt.Fprintf(out, "cache_ttl_sec: %d\n", cfg.CacheTTLSec)
		}
		fmt.Fprintf(out, "server_addr: %s\n", cfg.ServerAddr)
		fmt.Fprintf(out, "api_token: %s\n", mask(cfg.APIToken))
		fmt.Fprintf(out, "corr_threshold: %.3f\n", cfg.CorrThreshold)
		fmt.Fprintf(out, "anomaly_z: %.3f\n", cfg.AnomalyZ)
		fmt.Fprintf(out, "anomaly_method: %s\n", cfg.AnomalyMethod)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "templates_dir":
		c.TemplatesDir = val
	case "default_template":
		c.DefaultTemplate = val
	case "runs_dir":
		c.RunsDir = val
	case "llm_provider":
		p := strings.ToLower(strings.TrimSpace(val))
		if p == "local" {
			p = ai.ProviderOllama
		}
		switch p {
		case ai.ProviderOllama, ai.ProviderOpenRouter, ai.ProviderBedrock:
			c.LLMProvider = p
		default:
			return fmt.Errorf("invalid llm_provider: %s (use %s)", val, strings.Join(ai.Providers(), "|"))
		}
	case "llm_model":
		c.LLMModel = val
	case "llm_max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for llm_max_tokens: %v", val)
		}
		c.LLMMaxTokens = i
	case "llm_temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for llm_temperature: %w", err)
		}
		c.LLMTemperature = f
	case "ollama_host":
		c.OllamaHost = val
	case "openrouter_api_key":
		c.OpenRouterAPIKey = val
	case "aws_region":
		c.AWSRegion = val
	case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms", "cache_ttl_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		case "retry_base_delay_ms":
			c.RetryBaseDelayMs = i
		case "retry_max_delay_ms":
			c.RetryMaxDelayMs = i
		case "cache_ttl_sec":
			c.CacheTTLSec = i
		}
	case "redis_addr":
		c.RedisAddr = val
	case "server_addr":
		c.ServerAddr = val
	case "api_token":
		c.APIToken = val
	case "corr_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid corr_threshold: %v (use 0..1)", val)
		}
		c.CorrThreshold = f
	case "anomaly_z":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid anomaly_z: %v", val)
		}
		c.AnomalyZ = f
	case "anomaly_method":
		switch val {
		case insight.MethodZScore, insight.MethodRobust:
			c.AnomalyMethod = val
		default:
			return fmt.Errorf("invalid anomaly_method: %s (use %s|%s)", val, insight.MethodZScore, insight.MethodRobust)
		}
	case "log_level":
		c.LogLevel = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
