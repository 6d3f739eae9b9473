package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	TemplatesDir    string `mapstructure:"templates_dir" yaml:"templates_dir"`
	DefaultTemplate string `mapstructure:"default_template" yaml:"default_template"`
	RunsDir         string `mapstructure:"runs_dir" yaml:"runs_dir"`

	// Text generation used for insight polishing
	LLMProvider      string  `mapstructure:"llm_provider" yaml:"llm_provider"`
	LLMModel         string  `mapstructure:"llm_model" yaml:"llm_model"`
	LLMMaxTokens     int     `mapstructure:"llm_max_tokens" yaml:"llm_max_tokens"`
	LLMTemperature   float64 `mapstructure:"llm_temperature" yaml:"llm_temperature"`
	OllamaHost       string  `mapstructure:"ollama_host" yaml:"ollama_host"`
	OpenRouterAPIKey string  `mapstructure:"openrouter_api_key" yaml:"openrouter_api_key"`
	AWSRegion        string  `mapstructure:"aws_region" yaml:"aws_region"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Result cache; empty address disables it
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`

	// API server
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	APIToken   string `mapstructure:"api_token" yaml:"api_token"`

	// Insight thresholds
	CorrThreshold float64 `mapstructure:"corr_threshold" yaml:"corr_threshold"`
	AnomalyZ      float64 `mapstructure:"anomaly_z" yaml:"anomaly_z"`
	AnomalyMethod string  `mapstructure:"anomaly_method" yaml:"anomaly_method"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.insighto, the default home of config, templates and runs.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".insighto"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.insighto/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("INSIGHTO")
	v.AutomaticEnv()

	v.SetDefault("templates_dir", "")
	v.SetDefault("default_template", "sample_dashboard")
	v.SetDefault("runs_dir", "")
	v.SetDefault("llm_provider", "ollama")
	v.SetDefault("llm_model", "llama3")
	v.SetDefault("llm_max_tokens", 512)
	v.SetDefault("llm_temperature", 0.2)
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("aws_region", "us-east-1")
	// HTTP/retry defaults; polishing is single-shot unless overridden
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl_sec", 3600)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("api_token", "")
	v.SetDefault("corr_threshold", 0.35)
	v.SetDefault("anomaly_z", 3.0)
	v.SetDefault("anomaly_method", "zscore")
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.TemplatesDir == "" || c.RunsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		if c.TemplatesDir == "" {
			c.TemplatesDir = filepath.Join(dir, "templates")
		}
		if c.RunsDir == "" {
			c.RunsDir = filepath.Join(dir, "runs")
		}
	}
	return &c, nil
}
