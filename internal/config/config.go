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
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	TokenEnv        string  `mapstructure:"token_env" yaml:"token_env"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec    int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Snippet execution
	Python          string `mapstructure:"python" yaml:"python"`
	ExecTimeoutSec  int    `mapstructure:"exec_timeout_sec" yaml:"exec_timeout_sec"`
	ExecOutputLimit int    `mapstructure:"exec_output_limit" yaml:"exec_output_limit"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`

	// Dataset digest
	SampleRows       int     `mapstructure:"sample_rows" yaml:"sample_rows"`
	OutlierThreshold float64 `mapstructure:"outlier_threshold" yaml:"outlier_threshold"`

	PromptDir string `mapstructure:"prompt_dir" yaml:"prompt_dir"`
	StoreDir  string `mapstructure:"store_dir" yaml:"store_dir"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`
}

// Dir returns ~/.autolysis.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".autolysis"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.autolysis/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
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
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOLYSIS")
	v.AutomaticEnv()

	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("default_provider", "openai")
	v.SetDefault("base_url", "http://aiproxy.sanand.workers.dev/openai/v1")
	v.SetDefault("token_env", "AIPROXY_TOKEN")
	v.SetDefault("max_tokens", 0)
	v.SetDefault("temperature", 0.0)
	// HTTP/retry defaults: one retry with backoff
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("request_timeout_sec", 300)
	v.SetDefault("retry_max_attempts", 2)
	v.SetDefault("retry_base_delay_ms", 1000)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("python", "python3")
	v.SetDefault("exec_timeout_sec", 300)
	v.SetDefault("exec_output_limit", 64<<10)
	v.SetDefault("max_output_tokens", 12000)
	v.SetDefault("sample_rows", 3)
	v.SetDefault("outlier_threshold", 3.5)
	v.SetDefault("prompt_dir", "")
	v.SetDefault("store_dir", "")
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
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
	if c.StoreDir == "" {
		c.StoreDir = filepath.Join(dir, "store")
	}
	if c.PromptDir == "" {
		c.PromptDir = filepath.Join(dir, "prompts")
	}
	return &c, nil
}
