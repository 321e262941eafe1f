package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/autolysis-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set autolysis configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "default_provider: %s\n", cfg.DefaultProvider)
		fmt.Fprintf(w, "default_model: %s\n", cfg.DefaultModel)
		fmt.Fprintf(w, "base_url: %s\n", cfg.BaseURL)
		fmt.Fprintf(w, "token_env: %s\n", cfg.TokenEnv)
		if tok := mask(os.Getenv(cfg.TokenEnv)); tok != "" {
			fmt.Fprintf(w, "token: %s\n", tok)
		} else {
			fmt.Fprintln(w, "token: (not set)")
		}
		fmt.Fprintf(w, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(w, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(w, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(w, "request_timeout_sec: %d\n", cfg.RequestTimeoutSec)
		fmt.Fprintf(w, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(w, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(w, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(w, "python: %s\n", cfg.Python)
		fmt.Fprintf(w, "exec_timeout_sec: %d\n", cfg.ExecTimeoutSec)
		fmt.Fprintf(w, "exec_output_limit: %d\n", cfg.ExecOutputLimit)
		fmt.Fprintf(w, "max_output_tokens: %d\n", cfg.MaxOutputTokens)
		fmt.Fprintf(w, "sample_rows: %d\n", cfg.SampleRows)
		fmt.Fprintf(w, "outlier_threshold: %.2f\n", cfg.OutlierThreshold)
		fmt.Fprintf(w, "prompt_dir: %s\n", cfg.PromptDir)
		fmt.Fprintf(w, "store_dir: %s\n", cfg.StoreDir)
		if cfg.DefaultProvider == ai.ProviderOllama {
			fmt.Fprintf(w, "ollama_host: %s\n", cfg.OllamaHost)
			fmt.Fprintf(w, "ollama_timeout_sec: %d\n", cfg.OllamaTimeoutSec)
		}
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

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		p := normalizeProvider(val)
		if !slices.Contains(ai.Providers(), p) {
			return fmt.Errorf("invalid default_provider: %s (use openai, openrouter or ollama)", val)
		}
		c.DefaultProvider = p
	case "base_url":
		c.BaseURL = val
	case "token_env":
		c.TokenEnv = val
	case "python":
		c.Python = val
	case "prompt_dir":
		c.PromptDir = val
	case "store_dir":
		c.StoreDir = val
	case "ollama_host":
		c.OllamaHost = val
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "outlier_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for outlier_threshold: %v", val)
		}
		c.OutlierThreshold = f
	default:
		dst, ok := intKeys(c)[key]
		if !ok {
			return fmt.Errorf("unknown key: %s", key)
		}
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
	}
	return nil
}

func intKeys(c *cfgpkg.Global) map[string]*int {
	return map[string]*int{
		"max_tokens":          &c.MaxTokens,
		"http_timeout_sec":    &c.HTTPTimeoutSec,
		"request_timeout_sec": &c.RequestTimeoutSec,
		"retry_max_attempts":  &c.RetryMaxAttempts,
		"retry_base_delay_ms": &c.RetryBaseDelayMs,
		"retry_max_delay_ms":  &c.RetryMaxDelayMs,
		"exec_timeout_sec":    &c.ExecTimeoutSec,
		"exec_output_limit":   &c.ExecOutputLimit,
		"max_output_tokens":   &c.MaxOutputTokens,
		"sample_rows":         &c.SampleRows,
		"ollama_timeout_sec":  &c.OllamaTimeoutSec,
	}
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
