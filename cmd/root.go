package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/autolysis-cli/internal/config"
	"github.com/KaramelBytes/autolysis-cli/internal/logx"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// console is the CLI logger; --debug turns on its debug lines.
	console = logx.NewConsole(false)
)

var rootCmd = &cobra.Command{
	Use:   "autolysis <csv_file>",
	Short: "Automated exploratory analysis of a CSV file with an LLM",
	Long: `autolysis profiles a CSV file, asks an LLM for Python analysis code, runs that
code locally, has the LLM narrate the results and writes README.md next to any
charts the code produced.

The generated code runs with your user's permissions. Use --no-exec to only see
what the model proposes.`,
	Example: `  AIPROXY_TOKEN=... autolysis goodreads.csv
  autolysis --output-dir out/ --model gpt-4o media.csv
  autolysis --provider ollama --model llama3.1:8b happiness.csv
  autolysis --no-exec --print-prompt data.csv`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE:          runAnalysis,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.autolysis/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts per model request on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
	addAnalysisFlags(rootCmd)
}

func loadConfig() {
	console.SetDebug(debug)
	loadSavedCatalog()
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		console.Warn("failed to load config: %v", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	console.Debug("config loaded (provider=%s model=%s base_url=%s)", cfg.DefaultProvider, cfg.DefaultModel, cfg.BaseURL)
}
