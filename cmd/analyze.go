package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	"github.com/KaramelBytes/autolysis-cli/internal/cache"
	cfgpkg "github.com/KaramelBytes/autolysis-cli/internal/config"
	"github.com/KaramelBytes/autolysis-cli/internal/dataset"
	"github.com/KaramelBytes/autolysis-cli/internal/pipeline"
	"github.com/KaramelBytes/autolysis-cli/internal/prompt"
	"github.com/KaramelBytes/autolysis-cli/internal/sandbox"
	"github.com/KaramelBytes/autolysis-cli/internal/store"
)

var (
	anaModel       string
	anaProvider    string
	anaOllamaHost  string
	anaNoExec      bool
	anaCache       bool
	anaPython      string
	anaExecTimeout int
	anaOutputDir   string
	anaPrintPrompt bool
	anaSampleRows  int
	anaNoHistory   bool
)

func addAnalysisFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&anaModel, "model", "", "model name (default from config: gpt-4o-mini)")
	f.StringVar(&anaProvider, "provider", "", "provider: openai|openrouter|ollama (default from config)")
	f.StringVar(&anaOllamaHost, "ollama-host", "", "Ollama host when --provider ollama")
	f.BoolVar(&anaNoExec, "no-exec", false, "do not run the generated code; report the model's proposal instead")
	f.BoolVar(&anaCache, "cache", false, "reuse cached model replies for identical requests")
	f.StringVar(&anaPython, "python", "", "Python interpreter used to run snippets (default from config: python3)")
	f.IntVar(&anaExecTimeout, "exec-timeout", 0, "timeout in seconds for running all snippets (overrides config)")
	f.StringVar(&anaOutputDir, "output-dir", "", "directory for README.md and charts (default: current directory)")
	f.BoolVar(&anaPrintPrompt, "print-prompt", false, "print each prompt before sending it")
	f.IntVar(&anaSampleRows, "sample-rows", 0, "example rows shown to the model (overrides config)")
	f.BoolVar(&anaNoHistory, "no-history", false, "do not record this run in the local history")
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	// Past argument validation, errors are not usage problems.
	cmd.SilenceUsage = true
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	csvPath := args[0]

	runtime, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: anaProvider, OllamaHost: anaOllamaHost})
	if err != nil {
		return err
	}
	model := selectModel(cfg, anaModel)
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name is empty")
	}
	if _, ok := ai.LookupModel(model); !ok {
		console.Debug("model %s is not in the catalog; cost and context checks are skipped", model)
	}

	workDir, err := resolveOutputDir(anaOutputDir)
	if err != nil {
		return err
	}
	prompts, err := prompt.Load(cfg.PromptDir)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	a, s := prompts.Sources()
	console.Debug("prompts: analysis=%s summary=%s", a, s)

	var db *store.DB
	if anaCache || !anaNoHistory {
		db, err = store.Open(cfg.StoreDir)
		if err != nil {
			console.Warn("local store unavailable, continuing without cache and history: %v", err)
		} else {
			defer db.Close()
		}
	}
	var cached *cache.Runtime
	if anaCache {
		cached = cache.New(runtime, db, console)
		runtime = cached
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &pipeline.Pipeline{
		Runtime:         runtime,
		Provider:        provider,
		Model:           model,
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		RequestTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		Prompts:         prompts,
		Dataset:         datasetOptions(cfg),
		WorkDir:         workDir,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Log:             console,
	}
	if !anaNoHistory {
		p.History = db
	}
	if anaPrintPrompt {
		p.OnPrompt = func(stage string, msgs []ai.Message) { printPrompt(cmd.OutOrStdout(), stage, msgs) }
	}
	if !anaNoExec {
		p.Executor = newExecutor(cfg, workDir)
		console.Warn("model-written Python will run in %s with your permissions (use --no-exec to skip)", workDir)
	}

	out, err := p.Run(ctx, csvPath)
	if err != nil {
		return err
	}
	if cached != nil {
		hits, misses := cached.Stats()
		console.Debug("reply cache: %d hit(s), %d miss(es)", hits, misses)
	}
	if ctx.Err() != nil {
		console.Warn("interrupted; the report reflects the partial run")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Analysis complete: %s (run %s)\n", out.ReportPath, shortID(out.RunID))
	return nil
}

func datasetOptions(c *cfgpkg.Global) dataset.Options {
	opt := dataset.DefaultOptions()
	if c != nil && c.SampleRows > 0 {
		opt.SampleRows = c.SampleRows
	}
	if anaSampleRows > 0 {
		opt.SampleRows = anaSampleRows
	}
	if c != nil && c.OutlierThreshold > 0 {
		opt.OutlierThreshold = c.OutlierThreshold
	}
	return opt
}

func newExecutor(c *cfgpkg.Global, workDir string) *sandbox.Python {
	py := &sandbox.Python{
		Interpreter: c.Python,
		WorkDir:     workDir,
		Timeout:     time.Duration(c.ExecTimeoutSec) * time.Second,
		OutputLimit: c.ExecOutputLimit,
		Log:         console,
	}
	if anaPython != "" {
		py.Interpreter = anaPython
	}
	if anaExecTimeout > 0 {
		py.Timeout = time.Duration(anaExecTimeout) * time.Second
	}
	return py
}

// resolveOutputDir returns an absolute, existing directory.
func resolveOutputDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve --output-dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create --output-dir: %w", err)
	}
	return abs, nil
}

func printPrompt(w io.Writer, stage string, msgs []ai.Message) {
	fmt.Fprintf(w, "\n--print-prompt: sending the following %s prompt --\n", stage)
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s]\n%s\n", m.Role, m.Content)
	}
	fmt.Fprintln(w, "-- end of prompt --")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
