// Package pipeline wires the analysis stages together: load the dataset, ask
// the model for analysis code, run it, ask the model to narrate the results,
// and write the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	"github.com/KaramelBytes/autolysis-cli/internal/dataset"
	"github.com/KaramelBytes/autolysis-cli/internal/extract"
	"github.com/KaramelBytes/autolysis-cli/internal/logx"
	"github.com/KaramelBytes/autolysis-cli/internal/prompt"
	"github.com/KaramelBytes/autolysis-cli/internal/report"
	"github.com/KaramelBytes/autolysis-cli/internal/sandbox"
	"github.com/KaramelBytes/autolysis-cli/internal/store"
	"github.com/KaramelBytes/autolysis-cli/internal/utils"
)

// Pipeline runs one analysis. Only Runtime and Model are required.
type Pipeline struct {
	Runtime     ai.Runtime
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	// RequestTimeout bounds each model call, retries included.
	RequestTimeout time.Duration

	// Executor runs the snippets. Nil disables execution.
	Executor sandbox.Executor
	Prompts  *prompt.Set
	Dataset  dataset.Options
	// WorkDir receives charts and README.md. Defaults to the current directory.
	WorkDir string
	// MaxOutputTokens caps the execution transcript sent for summarizing.
	MaxOutputTokens int
	// History, when set, records every run.
	History *store.DB
	Log     logx.Logger
	// OnPrompt sees each request before it is sent.
	OnPrompt func(stage string, msgs []ai.Message)
}

// Outcome describes what a run produced.
type Outcome struct {
	RunID         string
	Summary       *dataset.Summary
	Reply         string
	Snippets      []extract.Snippet
	Batch         *sandbox.Batch
	Findings      string
	MissingReason string
	Notes         []string
	ReportPath    string
}

// Run analyzes csvPath. Failing to load the dataset or to write the report is
// returned as an error; every other failure is logged, noted in the report,
// and the run carries on with what it has.
func (p *Pipeline) Run(ctx context.Context, csvPath string) (*Outcome, error) {
	log := p.Log
	if log == nil {
		log = logx.Nop
	}
	started := time.Now()
	out := &Outcome{RunID: uuid.NewString()}

	sum, err := dataset.Load(csvPath, p.Dataset)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	out.Summary = sum
	log.Info("✓ Loaded %s: shape %s, encoding %s", sum.Name, sum.Shape(), sum.Encoding)

	workDir := p.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	prompts := p.Prompts
	if prompts == nil {
		prompts = prompt.Default()
	}

	p.analyze(ctx, log, prompts, workDir, out)

	path, err := report.Write(workDir, report.Input{
		Dataset:       csvPath,
		Findings:      out.Findings,
		MissingReason: out.MissingReason,
		Notes:         out.Notes,
	})
	if err != nil {
		return out, err
	}
	out.ReportPath = path
	log.Info("✓ Report written to %s", path)

	p.record(log, out, csvPath, workDir, started)
	return out, nil
}

// analyze runs the model and execution stages, filling out as it goes.
func (p *Pipeline) analyze(ctx context.Context, log logx.Logger, prompts *prompt.Set, workDir string, out *Outcome) {
	msgs, err := prompts.Analysis(out.Summary, workDir)
	if err != nil {
		p.fail(log, out, "could not build the analysis prompt", err)
		return
	}
	reply, ok := p.complete(ctx, log, "analysis", msgs)
	if !ok {
		out.MissingReason = "the analysis request to the model failed"
		return
	}
	out.Reply = reply

	snippets, err := extract.Python(reply)
	if errors.Is(err, extract.ErrNoCode) {
		log.Warn("no Python code found in the model reply")
		out.MissingReason = "the model returned no Python code"
		return
	}
	out.Snippets = snippets

	if p.Executor == nil {
		out.Batch = sandbox.Skipped(snippets, "execution disabled")
		out.Findings = reply
		out.Notes = append(out.Notes, fmt.Sprintf("Code execution was disabled; %d proposed snippet(s) were not run and the findings above are the model's proposal, not results.", len(snippets)))
		return
	}

	log.Info("⚙ Running %d snippet(s) ...", len(snippets))
	batch, err := p.Executor.Execute(ctx, snippets)
	if err != nil {
		p.fail(log, out, "could not run the snippets", err)
		batch = sandbox.Skipped(snippets, err.Error())
	}
	out.Batch = batch
	for _, r := range batch.Failed() {
		out.Notes = append(out.Notes, fmt.Sprintf("Snippet %d failed: %s", r.Index, r.Err))
	}
	if batch.TimedOut {
		log.Warn("snippet execution timed out")
	}
	if n := len(batch.Failed()); n > 0 {
		log.Warn("%d of %d snippet(s) failed", n, len(batch.Results))
	} else {
		log.Info("✓ All %d snippet(s) ran", len(batch.Results))
	}

	if ctx.Err() != nil {
		p.fail(log, out, "run interrupted before summarizing", ctx.Err())
		out.MissingReason = "the run was interrupted"
		return
	}

	transcript := batch.Transcript()
	if p.MaxOutputTokens > 0 {
		transcript = utils.TruncateToTokenLimit(transcript, p.MaxOutputTokens)
	}
	msgs, err = prompts.Summary(transcript)
	if err != nil {
		p.fail(log, out, "could not build the summary prompt", err)
		return
	}
	findings, ok := p.complete(ctx, log, "summary", msgs)
	if !ok {
		out.MissingReason = "the summary request to the model failed"
		return
	}
	out.Findings = findings
}

func (p *Pipeline) complete(ctx context.Context, log logx.Logger, stage string, msgs []ai.Message) (string, bool) {
	if p.OnPrompt != nil {
		p.OnPrompt(stage, msgs)
	}
	if p.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.RequestTimeout)
		defer cancel()
	}
	log.Info("⚙ Requesting %s from %s (prompt tokens≈%d) ...", stage, p.Model, ai.PromptTokens(msgs))
	return ai.Complete(ctx, p.Runtime, ai.GenerateRequest{
		Model:       p.Model,
		Messages:    msgs,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}, log)
}

func (p *Pipeline) fail(log logx.Logger, out *Outcome, what string, err error) {
	log.Warn("%s: %v", what, err)
	out.Notes = append(out.Notes, fmt.Sprintf("%s: %v", what, err))
}

func (p *Pipeline) record(log logx.Logger, out *Outcome, csvPath, workDir string, started time.Time) {
	if p.History == nil {
		return
	}
	rec := store.RunRecord{
		ID:         out.RunID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Dataset:    csvPath,
		Shape:      out.Summary.Shape(),
		Encoding:   out.Summary.Encoding,
		Provider:   p.Provider,
		Model:      p.Model,
		WorkDir:    workDir,
		ReportPath: out.ReportPath,
		Snippets:   len(out.Snippets),
		Executed:   p.Executor != nil && out.Batch != nil,
		Summarized: out.Findings != "" && p.Executor != nil,
		Notes:      out.Notes,
	}
	if out.Batch != nil {
		rec.Failed = len(out.Batch.Failed())
	}
	if err := p.History.PutRun(rec); err != nil {
		log.Warn("could not record run history: %v", err)
		return
	}
	log.Debug("recorded run %s", rec.ID)
}
