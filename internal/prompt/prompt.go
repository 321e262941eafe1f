// Package prompt builds the chat messages sent to the model. Templates are
// TOML files with a system and a user part; the user part is a Go
// text/template.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	"github.com/KaramelBytes/autolysis-cli/internal/dataset"
)

// Template file names, both for the embedded defaults and for overrides.
const (
	AnalysisFile = "analysis.toml"
	SummaryFile  = "summary.toml"
)

//go:embed templates/*.toml
var builtin embed.FS

// File is the on-disk shape of a prompt template.
type File struct {
	System string `toml:"system"`
	User   string `toml:"user"`
}

type compiled struct {
	source string
	system string
	user   *template.Template
}

// Set holds the analysis and summary templates.
type Set struct {
	analysis *compiled
	summary  *compiled
}

// AnalysisData is what the analysis template sees.
type AnalysisData struct {
	Dataset    string
	Shape      string
	Columns    string
	Missing    string
	Examples   string
	ChartDir   string
	Statistics string
	Encoding   string
}

// SummaryData is what the summary template sees.
type SummaryData struct {
	Transcript string
}

// Load returns the built-in templates, replacing each one that has a file of
// the same name in dir. An empty dir means built-ins only.
func Load(dir string) (*Set, error) {
	a, err := loadOne(dir, AnalysisFile)
	if err != nil {
		return nil, err
	}
	s, err := loadOne(dir, SummaryFile)
	if err != nil {
		return nil, err
	}
	return &Set{analysis: a, summary: s}, nil
}

// Default returns the built-in templates.
func Default() *Set {
	s, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("built-in prompt templates: %v", err))
	}
	return s
}

func loadOne(dir, name string) (*compiled, error) {
	var f File
	source := "builtin:" + name
	if dir != "" {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &f); err != nil {
				return nil, fmt.Errorf("decode prompt file %s: %w", p, err)
			}
			source = p
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat prompt file: %w", err)
		}
	}
	if !strings.HasPrefix(source, "builtin:") {
		return compile(source, f)
	}
	b, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		return nil, err
	}
	if _, err := toml.Decode(string(b), &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	return compile(source, f)
}

func compile(source string, f File) (*compiled, error) {
	if strings.TrimSpace(f.User) == "" {
		return nil, fmt.Errorf("%s: user prompt is empty", source)
	}
	t, err := template.New(filepath.Base(source)).Option("missingkey=error").Parse(f.User)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	return &compiled{source: source, system: strings.TrimSpace(f.System), user: t}, nil
}

func (c *compiled) render(data any) ([]ai.Message, error) {
	var b bytes.Buffer
	if err := c.user.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", c.source, err)
	}
	var msgs []ai.Message
	if c.system != "" {
		msgs = append(msgs, ai.Message{Role: "system", Content: c.system})
	}
	return append(msgs, ai.Message{Role: "user", Content: strings.TrimSpace(b.String())}), nil
}

// Analysis builds the request asking for Python analysis snippets. workDir is
// where the snippets run and where charts should be saved.
func (s *Set) Analysis(sum *dataset.Summary, workDir string) ([]ai.Message, error) {
	if sum == nil {
		return nil, errors.New("dataset summary is nil")
	}
	return s.analysis.render(NewAnalysisData(sum, workDir))
}

// Summary builds the request asking the model to narrate execution output.
func (s *Set) Summary(transcript string) ([]ai.Message, error) {
	return s.summary.render(SummaryData{Transcript: transcript})
}

// Sources reports where each template was loaded from.
func (s *Set) Sources() (analysis, summary string) {
	return s.analysis.source, s.summary.source
}

// NewAnalysisData renders the dataset facts the way a dataframe would print
// them, keeping column order so identical summaries give identical prompts.
func NewAnalysisData(sum *dataset.Summary, workDir string) AnalysisData {
	return AnalysisData{
		Dataset:    datasetRef(sum, workDir),
		Shape:      sum.Shape(),
		Columns:    dtypeDict(sum.Columns),
		Missing:    missingDict(sum.Columns),
		Examples:   exampleRecords(sum),
		ChartDir:   workDir,
		Statistics: statistics(sum.Columns),
		Encoding:   sum.Encoding,
	}
}

// datasetRef names the CSV as the snippets should open it: relative to the
// working directory when it lives below it, absolute otherwise.
func datasetRef(sum *dataset.Summary, workDir string) string {
	if sum.Path == "" {
		return sum.Name
	}
	abs, err := filepath.Abs(sum.Path)
	if err != nil {
		return sum.Path
	}
	if workDir == "" {
		return sum.Path
	}
	wd, err := filepath.Abs(workDir)
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return rel
}

func statistics(cols []dataset.Column) string {
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "  %s (%s): count=%d", c.Name, c.DType, c.Count)
		switch {
		case c.IsNumeric() && c.Count > 0:
			fmt.Fprintf(&b, ", mean=%.4g, std=%.4g, min=%.4g, 25%%=%.4g, 50%%=%.4g, 75%%=%.4g, max=%.4g",
				c.Mean, c.Std, c.Min, c.Q1, c.Median, c.Q3, c.Max)
			if c.OutliersCount > 0 {
				fmt.Fprintf(&b, ", outliers=%d", c.OutliersCount)
			}
		case c.Unique > 0:
			fmt.Fprintf(&b, ", unique=%d, top=%s, freq=%d", c.Unique, pyString(c.Top), c.Freq)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
