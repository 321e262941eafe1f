package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	"github.com/KaramelBytes/autolysis-cli/internal/extract"
	"github.com/KaramelBytes/autolysis-cli/internal/logx"
	"github.com/KaramelBytes/autolysis-cli/internal/sandbox"
	"github.com/KaramelBytes/autolysis-cli/internal/store"
)

const numericCSV = "a,b,c\n" +
	"1,1.5,10\n2,2.5,20\n3,3.5,30\n4,4.5,40\n5,5.5,50\n" +
	"6,6.5,60\n7,7.5,70\n8,8.5,80\n9,9.5,90\n10,10.5,100\n"

// scripted answers each request with the next reply; an empty reply is sent
// as a transport error.
type scripted struct {
	mu      sync.Mutex
	replies []string
	seen    [][]ai.Message
}

func (s *scripted) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, req.Messages)
	if len(s.replies) == 0 {
		return nil, errors.New("no more replies")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r == "" {
		return nil, errors.New("upstream unavailable")
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: r}}}}, nil
}

type fakeExecutor struct {
	calls   int
	got     []extract.Snippet
	err     error
	failIdx int
}

func (f *fakeExecutor) Execute(_ context.Context, snippets []extract.Snippet) (*sandbox.Batch, error) {
	f.calls++
	f.got = snippets
	if f.err != nil {
		return nil, f.err
	}
	b := &sandbox.Batch{}
	for _, s := range snippets {
		r := sandbox.Result{Index: s.Index, Output: "ran snippet\n"}
		if s.Index == f.failIdx {
			r.Err = "ZeroDivisionError: division by zero"
		}
		b.Results = append(b.Results, r)
	}
	return b, nil
}

func setup(t *testing.T) (dir, csv string) {
	t.Helper()
	dir = t.TempDir()
	csv = filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csv, []byte(numericCSV), 0o644))
	return dir, csv
}

func readReport(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRunEndToEnd(t *testing.T) {
	dir, csv := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.png"), []byte("png"), 0o644))
	rt := &scripted{replies: []string{
		"Here you go:\n```python\nprint(df.shape)\n```\n",
		"stub summary",
	}}
	exec := &fakeExecutor{}
	p := &Pipeline{Runtime: rt, Model: "gpt-4o-mini", Executor: exec, WorkDir: dir}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)

	require.Len(t, rt.seen, 2)
	first := rt.seen[0][len(rt.seen[0])-1].Content
	assert.Contains(t, first, "(10, 3)")
	assert.Contains(t, first, "data.csv")
	assert.Contains(t, rt.seen[1][len(rt.seen[1])-1].Content, "ran snippet")

	assert.Equal(t, "(10, 3)", out.Summary.Shape())
	for _, c := range out.Summary.Columns {
		assert.Zero(t, c.Missing, c.Name)
	}
	require.Len(t, exec.got, 1)
	assert.Equal(t, "print(df.shape)", strings.TrimSpace(exec.got[0].Source))
	require.Len(t, out.Batch.Results, 1)
	assert.Equal(t, "stub summary", out.Findings)
	assert.NotEmpty(t, out.RunID)

	report := readReport(t, out.ReportPath)
	assert.Equal(t, filepath.Join(dir, "README.md"), out.ReportPath)
	assert.Contains(t, report, "## Key Findings\n\nstub summary")
	assert.Contains(t, report, "![chart.png](chart.png)")
	assert.NotContains(t, report, "## Execution Notes")
}

func TestRunWithoutCodeStillWritesReport(t *testing.T) {
	dir, csv := setup(t)
	rt := &scripted{replies: []string{"I would look at the mean of each column."}}
	exec := &fakeExecutor{}
	p := &Pipeline{Runtime: rt, Model: "gpt-4o-mini", Executor: exec, WorkDir: dir}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)
	assert.Len(t, rt.seen, 1, "no summary request without code")
	assert.Zero(t, exec.calls)
	assert.Contains(t, readReport(t, out.ReportPath), "no Python code")
}

func TestRunSurvivesModelFailure(t *testing.T) {
	dir, csv := setup(t)
	var errBuf bytes.Buffer
	log := logx.NewConsoleWriters(&bytes.Buffer{}, &errBuf, false)
	p := &Pipeline{Runtime: &scripted{replies: []string{""}}, Model: "gpt-4o-mini", Executor: &fakeExecutor{}, WorkDir: dir, Log: log}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)
	assert.Contains(t, errBuf.String(), "⚠ Warning:")
	report := readReport(t, out.ReportPath)
	assert.Contains(t, report, "# Analysis of "+csv)
	assert.Contains(t, report, "analysis request to the model failed")
}

func TestRunSummaryFailureKeepsNotes(t *testing.T) {
	dir, csv := setup(t)
	rt := &scripted{replies: []string{
		"```python\nx = 1\n```\n```python\n1/0\n```\n",
		"",
	}}
	p := &Pipeline{Runtime: rt, Model: "gpt-4o-mini", Executor: &fakeExecutor{failIdx: 2}, WorkDir: dir}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)
	assert.Contains(t, rt.seen[1][len(rt.seen[1])-1].Content, "Error executing code: ZeroDivisionError")
	report := readReport(t, out.ReportPath)
	assert.Contains(t, report, "summary request to the model failed")
	assert.Contains(t, report, "- Snippet 2 failed: ZeroDivisionError")
}

func TestRunLoadFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	rt := &scripted{}
	p := &Pipeline{Runtime: rt, Model: "gpt-4o-mini", WorkDir: dir}

	_, err := p.Run(context.Background(), filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")
	assert.Empty(t, rt.seen)
	assert.NoFileExists(t, filepath.Join(dir, "README.md"))
}

func TestRunExecutorSetupError(t *testing.T) {
	dir, csv := setup(t)
	rt := &scripted{replies: []string{"```python\nprint(1)\n```", "nothing ran"}}
	p := &Pipeline{Runtime: rt, Model: "gpt-4o-mini", Executor: &fakeExecutor{err: errors.New("python3 not found")}, WorkDir: dir}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)
	require.Len(t, out.Batch.Failed(), 1)
	assert.Contains(t, rt.seen[1][len(rt.seen[1])-1].Content, "not executed: python3 not found")
	assert.Contains(t, readReport(t, out.ReportPath), "could not run the snippets: python3 not found")
}

func TestRunWithExecutionDisabled(t *testing.T) {
	dir, csv := setup(t)
	reply := "```python\nprint(df.describe())\n```"
	rt := &scripted{replies: []string{reply}}
	p := &Pipeline{Runtime: rt, Model: "gpt-4o-mini", WorkDir: dir}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)
	assert.Len(t, rt.seen, 1)
	assert.Equal(t, reply, out.Findings)
	assert.Contains(t, readReport(t, out.ReportPath), "Code execution was disabled")
}

func TestRunRecordsHistory(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir, csv := setup(t)
	rt := &scripted{replies: []string{"```python\nprint(1)\n```", "all good"}}
	var stages []string
	p := &Pipeline{
		Runtime: rt, Provider: ai.ProviderOpenAI, Model: "gpt-4o-mini",
		Executor: &fakeExecutor{}, WorkDir: dir, History: db,
		OnPrompt: func(stage string, _ []ai.Message) { stages = append(stages, stage) },
	}

	out, err := p.Run(context.Background(), csv)
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis", "summary"}, stages)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, out.RunID, r.ID)
	assert.Equal(t, "(10, 3)", r.Shape)
	assert.Equal(t, "openai", r.Provider)
	assert.Equal(t, 1, r.Snippets)
	assert.True(t, r.Executed)
	assert.True(t, r.Summarized)
	assert.Equal(t, out.ReportPath, r.ReportPath)
}
