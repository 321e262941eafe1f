package sandbox

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/KaramelBytes/autolysis-cli/internal/extract"
	"github.com/KaramelBytes/autolysis-cli/internal/logx"
)

//go:embed runner.py
var runnerScript []byte

// Defaults applied when the corresponding Python field is zero.
const (
	DefaultInterpreter = "python3"
	DefaultTimeout     = 300 * time.Second
	DefaultOutputLimit = 64 << 10
)

// passEnv lists the variables a snippet inherits. Anything else, including
// API credentials, stays in the parent.
var passEnv = []string{
	"PATH", "HOME", "USER", "LOGNAME", "LANG", "LC_ALL", "LC_CTYPE",
	"TMPDIR", "TEMP", "TMP", "PYTHONPATH", "PYTHONHOME", "VIRTUAL_ENV",
	"CONDA_PREFIX", "MPLCONFIGDIR", "SYSTEMROOT", "WINDIR", "USERPROFILE", "APPDATA",
}

// Python executes snippets with a local interpreter, one process per batch.
type Python struct {
	Interpreter string
	WorkDir     string
	Timeout     time.Duration
	// OutputLimit caps each snippet's captured output and the stray output, in bytes.
	OutputLimit int
	// Env adds KEY=VALUE pairs on top of the allowlist.
	Env []string
	Log logx.Logger
}

var _ Executor = (*Python)(nil)

type snippetIn struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
}

type resultLine struct {
	Index     int     `json:"index"`
	Output    string  `json:"output"`
	Error     *string `json:"error"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

// Execute runs all snippets in one interpreter. A snippet that raises does not
// stop the ones after it. When the batch is cut short (timeout, cancellation,
// interpreter crash), snippets without a recorded outcome get a
// "not executed" error.
func (p *Python) Execute(ctx context.Context, snippets []extract.Snippet) (*Batch, error) {
	if len(snippets) == 0 {
		return &Batch{}, nil
	}
	log := p.Log
	if log == nil {
		log = logx.Nop
	}
	interp := p.Interpreter
	if interp == "" {
		interp = DefaultInterpreter
	}
	path, err := exec.LookPath(interp)
	if err != nil {
		return nil, fmt.Errorf("python interpreter %q: %w", interp, err)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := p.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}

	tmp, err := os.MkdirTemp("", "autolysis-run-*")
	if err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	script := filepath.Join(tmp, "runner.py")
	if err := os.WriteFile(script, runnerScript, 0o600); err != nil {
		return nil, fmt.Errorf("write runner: %w", err)
	}
	resultsPath := filepath.Join(tmp, "results.jsonl")

	in := make([]snippetIn, len(snippets))
	for i, s := range snippets {
		in[i] = snippetIn{Index: s.Index, Source: s.Source}
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal snippets: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stray := &cappedBuffer{limit: limit}
	cmd := exec.CommandContext(runCtx, path, "-u", script, resultsPath, strconv.Itoa(limit))
	cmd.Dir = p.WorkDir
	cmd.Env = p.environ()
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = stray
	cmd.Stderr = stray
	cmd.WaitDelay = 2 * time.Second
	configureProcess(cmd)

	log.Debug("running %d snippet(s) with %s in %s (timeout %s)", len(snippets), path, p.WorkDir, timeout)
	start := time.Now()
	runErr := cmd.Run()
	batch := &Batch{Stray: stray.String(), Duration: time.Since(start)}

	got := map[int]Result{}
	if f, err := os.Open(resultsPath); err == nil {
		lines, derr := decodeResults(f)
		f.Close()
		if derr != nil {
			log.Debug("reading snippet results: %v", derr)
		}
		for _, r := range lines {
			got[r.Index] = r
		}
	}

	var reason string
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		batch.TimedOut = true
		reason = fmt.Sprintf("batch timed out after %s", timeout)
	case ctx.Err() != nil:
		reason = "canceled"
	case runErr != nil:
		reason = fmt.Sprintf("interpreter exited early: %v", runErr)
	default:
		reason = "no result recorded"
	}
	for _, s := range snippets {
		r, ok := got[s.Index]
		if !ok {
			r = Result{Index: s.Index, Err: "not executed: " + reason}
		}
		batch.Results = append(batch.Results, r)
	}
	if runErr != nil {
		log.Debug("interpreter finished with: %v", runErr)
	}
	return batch, nil
}

func (p *Python) environ() []string {
	env := make([]string, 0, len(passEnv)+len(p.Env)+3)
	for _, k := range passEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	env = append(env, "MPLBACKEND=Agg", "PYTHONIOENCODING=utf-8", "PYTHONDONTWRITEBYTECODE=1")
	return append(env, p.Env...)
}

// decodeResults reads the runner's JSON lines. A torn final line (the process
// was killed mid-write) is skipped.
func decodeResults(r io.Reader) ([]Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	var out []Result
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rl resultLine
		if err := json.Unmarshal(line, &rl); err != nil {
			continue
		}
		res := Result{Index: rl.Index, Output: rl.Output, Elapsed: time.Duration(rl.ElapsedMs) * time.Millisecond}
		if rl.Error != nil {
			res.Err = *rl.Error
			if res.Err == "" {
				res.Err = "error without message"
			}
		}
		out = append(out, res)
	}
	return out, sc.Err()
}

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	limit   int
	dropped int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.limit - c.buf.Len()
	switch {
	case room <= 0:
		c.dropped += len(p)
	case len(p) > room:
		c.buf.Write(p[:room])
		c.dropped += len(p) - room
	default:
		c.buf.Write(p)
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped == 0 {
		return c.buf.String()
	}
	return c.buf.String() + fmt.Sprintf("\n... (output truncated, %d bytes dropped)\n", c.dropped)
}
