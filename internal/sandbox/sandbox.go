// Package sandbox runs model-written Python snippets in a separate interpreter
// process. It isolates the CLI from the code (own process, pinned working
// directory, reduced environment, time and output limits) but it is not a
// security boundary: the snippets keep the user's filesystem and network access.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/autolysis-cli/internal/extract"
)

// Executor runs a batch of snippets in order and reports one Result per
// snippet. Errors are reserved for failures to start the batch at all.
type Executor interface {
	Execute(ctx context.Context, snippets []extract.Snippet) (*Batch, error)
}

// Result is the outcome of one snippet.
type Result struct {
	Index   int
	Output  string
	Err     string // empty on success
	Elapsed time.Duration
}

// OK reports whether the snippet ran without raising.
func (r Result) OK() bool { return r.Err == "" }

// Batch collects the results of one Execute call, in snippet order.
type Batch struct {
	Results []Result
	// Stray holds interpreter output not attributed to any snippet, such as
	// crash tracebacks or writes from background threads.
	Stray    string
	Duration time.Duration
	TimedOut bool
}

// Failed returns the results that carry an error.
func (b *Batch) Failed() []Result {
	if b == nil {
		return nil
	}
	var out []Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Transcript renders the combined execution output: each snippet's output,
// an "Error executing code: ..." line for each failure, then stray output.
func (b *Batch) Transcript() string {
	if b == nil {
		return ""
	}
	var sb strings.Builder
	for _, r := range b.Results {
		writeLine(&sb, r.Output)
		if !r.OK() {
			fmt.Fprintf(&sb, "Error executing code: %s\n", r.Err)
		}
	}
	writeLine(&sb, b.Stray)
	return sb.String()
}

func writeLine(sb *strings.Builder, s string) {
	if s == "" {
		return
	}
	sb.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		sb.WriteByte('\n')
	}
}

// Skipped builds a batch in which no snippet ran, each carrying reason.
func Skipped(snippets []extract.Snippet, reason string) *Batch {
	b := &Batch{Results: make([]Result, len(snippets))}
	for i, s := range snippets {
		b.Results[i] = Result{Index: s.Index, Err: "not executed: " + reason}
	}
	return b
}
