// Package extract pulls Python snippets out of a model reply.
package extract

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNoCode is returned when a reply holds no python fenced block.
var ErrNoCode = errors.New("no python code blocks in reply")

const fence = "```"

// Snippet is one fenced block of Python source. It is data only: nothing in
// this package runs it.
type Snippet struct {
	Index  int
	Source string
}

// Python splits reply on triple backticks and keeps the fenced segments whose
// info string is python or python3 (any case). The marker is stripped and the
// body trimmed. Snippets keep source order and are numbered from 1.
func Python(reply string) ([]Snippet, error) {
	parts := strings.Split(reply, fence)
	var out []Snippet
	// odd segments are inside fences; a trailing unterminated fence still counts
	for i := 1; i < len(parts); i += 2 {
		body, ok := stripMarker(parts[i])
		if !ok {
			continue
		}
		out = append(out, Snippet{Index: len(out) + 1, Source: body})
	}
	if len(out) == 0 {
		return nil, ErrNoCode
	}
	return out, nil
}

func stripMarker(seg string) (string, bool) {
	s := strings.TrimLeftFunc(seg, unicode.IsSpace)
	for _, marker := range []string{"python3", "python"} {
		if len(s) < len(marker) || !strings.EqualFold(s[:len(marker)], marker) {
			continue
		}
		rest := s[len(marker):]
		if rest != "" {
			r := []rune(rest)[0]
			if !unicode.IsSpace(r) {
				return "", false
			}
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}
