// Package report renders the Markdown report written next to the charts.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/autolysis-cli/internal/utils"
)

// FileName is the report written into the working directory.
const FileName = "README.md"

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".svg": true, ".gif": true}

// Input is everything the report shows.
type Input struct {
	// Dataset is the CSV as named on the command line.
	Dataset string
	// Findings is the model's narrative. When empty, MissingReason explains why.
	Findings      string
	MissingReason string
	// Notes lists recoverable problems met during the run.
	Notes []string
	// Images are chart file names relative to the report. Write fills them
	// from the directory listing.
	Images []string
}

// Render produces the report text. Identical input gives identical output.
func Render(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis of %s\n\n", in.Dataset)
	b.WriteString("## Overview\n\n")
	b.WriteString("This analysis was conducted using an automated pipeline. Below are the key insights and visualizations.\n\n")

	b.WriteString("## Key Findings\n\n")
	if f := strings.TrimSpace(in.Findings); f != "" {
		b.WriteString(f)
		b.WriteString("\n\n")
	} else {
		reason := in.MissingReason
		if reason == "" {
			reason = "the model returned no summary"
		}
		fmt.Fprintf(&b, "_No findings available: %s._\n\n", strings.TrimSuffix(reason, "."))
	}

	if len(in.Notes) > 0 {
		b.WriteString("## Execution Notes\n\n")
		for _, n := range in.Notes {
			fmt.Fprintf(&b, "- %s\n", oneLine(n))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Visualizations\n\n")
	imgs := append([]string(nil), in.Images...)
	sort.Strings(imgs)
	if len(imgs) == 0 {
		b.WriteString("No charts were generated.\n")
		return b.String()
	}
	b.WriteString("The following charts were generated and saved in the current directory:\n\n")
	for _, name := range imgs {
		fmt.Fprintf(&b, "- ![%s](%s)\n", name, strings.ReplaceAll(name, " ", "%20"))
	}
	return b.String()
}

// Images lists chart files directly inside dir, sorted by name.
func Images(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Write lists the charts in dir, renders the report and atomically replaces
// dir/README.md. It returns the report path.
func Write(dir string, in Input) (string, error) {
	imgs, err := Images(dir)
	if err != nil {
		return "", err
	}
	in.Images = imgs
	path := filepath.Join(dir, FileName)
	if err := utils.SafeWriteFile(path, []byte(Render(in))); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	return s
}
