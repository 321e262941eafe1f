package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/autolysis-cli/internal/config"
	"github.com/KaramelBytes/autolysis-cli/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the history of analysis runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()
		runs, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "(no runs)")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "- %s  %s  %s %s  snippets=%d failed=%d  %s\n",
				shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Dataset, r.Shape,
				r.Snippets, r.Failed, r.Model)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run; any unique id prefix works",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()
		r, err := db.GetRun(args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		printRun(cmd.OutOrStdout(), r)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list (0 for all)")
}

func openHistory() (*store.DB, error) {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	return store.Open(cfg.StoreDir)
}

func printRun(w io.Writer, r *store.RunRecord) {
	fmt.Fprintf(w, "id: %s\n", r.ID)
	fmt.Fprintf(w, "dataset: %s\n", r.Dataset)
	fmt.Fprintf(w, "shape: %s\n", r.Shape)
	fmt.Fprintf(w, "encoding: %s\n", r.Encoding)
	fmt.Fprintf(w, "provider: %s\n", r.Provider)
	fmt.Fprintf(w, "model: %s\n", r.Model)
	fmt.Fprintf(w, "started: %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "duration: %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "work_dir: %s\n", r.WorkDir)
	fmt.Fprintf(w, "report: %s\n", r.ReportPath)
	fmt.Fprintf(w, "snippets: %d (failed %d, executed %t)\n", r.Snippets, r.Failed, r.Executed)
	fmt.Fprintf(w, "summarized: %t\n", r.Summarized)
	if len(r.Notes) > 0 {
		fmt.Fprintln(w, "notes:")
		for _, n := range r.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
}
