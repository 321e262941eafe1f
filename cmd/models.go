package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/autolysis-cli/internal/config"
	"github.com/KaramelBytes/autolysis-cli/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog used for context and cost checks",
	Example: `  autolysis models show
  autolysis models show --provider ollama
  autolysis models sync --file ./models.json --merge`,
}

var showProvider string

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		if showProvider != "" {
			preset, ok := ai.PresetCatalog(showProvider)
			if !ok {
				return fmt.Errorf("no built-in catalog for provider %q (known: openai, openrouter, ollama)", showProvider)
			}
			cat = preset
		}
		// pretty-print deterministic order
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w := cmd.OutOrStdout()
		for _, k := range keys {
			mi := cat[k]
			fmt.Fprintf(w, "- %s [%s] context=%d in=$%.5f/1K out=$%.5f/1K\n", k, mi.Provider, mi.ContextTokens, mi.InputPerK, mi.OutputPerK)
		}
		return nil
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file and keep it for later runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if syncMerge {
			ai.MergeCatalog(m)
		} else {
			ai.OverrideCatalog(m)
		}
		path, err := catalogPath()
		if err != nil {
			return err
		}
		data, err := utils.PrettyJSON(ai.Catalog())
		if err != nil {
			return fmt.Errorf("marshal catalog: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err := utils.SafeWriteFile(path, data); err != nil {
			return err
		}
		verb := "Replaced"
		if syncMerge {
			verb = "Merged"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s model catalog (%d models) saved to %s\n", verb, len(ai.Catalog()), path)
		return nil
	},
}

// catalogPath is where a synced catalog is kept between runs.
func catalogPath() (string, error) {
	dir, err := cfgpkg.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models.json"), nil
}

// loadSavedCatalog applies a previously synced catalog, if any.
func loadSavedCatalog() {
	path, err := catalogPath()
	if err != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	m, err := ai.LoadCatalogFromJSON(path)
	if err != nil {
		console.Warn("ignoring model catalog %s: %v", path, err)
		return
	}
	ai.OverrideCatalog(m)
	console.Debug("model catalog loaded from %s (%d models)", path, len(m))
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)

	modelsShowCmd.Flags().StringVar(&showProvider, "provider", "", "show the built-in catalog of one provider")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")
}
