package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Model metadata and simple pricing helpers for context warnings and cost hints.
// Prices are illustrative; load a JSON catalog to override them.

type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var presets = map[string]map[string]ModelInfo{
	ProviderOpenAI: {
		"gpt-4o-mini":   {Name: "gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"gpt-4o":        {Name: "gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
		"gpt-4.1-mini":  {Name: "gpt-4.1-mini", ContextTokens: 1047576, InputPerK: 0.0004, OutputPerK: 0.0016},
		"gpt-4.1-nano":  {Name: "gpt-4.1-nano", ContextTokens: 1047576, InputPerK: 0.0001, OutputPerK: 0.0004},
		"gpt-3.5-turbo": {Name: "gpt-3.5-turbo", ContextTokens: 16385, InputPerK: 0.0005, OutputPerK: 0.0015},
	},
	ProviderOpenRouter: {
		"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
		"openai/gpt-4o":               {Name: "openai/gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
		"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
		"google/gemini-1.5-flash":     {Name: "google/gemini-1.5-flash", ContextTokens: 1000000, InputPerK: 0.0002, OutputPerK: 0.0008},
		"deepseek/deepseek-r1:free":   {Name: "deepseek/deepseek-r1:free", ContextTokens: 128000},
	},
	// Local tags that commonly exist in Ollama registries. Free to run.
	ProviderOllama: {
		"llama3.1:8b":           {Name: "llama3.1:8b", ContextTokens: 8192},
		"qwen2.5-coder:7b":      {Name: "qwen2.5-coder:7b", ContextTokens: 32768},
		"mistral-nemo:latest":   {Name: "mistral-nemo:latest", ContextTokens: 8192},
		"phi3:mini-4k-instruct": {Name: "phi3:mini-4k-instruct", ContextTokens: 4096},
	},
}

var models = defaultCatalog()

func defaultCatalog() map[string]ModelInfo {
	out := map[string]ModelInfo{}
	for provider, set := range presets {
		for k, v := range set {
			v.Provider = provider
			out[k] = v
		}
	}
	return out
}

// PresetCatalog returns the built-in catalog for a known provider.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	provider = strings.ToLower(provider)
	set, ok := presets[provider]
	if !ok {
		return nil, false
	}
	out := make(map[string]ModelInfo, len(set))
	for k, v := range set {
		v.Provider = provider
		out[k] = v
	}
	return out, true
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "gpt-4o-mini": {"Name":"gpt-4o-mini","ContextTokens":128000,"InputPerK":0.00015,"OutputPerK":0.0006} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	models = m
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// ResetCatalog restores the built-in catalog.
func ResetCatalog() { models = defaultCatalog() }

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
