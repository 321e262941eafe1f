package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/autolysis-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/autolysis-cli/internal/config"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// normalizeProvider maps user spellings onto registered provider names.
func normalizeProvider(name string) string {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "local":
		return ai.ProviderOllama
	case "aiproxy", "openai-compatible":
		return ai.ProviderOpenAI
	default:
		return p
	}
}

// buildRuntime resolves provider, credential and retry knobs into a Runtime.
// Token providers fail here when the credential variable is unset, before any
// work starts.
func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 120 * time.Second
	retryMax := 2
	baseDelay := time.Second
	maxDelay := 4 * time.Second
	providerName := normalizeProvider(opts.ProviderFlag)
	tokenEnv := "AIPROXY_TOKEN"
	var baseURL string
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
		if providerName == "" {
			providerName = normalizeProvider(cfg.DefaultProvider)
		}
		if cfg.TokenEnv != "" {
			tokenEnv = cfg.TokenEnv
		}
		baseURL = cfg.BaseURL
	}
	if providerName == "" {
		providerName = ai.ProviderOpenAI
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		BaseURL:     baseURL,
	}

	if ai.NeedsToken(providerName) {
		rc.APIKey = strings.TrimSpace(os.Getenv(tokenEnv))
		if rc.APIKey == "" {
			return nil, providerName, fmt.Errorf("%s environment variable is not set", tokenEnv)
		}
	} else {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use one of %s)", providerName, strings.Join(ai.Providers(), ", "))
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return "gpt-4o-mini"
}
