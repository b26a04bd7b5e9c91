package config

import (
	"strings"

	"glossary-review/internal/domain"
)

// MigrateLegacy converts the single-provider schema into the provider list.
// It is a no-op when providers are already present.
func MigrateLegacy(cfg domain.Config) domain.Config {
	if len(cfg.Providers) > 0 || strings.TrimSpace(cfg.APIKey) == "" {
		return cfg
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	for _, line := range strings.Split(cfg.APIKey, "\n") {
		key := strings.TrimSpace(line)
		if key == "" {
			continue
		}
		cfg.Providers = append(cfg.Providers, domain.Provider{
			BaseURL: baseURL,
			APIKey:  key,
			Model:   model,
			Enabled: true,
		})
	}
	return cfg
}

// Normalize trims provider fields, drops blank and duplicate providers,
// and clamps worker and batch sizes to at least one.
func Normalize(cfg domain.Config) domain.Config {
	seen := make(map[domain.ProviderKey]struct{}, len(cfg.Providers))
	providers := make([]domain.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.Model = strings.TrimSpace(p.Model)
		if p.APIKey == "" && p.BaseURL == "" && p.Model == "" {
			continue
		}
		if _, dup := seen[p.Key()]; dup {
			continue
		}
		seen[p.Key()] = struct{}{}
		providers = append(providers, p)
	}
	cfg.Providers = providers

	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	cfg.DefaultDirectory = strings.TrimSpace(cfg.DefaultDirectory)
	cfg.LastTaskDirectory = strings.TrimSpace(cfg.LastTaskDirectory)
	return cfg
}
