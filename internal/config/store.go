package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"glossary-review/internal/domain"
)

// Store defines persistence operations for the user configuration.
type Store interface {
	Load() (domain.Config, error)
	Save(domain.Config) error
}

// legacyKeys are dropped from disk once the provider list has been saved.
var legacyKeys = []string{"api_key", "base_url", "model"}

// JSONStore persists configuration in a single JSON file on disk.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore creates a JSON-backed configuration store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads configuration from disk or returns defaults when missing.
// Legacy single-key files are migrated in memory only.
func (s *JSONStore) Load() (domain.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}

		return domain.Config{}, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", s.path, err)
	}

	return MigrateLegacy(cfg), nil
}

// Save writes the provider-list schema as indented JSON, keeping keys it does not know about.
func (s *JSONStore) Save(cfg domain.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg = Normalize(MigrateLegacy(cfg))
	cfg.APIKey, cfg.BaseURL, cfg.Model = "", "", ""

	merged := map[string]json.RawMessage{}
	if existing, err := os.ReadFile(s.path); err == nil {
		// A corrupt file is replaced rather than merged.
		_ = json.Unmarshal(existing, &merged)
	}
	for _, key := range legacyKeys {
		delete(merged, key)
	}

	known, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return err
	}
	for key, value := range fields {
		merged[key] = value
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}
