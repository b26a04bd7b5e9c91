package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"glossary-review/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// TestDefaultConfig verifies baseline defaults are present.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxWorkers != DefaultMaxWorkers {
		t.Fatalf("max workers = %d, want %d", cfg.MaxWorkers, DefaultMaxWorkers)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("batch size = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.Prompts.BatchReview == "" {
		t.Fatal("expected non-empty default prompt")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "cfg.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.MaxWorkers != DefaultMaxWorkers {
		t.Fatalf("max workers = %d, want %d", got.MaxWorkers, DefaultMaxWorkers)
	}
	if len(got.Providers) != 0 {
		t.Fatalf("providers = %v, want none", got.Providers)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted config fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "cfg.json")
	store := NewJSONStore(path)
	want := domain.Config{
		Providers: []domain.Provider{
			{BaseURL: "https://a.example/v1", APIKey: "sk-a", Model: "m1", Enabled: true},
			{BaseURL: "https://b.example/v1", APIKey: "sk-b", Model: "m2", Enabled: false},
		},
		MaxWorkers:        4,
		BatchSize:         5,
		ConnectTimeout:    30,
		LastTaskDirectory: "/work",
		LastTaskContext:   "background",
		Prompts:           domain.Prompts{BatchReview: "review"},
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got.Providers, want.Providers) {
		t.Fatalf("providers = %+v, want %+v", got.Providers, want.Providers)
	}
	if got.MaxWorkers != 4 || got.BatchSize != 5 {
		t.Fatalf("workers/batch = %d/%d, want 4/5", got.MaxWorkers, got.BatchSize)
	}
	if got.LastTaskContext != "background" {
		t.Fatalf("context = %q, want background", got.LastTaskContext)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "cfg.json")
	writeFile(t, path, "{not-json")

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestJSONStoreMigratesLegacyKeys checks one provider per non-blank key line.
func TestJSONStoreMigratesLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"api_key":"sk-1\n\n  sk-2  \n","base_url":"https://api.deepseek.com/v1","model":"deepseek-chat","MAX_WORKERS":3}`)

	store := NewJSONStore(path)
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(got.Providers))
	}
	for i, key := range []string{"sk-1", "sk-2"} {
		p := got.Providers[i]
		if p.APIKey != key || p.BaseURL != "https://api.deepseek.com/v1" || p.Model != "deepseek-chat" || !p.Enabled {
			t.Fatalf("provider[%d] = %+v", i, p)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := onDisk["providers"]; ok {
		t.Fatal("load must not rewrite the legacy file")
	}
}

// TestJSONStoreMigrationIsIdempotent runs load/save twice on a legacy file.
func TestJSONStoreMigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"api_key":"sk-1\nsk-2","base_url":"https://x/v1","model":"m"}`)
	store := NewJSONStore(path)

	var lists [][]domain.Provider
	for i := 0; i < 2; i++ {
		cfg, err := store.Load()
		if err != nil {
			t.Fatalf("Load() #%d error = %v", i, err)
		}
		if err := store.Save(cfg); err != nil {
			t.Fatalf("Save() #%d error = %v", i, err)
		}
		reloaded, err := store.Load()
		if err != nil {
			t.Fatalf("reload #%d error = %v", i, err)
		}
		lists = append(lists, reloaded.Providers)
	}

	if len(lists[0]) != 2 {
		t.Fatalf("providers = %d, want 2", len(lists[0]))
	}
	if !reflect.DeepEqual(lists[0], lists[1]) {
		t.Fatalf("providers changed between passes: %+v vs %+v", lists[0], lists[1])
	}
}

// TestJSONStoreSavePreservesUnknownKeys keeps fields written by other tools.
func TestJSONStoreSavePreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"theme":"dark","api_key":"sk-old","base_url":"https://x/v1","model":"m"}`)
	store := NewJSONStore(path)

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if onDisk["theme"] != "dark" {
		t.Fatalf("theme = %v, want dark", onDisk["theme"])
	}
	if _, ok := onDisk["api_key"]; ok {
		t.Fatal("legacy api_key should be removed after save")
	}
}

// TestNormalizeDedupesAndClamps checks provider identity and tunable floors.
func TestNormalizeDedupesAndClamps(t *testing.T) {
	cfg := Normalize(domain.Config{
		Providers: []domain.Provider{
			{BaseURL: " https://a/v1/ ", APIKey: " k ", Model: "m", Enabled: true},
			{BaseURL: "https://a/v1", APIKey: "k", Model: "m", Enabled: false},
			{},
		},
		MaxWorkers: 0,
		BatchSize:  -2,
	})

	if len(cfg.Providers) != 1 {
		t.Fatalf("providers = %+v, want 1 entry", cfg.Providers)
	}
	if cfg.Providers[0].BaseURL != "https://a/v1" || cfg.Providers[0].APIKey != "k" {
		t.Fatalf("provider = %+v, want trimmed", cfg.Providers[0])
	}
	if cfg.MaxWorkers != 1 || cfg.BatchSize != 1 {
		t.Fatalf("workers/batch = %d/%d, want 1/1", cfg.MaxWorkers, cfg.BatchSize)
	}
}

// TestProviderMissingEnabledDefaultsTrue checks the decode default.
func TestProviderMissingEnabledDefaultsTrue(t *testing.T) {
	var p domain.Provider
	if err := json.Unmarshal([]byte(`{"base_url":"u","api_key":"k","model":"m"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Enabled {
		t.Fatal("enabled = false, want true")
	}
}
