package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// RuntimeEnv names the variable that points at an optional runtime YAML file.
const RuntimeEnv = "GLOSSARY_REVIEW_RUNTIME"

// Runtime holds process-level settings that are not edited from the UI.
type Runtime struct {
	Paths    PathsConfig    `yaml:"paths"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Provider ProviderConfig `yaml:"provider"`
	Update   UpdateConfig   `yaml:"update"`
}

// PathsConfig locates the user config file and the run ledger.
type PathsConfig struct {
	ConfigFile  string `yaml:"config_file"  env:"GLOSSARY_REVIEW_CONFIG"`
	HistoryFile string `yaml:"history_file" env:"GLOSSARY_REVIEW_HISTORY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:"127.0.0.1:5000"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// ProviderConfig bounds provider calls.
type ProviderConfig struct {
	CallTimeout    time.Duration `yaml:"call_timeout"    env:"PROVIDER_CALL_TIMEOUT"    env-default:"300s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"PROVIDER_CONNECT_TIMEOUT" env-default:"120s"`
	MaxTokens      int           `yaml:"max_tokens"      env:"PROVIDER_MAX_TOKENS"      env-default:"8192"`
}

// UpdateConfig points the update check at a release feed.
type UpdateConfig struct {
	Repository string        `yaml:"repository" env:"UPDATE_REPOSITORY" env-default:"oodadoudou/Korean_glossary_AI_review_UI"`
	APIBase    string        `yaml:"api_base"   env:"UPDATE_API_BASE"   env-default:"https://api.github.com"`
	Timeout    time.Duration `yaml:"timeout"    env:"UPDATE_TIMEOUT"    env-default:"10s"`
}

// LoadRuntime reads runtime settings from an optional YAML file and the environment.
// Priority: ENV > YAML > defaults.
func LoadRuntime() (*Runtime, error) {
	var rt Runtime

	if path := os.Getenv(RuntimeEnv); path != "" {
		if err := cleanenv.ReadConfig(path, &rt); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&rt); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	rt.resolvePaths()
	if err := rt.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &rt, nil
}

// Validate checks runtime settings after loading.
func (r *Runtime) Validate() error {
	if strings.TrimSpace(r.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if r.Provider.CallTimeout <= 0 {
		return fmt.Errorf("provider.call_timeout must be > 0 (got %s)", r.Provider.CallTimeout)
	}
	if r.Provider.ConnectTimeout <= 0 {
		return fmt.Errorf("provider.connect_timeout must be > 0 (got %s)", r.Provider.ConnectTimeout)
	}
	switch strings.ToLower(r.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", r.Log.Format)
	}
	return nil
}

// resolvePaths places cfg.json next to the executable and the ledger next to cfg.json.
func (r *Runtime) resolvePaths() {
	if strings.TrimSpace(r.Paths.ConfigFile) == "" {
		r.Paths.ConfigFile = filepath.Join(executableDir(), "cfg.json")
	}
	if strings.TrimSpace(r.Paths.HistoryFile) == "" {
		r.Paths.HistoryFile = filepath.Join(filepath.Dir(r.Paths.ConfigFile), "history.db")
	}
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
