package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"glossary-review/internal/config"
	"glossary-review/internal/domain"
)

// FixDiagnostic applies the automatic remediation for one failed diagnostic item.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, domain.NewValidationError("id", "diagnostic item id is required")
	}

	cfg, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load config: %w", err)
	}

	changed := false
	var fixErr error
	switch id {
	case "results_dir":
		cfg, changed, fixErr = fixResultsDir(cfg)
	case "task_dir":
		fixErr = fmt.Errorf("select a task folder containing the glossary .xlsx and the reference .txt")
	case "providers":
		fixErr = fmt.Errorf("add and enable an API provider in settings")
	default:
		return domain.DiagnosticReport{}, domain.NewValidationError("id", "unsupported diagnostic item id: "+id)
	}

	if changed {
		if saveErr := a.Store.Save(cfg); saveErr != nil {
			return a.refreshDiagnostics(cfg), fmt.Errorf("save config after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnostics(cfg)
	return report, fixErr
}

// fixResultsDir falls back to the default directory when none is configured
// and creates it.
func fixResultsDir(cfg domain.Config) (domain.Config, bool, error) {
	changed := false
	dir := cfg.ResultsDirectory()
	if dir == "" {
		cfg.DefaultDirectory = config.DefaultConfig().DefaultDirectory
		dir = cfg.DefaultDirectory
		changed = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cfg, changed, fmt.Errorf("create results directory %s: %w", dir, err)
	}
	return cfg, changed, nil
}
