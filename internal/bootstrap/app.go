package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"glossary-review/internal/config"
	"glossary-review/internal/diagnostics"
	"glossary-review/internal/domain"
	"glossary-review/internal/glossary"
	"glossary-review/internal/history"
	"glossary-review/internal/jobs"
	"glossary-review/internal/provider"
	"glossary-review/internal/results"
	"glossary-review/internal/review"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// RunLister reads the run ledger.
type RunLister interface {
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// App wires configuration, the job controller, result files and UI runtime callbacks.
type App struct {
	Runtime     config.Runtime
	Store       config.Store
	Jobs        *jobs.Controller
	Results     *results.Store
	Runs        RunLister
	Caller      provider.Caller
	Updates     *UpdateChecker
	Diagnostics domain.DiagnosticReport
	Handler     http.Handler

	log     *slog.Logger
	assets  fs.FS
	checker *diagnostics.Checker
	ledger  *history.Ledger

	mu         sync.Mutex
	runtimeCtx context.Context
	pushedSeq  int64

	pushMu sync.Mutex
	emit   func(ctx context.Context, event string, data ...interface{})
}

// New builds the application from runtime settings.
func New(rt config.Runtime, log *slog.Logger) (*App, error) {
	return NewWithAssets(rt, log, nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(rt config.Runtime, log *slog.Logger, assets fs.FS) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	store := config.NewJSONStore(rt.Paths.ConfigFile)
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		Runtime: rt,
		Store:   store,
		Caller:  provider.NewHTTPCaller(nil),
		Updates: NewUpdateChecker(rt.Update, Version),
		log:     log.With("component", "app"),
		assets:  assets,
		checker: diagnostics.NewChecker(),
		emit:    wailsruntime.EventsEmit,
	}
	a.Results = results.NewStore(a.resultsDir)
	a.log.Info("config loaded", "path", store.Path(), "providers", len(cfg.EnabledProviders()))

	opts := jobs.Options{
		Caller:      a.Caller,
		CallTimeout: rt.Provider.CallTimeout,
		MaxTokens:   rt.Provider.MaxTokens,
		Outputs:     glossary.NewWriter(),
		Logger:      log,
		OnChange:    a.pushStatus,
	}
	ledger, err := history.Open(rt.Paths.HistoryFile)
	if err != nil {
		a.log.Warn("run ledger unavailable", "path", rt.Paths.HistoryFile, "error", err)
	} else {
		a.ledger = ledger
		a.Runs = ledger
		opts.Ledger = ledger
	}

	a.Jobs = jobs.NewController(store, glossary.NewLoader(), a.Results, opts)
	a.Diagnostics = a.checker.Run(cfg)
	return a, nil
}

// Close releases the run ledger.
func (a *App) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{Handler: a.Handler}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	}

	return wails.Run(&options.App{
		Title:       "Glossary Review",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.Jobs.Stop()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads config and reruns the checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load config: %w", err)
	}
	return a.refreshDiagnostics(cfg), nil
}

// GetStatus returns the job snapshot with log lines after since.
func (a *App) GetStatus(since int64) domain.JobStatus {
	return a.Jobs.Status(since)
}

// StartJob launches a review job of the given number of rounds.
func (a *App) StartJob(rounds int) (domain.StartResult, error) {
	id, err := a.Jobs.Start(rounds)
	if err != nil {
		return domain.StartResult{Status: "error", Message: startErrorMessage(err)}, err
	}
	return domain.StartResult{Status: "success", Message: "Task started", JobID: id}, nil
}

// StartTask launches a job on the given task folder and background. The task
// is saved as the default for later jobs only once the job has started.
func (a *App) StartTask(rounds int, task domain.TaskConfig) (domain.StartResult, error) {
	task.Directory = strings.TrimSpace(task.Directory)
	if check := a.checker.CheckFolder(task.Directory); !check.Valid {
		err := domain.NewValidationError("directory", check.Error)
		return domain.StartResult{Status: "error", Message: startErrorMessage(err)}, err
	}

	id, err := a.Jobs.StartTask(rounds, &task)
	if err != nil {
		return domain.StartResult{Status: "error", Message: startErrorMessage(err)}, err
	}

	cfg, err := a.Store.Load()
	if err == nil {
		cfg.LastTaskDirectory = task.Directory
		cfg.LastTaskContext = task.Context
		err = a.Store.Save(cfg)
	}
	if err != nil {
		a.log.Warn("save task config", "job_id", id, "error", err)
	} else {
		a.refreshDiagnostics(cfg)
	}
	return domain.StartResult{Status: "success", Message: "Task started", JobID: id}, nil
}

// StopJob asks the running job to stop. It succeeds when nothing is running.
func (a *App) StopJob() domain.StartResult {
	a.Jobs.Stop()
	return domain.StartResult{Status: "success", Message: "Stop signal sent"}
}

// GetConfig returns the saved user configuration.
func (a *App) GetConfig() (domain.Config, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig merges the given fields into the saved config.
func (a *App) SaveConfig(update domain.ConfigUpdate) (domain.Config, error) {
	if err := validateUpdate(update); err != nil {
		return domain.Config{}, err
	}
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.Config{}, fmt.Errorf("load config: %w", err)
	}

	if update.Providers != nil {
		cfg.Providers = *update.Providers
	}
	if update.MaxWorkers != nil {
		cfg.MaxWorkers = *update.MaxWorkers
	}
	if update.BatchSize != nil {
		cfg.BatchSize = *update.BatchSize
	}
	if update.ConnectTimeout != nil {
		cfg.ConnectTimeout = *update.ConnectTimeout
	}
	if update.DefaultDirectory != nil {
		cfg.DefaultDirectory = strings.TrimSpace(*update.DefaultDirectory)
	}
	if update.ResumePartial != nil {
		cfg.ResumePartial = *update.ResumePartial
	}

	if err := a.Store.Save(cfg); err != nil {
		return domain.Config{}, fmt.Errorf("save config: %w", err)
	}
	saved, err := a.Store.Load()
	if err != nil {
		return domain.Config{}, fmt.Errorf("load config: %w", err)
	}
	a.refreshDiagnostics(saved)
	return saved, nil
}

// TestConnection checks the given providers, or the saved ones when none are given.
func (a *App) TestConnection(providers []domain.Provider) (domain.ConnectionReport, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.ConnectionReport{}, fmt.Errorf("load config: %w", err)
	}
	if providers == nil {
		providers = cfg.Providers
	}

	timeout := a.Runtime.Provider.ConnectTimeout
	if cfg.ConnectTimeout > 0 {
		timeout = time.Duration(cfg.ConnectTimeout * float64(time.Second))
	}
	return provider.Test(context.Background(), a.Caller, providers, timeout, a.log), nil
}

// GetPrompts returns the effective prompt text.
func (a *App) GetPrompts() (domain.Prompts, error) {
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.Prompts{}, fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.Prompts.BatchReview) == "" {
		cfg.Prompts.BatchReview = config.DefaultBatchReviewPrompt
	}
	return cfg.Prompts, nil
}

// SavePrompts persists prompt text. An empty prompt restores the default.
func (a *App) SavePrompts(prompts domain.Prompts) error {
	cfg, err := a.Store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Prompts = prompts
	if err := a.Store.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// TestPrompt runs one term through the review prompt.
func (a *App) TestPrompt(req domain.PromptTest) (domain.PromptTestResult, error) {
	if strings.TrimSpace(req.Term) == "" || strings.TrimSpace(req.Translation) == "" {
		return domain.PromptTestResult{}, domain.NewValidationError("korean_term", "term and translation are required")
	}
	cfg, err := a.Store.Load()
	if err != nil {
		return domain.PromptTestResult{}, fmt.Errorf("load config: %w", err)
	}

	pool := provider.NewPool(cfg.EnabledProviders(), a.log)
	if pool.Len() == 0 {
		return domain.PromptTestResult{}, domain.ErrNoProviders
	}
	executor := review.NewExecutor(pool, a.Caller, review.Settings{
		CallTimeout: a.Runtime.Provider.CallTimeout,
		MaxTokens:   a.Runtime.Provider.MaxTokens,
		Prompt:      cfg.Prompts.BatchReview,
		Background:  cfg.LastTaskContext,
	}, a.log)

	item := domain.WorkItem{
		Term:                strings.TrimSpace(req.Term),
		OriginalTranslation: strings.TrimSpace(req.Translation),
		Context:             req.Context,
		Frequency:           1,
	}
	judgment, raw, err := executor.TestTerm(context.Background(), item, req.CustomPrompt)
	switch {
	case errors.Is(err, review.ErrUnparseable):
		return domain.PromptTestResult{Error: "Failed to parse AI response", Details: raw}, nil
	case err != nil:
		return domain.PromptTestResult{Error: "API call failed", Details: err.Error()}, nil
	}
	return domain.PromptTestResult{Result: &judgment}, nil
}

// PickFolder opens a native directory picker for the task folder.
func (a *App) PickFolder() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	defaultDir := ""
	if cfg, err := a.Store.Load(); err == nil {
		defaultDir = cfg.ResultsDirectory()
	}
	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select task folder",
		DefaultDirectory: defaultDir,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// CheckFolder reports whether path can serve as a task folder.
func (a *App) CheckFolder(path string) domain.FolderCheck {
	return a.checker.CheckFolder(path)
}

// SaveTaskConfig stores the task folder and background text used by the next job.
func (a *App) SaveTaskConfig(task domain.TaskConfig) (domain.TaskConfig, error) {
	task.Directory = strings.TrimSpace(task.Directory)
	if check := a.checker.CheckFolder(task.Directory); !check.Valid {
		return domain.TaskConfig{}, domain.NewValidationError("directory", check.Error)
	}

	cfg, err := a.Store.Load()
	if err != nil {
		return domain.TaskConfig{}, fmt.Errorf("load config: %w", err)
	}
	cfg.LastTaskDirectory = task.Directory
	cfg.LastTaskContext = task.Context
	if err := a.Store.Save(cfg); err != nil {
		return domain.TaskConfig{}, fmt.Errorf("save config: %w", err)
	}
	a.refreshDiagnostics(cfg)
	return task, nil
}

// ListResults returns the result files of the results directory.
func (a *App) ListResults() ([]string, error) {
	return a.Results.List()
}

// ReadResult returns the records of one result file.
func (a *App) ReadResult(name string) ([]results.Record, error) {
	return a.Results.Read(name)
}

// ImportResult copies an external JSON record set into the results directory.
func (a *App) ImportResult(name string, content string) (string, error) {
	return a.Results.Import(name, []byte(content))
}

// ListRuns returns up to limit ledger entries, newest first.
func (a *App) ListRuns(limit int) ([]domain.RunRecord, error) {
	if a.Runs == nil {
		return []domain.RunRecord{}, nil
	}
	return a.Runs.List(context.Background(), limit)
}

// Version returns the build version.
func (a *App) Version() string {
	return Version
}

// CheckUpdate queries the release feed for a newer version.
func (a *App) CheckUpdate() (domain.UpdateCheck, error) {
	return a.Updates.Check(context.Background())
}

// OpenResultsFolder opens the given path (or the results directory) in the file manager.
func (a *App) OpenResultsFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.resultsDir()
	}
	if target == "" {
		return fmt.Errorf("results path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve results path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// pushStatus emits the status with the log lines not yet pushed. Pushes are
// serialized so every log line goes out once and in order.
func (a *App) pushStatus() {
	a.pushMu.Lock()
	defer a.pushMu.Unlock()

	a.mu.Lock()
	ctx := a.runtimeCtx
	since := a.pushedSeq
	a.mu.Unlock()
	if ctx == nil {
		return
	}

	status := a.Jobs.Status(since)
	a.emit(ctx, "job:status", status)
	a.mu.Lock()
	if status.LastSeq > a.pushedSeq {
		a.pushedSeq = status.LastSeq
	}
	a.mu.Unlock()
}

func (a *App) refreshDiagnostics(cfg domain.Config) domain.DiagnosticReport {
	report := a.checker.Run(cfg)
	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

func (a *App) resultsDir() string {
	cfg, err := a.Store.Load()
	if err != nil {
		a.log.Warn("load config for results directory", "error", err)
		return ""
	}
	return cfg.ResultsDirectory()
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func validateUpdate(update domain.ConfigUpdate) error {
	verr := &domain.ValidationError{}
	if update.MaxWorkers != nil && *update.MaxWorkers < 1 {
		verr.Errors = append(verr.Errors, domain.FieldError{Field: "MAX_WORKERS", Message: "must be at least 1"})
	}
	if update.BatchSize != nil && *update.BatchSize < 1 {
		verr.Errors = append(verr.Errors, domain.FieldError{Field: "BATCH_SIZE", Message: "must be at least 1"})
	}
	if update.ConnectTimeout != nil && *update.ConnectTimeout <= 0 {
		verr.Errors = append(verr.Errors, domain.FieldError{Field: "connect_timeout", Message: "must be positive"})
	}
	if update.Providers != nil {
		for i, p := range *update.Providers {
			if strings.TrimSpace(p.APIKey) != "" && strings.TrimSpace(p.BaseURL) == "" {
				verr.Errors = append(verr.Errors, domain.FieldError{Field: fmt.Sprintf("providers[%d].base_url", i), Message: "is required"})
			}
		}
	}
	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// startErrorMessage renders start failures the way the UI shows them.
func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		return "Task is already running"
	case errors.Is(err, domain.ErrNoProviders):
		return "No enabled API providers configured"
	case errors.Is(err, domain.ErrNoConfig):
		return "Task not configured: select a folder with a glossary and reference text"
	default:
		return err.Error()
	}
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
