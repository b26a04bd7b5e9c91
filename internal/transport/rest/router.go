package rest

import (
	"log/slog"
	"net/http"

	"glossary-review/internal/domain"
	"glossary-review/internal/results"
	"glossary-review/internal/transport/middleware"
)

// Backend is the control surface served over HTTP. *bootstrap.App implements it.
type Backend interface {
	GetStatus(since int64) domain.JobStatus
	StartJob(rounds int) (domain.StartResult, error)
	StartTask(rounds int, task domain.TaskConfig) (domain.StartResult, error)
	StopJob() domain.StartResult
	GetConfig() (domain.Config, error)
	SaveConfig(update domain.ConfigUpdate) (domain.Config, error)
	GetPrompts() (domain.Prompts, error)
	SavePrompts(prompts domain.Prompts) error
	TestConnection(providers []domain.Provider) (domain.ConnectionReport, error)
	TestPrompt(req domain.PromptTest) (domain.PromptTestResult, error)
	CheckFolder(path string) domain.FolderCheck
	SaveTaskConfig(task domain.TaskConfig) (domain.TaskConfig, error)
	ListResults() ([]string, error)
	ReadResult(name string) ([]results.Record, error)
	ImportResult(name string, content string) (string, error)
	ListRuns(limit int) ([]domain.RunRecord, error)
	Version() string
	CheckUpdate() (domain.UpdateCheck, error)
	GetDiagnostics() domain.DiagnosticReport
	RefreshDiagnostics() (domain.DiagnosticReport, error)
	FixDiagnostic(itemID string) (domain.DiagnosticReport, error)
}

// NewRouter registers the API routes and wraps them in the standard middleware.
func NewRouter(backend Backend, logger *slog.Logger) http.Handler {
	jobs := NewJobHandler(backend, logger)
	settings := NewSettingsHandler(backend, logger)
	res := NewResultsHandler(backend, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": backend.Version()})
	})

	mux.HandleFunc("GET /api/status", jobs.Status)
	mux.HandleFunc("POST /api/control/start", jobs.Start)
	mux.HandleFunc("POST /api/control/stop", jobs.Stop)

	mux.HandleFunc("GET /api/config", settings.GetConfig)
	mux.HandleFunc("POST /api/config", settings.SaveConfig)
	mux.HandleFunc("GET /api/prompts", settings.GetPrompts)
	mux.HandleFunc("POST /api/prompts", settings.SavePrompts)
	mux.HandleFunc("POST /api/test-connection", settings.TestConnection)
	mux.HandleFunc("POST /api/test-prompt", settings.TestPrompt)
	mux.HandleFunc("POST /api/check-folder", settings.CheckFolder)
	mux.HandleFunc("POST /api/task/config", settings.SaveTaskConfig)
	mux.HandleFunc("GET /api/version", settings.Version)
	mux.HandleFunc("GET /api/check-update", settings.CheckUpdate)
	mux.HandleFunc("GET /api/diagnostics", settings.Diagnostics)
	mux.HandleFunc("POST /api/diagnostics/refresh", settings.RefreshDiagnostics)
	mux.HandleFunc("POST /api/diagnostics/fix", settings.FixDiagnostic)

	mux.HandleFunc("GET /api/results/list", res.List)
	mux.HandleFunc("GET /api/results/content", res.Content)
	mux.HandleFunc("POST /api/results/upload", res.Upload)
	mux.HandleFunc("GET /api/runs", res.Runs)

	return middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	)(mux)
}
