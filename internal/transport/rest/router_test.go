package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glossary-review/internal/domain"
	"glossary-review/internal/results"
	"glossary-review/internal/transport/middleware"
)

// fakeBackend answers every call from optional function fields.
type fakeBackend struct {
	status       func(since int64) domain.JobStatus
	start        func(rounds int) (domain.StartResult, error)
	startTask    func(rounds int, task domain.TaskConfig) (domain.StartResult, error)
	stopCalls    int
	config       domain.Config
	saveConfig   func(domain.ConfigUpdate) (domain.Config, error)
	prompts      domain.Prompts
	savedPrompts *domain.Prompts
	testConn     func([]domain.Provider) (domain.ConnectionReport, error)
	testPrompt   func(domain.PromptTest) (domain.PromptTestResult, error)
	saveTask     func(domain.TaskConfig) (domain.TaskConfig, error)
	saveTaskN    int
	results      []string
	read         func(string) ([]results.Record, error)
	imported     map[string]string
	runs         []domain.RunRecord
	runsLimit    int
	update       domain.UpdateCheck
	updateErr    error
	fix          func(string) (domain.DiagnosticReport, error)
}

func (f *fakeBackend) GetStatus(since int64) domain.JobStatus {
	if f.status != nil {
		return f.status(since)
	}
	return domain.JobStatus{State: domain.JobStateIdle}
}

func (f *fakeBackend) StartJob(rounds int) (domain.StartResult, error) {
	if f.start != nil {
		return f.start(rounds)
	}
	return domain.StartResult{Status: "success", JobID: "job-1"}, nil
}

func (f *fakeBackend) StartTask(rounds int, task domain.TaskConfig) (domain.StartResult, error) {
	if f.startTask != nil {
		return f.startTask(rounds, task)
	}
	return domain.StartResult{Status: "success", JobID: "job-1"}, nil
}

func (f *fakeBackend) StopJob() domain.StartResult {
	f.stopCalls++
	return domain.StartResult{Status: "success", Message: "Stop signal sent"}
}

func (f *fakeBackend) GetConfig() (domain.Config, error) { return f.config, nil }

func (f *fakeBackend) SaveConfig(update domain.ConfigUpdate) (domain.Config, error) {
	if f.saveConfig != nil {
		return f.saveConfig(update)
	}
	return f.config, nil
}

func (f *fakeBackend) GetPrompts() (domain.Prompts, error) { return f.prompts, nil }

func (f *fakeBackend) SavePrompts(prompts domain.Prompts) error {
	f.savedPrompts = &prompts
	return nil
}

func (f *fakeBackend) TestConnection(providers []domain.Provider) (domain.ConnectionReport, error) {
	if f.testConn != nil {
		return f.testConn(providers)
	}
	return domain.ConnectionReport{Status: "success"}, nil
}

func (f *fakeBackend) TestPrompt(req domain.PromptTest) (domain.PromptTestResult, error) {
	if f.testPrompt != nil {
		return f.testPrompt(req)
	}
	return domain.PromptTestResult{}, nil
}

func (f *fakeBackend) CheckFolder(path string) domain.FolderCheck {
	if path == "/ok" {
		return domain.FolderCheck{Valid: true}
	}
	return domain.FolderCheck{Valid: false, Error: "Path does not exist"}
}

func (f *fakeBackend) SaveTaskConfig(task domain.TaskConfig) (domain.TaskConfig, error) {
	f.saveTaskN++
	if f.saveTask != nil {
		return f.saveTask(task)
	}
	return task, nil
}

func (f *fakeBackend) ListResults() ([]string, error) { return f.results, nil }

func (f *fakeBackend) ReadResult(name string) ([]results.Record, error) {
	if f.read != nil {
		return f.read(name)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBackend) ImportResult(name string, content string) (string, error) {
	if !strings.HasSuffix(name, ".json") {
		return "", domain.NewValidationError("file", "Invalid file type. Only .json files allowed.")
	}
	if f.imported == nil {
		f.imported = map[string]string{}
	}
	f.imported[name] = content
	return name, nil
}

func (f *fakeBackend) ListRuns(limit int) ([]domain.RunRecord, error) {
	f.runsLimit = limit
	return f.runs, nil
}

func (f *fakeBackend) Version() string { return "1.2.3" }

func (f *fakeBackend) CheckUpdate() (domain.UpdateCheck, error) { return f.update, f.updateErr }

func (f *fakeBackend) GetDiagnostics() domain.DiagnosticReport {
	return domain.DiagnosticReport{Items: []domain.DiagnosticItem{{ID: "providers"}}}
}

func (f *fakeBackend) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	return f.GetDiagnostics(), nil
}

func (f *fakeBackend) FixDiagnostic(id string) (domain.DiagnosticReport, error) {
	if f.fix != nil {
		return f.fix(id)
	}
	return f.GetDiagnostics(), nil
}

func newTestRouter(backend *fakeBackend) http.Handler {
	return NewRouter(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestRouter(&fakeBackend{}), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "1.2.3", decode[map[string]string](t, rec)["version"])
}

func TestStatus_PassesSince(t *testing.T) {
	var got int64 = -1
	backend := &fakeBackend{status: func(since int64) domain.JobStatus {
		got = since
		return domain.JobStatus{Running: true, State: domain.JobStateRunning, LastSeq: 9}
	}}
	h := newTestRouter(backend)

	rec := do(t, h, http.MethodGet, "/api/status?since=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), got)
	status := decode[domain.JobStatus](t, rec)
	assert.True(t, status.Running)
	assert.Equal(t, int64(9), status.LastSeq)

	rec = do(t, h, http.MethodGet, "/api/status?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStart_DefaultsToOneRound(t *testing.T) {
	rounds := 0
	backend := &fakeBackend{start: func(n int) (domain.StartResult, error) {
		rounds = n
		return domain.StartResult{Status: "success", Message: "Task started", JobID: "job-7"}, nil
	}}

	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/control/start", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, rounds)
	assert.Equal(t, "job-7", decode[domain.StartResult](t, rec).JobID)
}

func TestStart_PassesTaskToBackend(t *testing.T) {
	var (
		gotRounds int
		gotTask   domain.TaskConfig
	)
	backend := &fakeBackend{
		start: func(int) (domain.StartResult, error) {
			t.Fatal("StartJob called for a start with a directory")
			return domain.StartResult{}, nil
		},
		startTask: func(rounds int, task domain.TaskConfig) (domain.StartResult, error) {
			gotRounds, gotTask = rounds, task
			return domain.StartResult{Status: "success", JobID: "job-2"}, nil
		},
	}

	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/control/start",
		map[string]any{"rounds": 3, "directory": " /ok ", "context": "novel"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, gotRounds)
	assert.Equal(t, domain.TaskConfig{Directory: "/ok", Context: "novel"}, gotTask)
	assert.Equal(t, "job-2", decode[domain.StartResult](t, rec).JobID)
	assert.Zero(t, backend.saveTaskN)
}

func TestStart_ConflictLeavesTaskUnsaved(t *testing.T) {
	backend := &fakeBackend{startTask: func(int, domain.TaskConfig) (domain.StartResult, error) {
		return domain.StartResult{Status: "error", Message: "Task is already running"}, domain.ErrAlreadyRunning
	}}

	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/control/start",
		map[string]any{"rounds": 1, "directory": "/other", "context": "new background"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Task is already running", decode[domain.StartResult](t, rec).Message)
	assert.Zero(t, backend.saveTaskN)
}

func TestStart_ErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already running", domain.ErrAlreadyRunning, http.StatusConflict},
		{"bad rounds", domain.NewValidationError("rounds", "must be between 1 and 10"), http.StatusBadRequest},
		{"no task", fmt.Errorf("no task directory saved: %w", domain.ErrNoConfig), http.StatusBadRequest},
		{"no providers", domain.ErrNoProviders, http.StatusBadRequest},
		{"io", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{start: func(int) (domain.StartResult, error) {
				return domain.StartResult{Status: "error", Message: tt.err.Error()}, tt.err
			}}
			rec := do(t, newTestRouter(backend), http.MethodPost, "/api/control/start", map[string]int{"rounds": 2})

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "error", decode[domain.StartResult](t, rec).Status)
		})
	}
}

func TestStop(t *testing.T) {
	backend := &fakeBackend{}
	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/control/stop", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, backend.stopCalls)
}

func TestConfig_SaveValidationError(t *testing.T) {
	backend := &fakeBackend{saveConfig: func(update domain.ConfigUpdate) (domain.Config, error) {
		require.NotNil(t, update.MaxWorkers)
		return domain.Config{}, domain.NewValidationError("MAX_WORKERS", "must be at least 1")
	}}

	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/config", map[string]int{"MAX_WORKERS": 0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be at least 1", decode[map[string]string](t, rec)["message"])
}

func TestConfig_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	newTestRouter(&fakeBackend{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrompts_GetAndSave(t *testing.T) {
	backend := &fakeBackend{prompts: domain.Prompts{BatchReview: "review {term}"}}
	h := newTestRouter(backend)

	rec := do(t, h, http.MethodGet, "/api/prompts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "review {term}", decode[domain.Prompts](t, rec).BatchReview)

	rec = do(t, h, http.MethodPost, "/api/prompts", domain.Prompts{BatchReview: "new"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, backend.savedPrompts)
	assert.Equal(t, "new", backend.savedPrompts.BatchReview)
}

func TestTestConnection_NoProvidersUsesSaved(t *testing.T) {
	var got []domain.Provider
	called := false
	backend := &fakeBackend{testConn: func(p []domain.Provider) (domain.ConnectionReport, error) {
		called = true
		got = p
		return domain.ConnectionReport{Status: "error", Message: "No API providers configured"}, nil
	}}

	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/test-connection", map[string]any{})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.Nil(t, got)
	assert.Equal(t, "No API providers configured", decode[domain.ConnectionReport](t, rec).Message)
}

func TestTestPrompt_MissingTerm(t *testing.T) {
	backend := &fakeBackend{testPrompt: func(domain.PromptTest) (domain.PromptTestResult, error) {
		return domain.PromptTestResult{}, domain.NewValidationError("korean_term", "term and translation are required")
	}}

	rec := do(t, newTestRouter(backend), http.MethodPost, "/api/test-prompt", domain.PromptTest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckFolder(t *testing.T) {
	h := newTestRouter(&fakeBackend{})

	rec := do(t, h, http.MethodPost, "/api/check-folder", map[string]string{"path": "/ok"})
	assert.True(t, decode[domain.FolderCheck](t, rec).Valid)

	rec = do(t, h, http.MethodPost, "/api/check-folder", map[string]string{"path": "/missing"})
	check := decode[domain.FolderCheck](t, rec)
	assert.False(t, check.Valid)
	assert.Equal(t, "Path does not exist", check.Error)
}

func TestResults_ListAndContent(t *testing.T) {
	backend := &fakeBackend{
		read: func(name string) ([]results.Record, error) {
			if name != "modified.json" {
				return nil, domain.ErrNotFound
			}
			return []results.Record{{Term: "시트", Round: 1}}, nil
		},
	}
	h := newTestRouter(backend)

	rec := do(t, h, http.MethodGet, "/api/results/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/results/content?filename=modified.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]results.Record](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "시트", records[0].Term)

	rec = do(t, h, http.MethodGet, "/api/results/content?filename=gone.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/results/content", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResults_Upload(t *testing.T) {
	upload := func(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
		t.Helper()
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		if filename != "" {
			part, err := mw.CreateFormFile("file", filename)
			require.NoError(t, err)
			_, err = part.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/results/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	backend := &fakeBackend{}
	h := newTestRouter(backend)

	rec := upload(t, h, "old.json", `[]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old.json", decode[uploadResponse](t, rec).Filename)
	assert.Equal(t, `[]`, backend.imported["old.json"])

	rec = upload(t, h, "notes.txt", "hi")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file type. Only .json files allowed.", decode[map[string]string](t, rec)["message"])

	rec = upload(t, h, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file part", decode[map[string]string](t, rec)["message"])
}

func TestRuns_Limit(t *testing.T) {
	backend := &fakeBackend{runs: []domain.RunRecord{{ID: "r1", Outcome: domain.JobOutcomeCompleted}}}
	h := newTestRouter(backend)

	rec := do(t, h, http.MethodGet, "/api/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, backend.runsLimit)
	assert.Equal(t, "r1", decode[[]domain.RunRecord](t, rec)[0].ID)

	rec = do(t, h, http.MethodGet, "/api/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckUpdate_ErrorMeansNoUpdate(t *testing.T) {
	backend := &fakeBackend{updateErr: fmt.Errorf("rate limited")}

	rec := do(t, newTestRouter(backend), http.MethodGet, "/api/check-update", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.UpdateCheck](t, rec).IsAvailable)
}

func TestUnknownMethod(t *testing.T) {
	rec := do(t, newTestRouter(&fakeBackend{}), http.MethodDelete, "/api/config", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDiagnostics_Fix(t *testing.T) {
	backend := &fakeBackend{fix: func(id string) (domain.DiagnosticReport, error) {
		switch id {
		case "results_dir":
			return domain.DiagnosticReport{}, nil
		case "providers":
			return domain.DiagnosticReport{HasFailures: true}, fmt.Errorf("add and enable an API provider in settings")
		default:
			return domain.DiagnosticReport{}, domain.NewValidationError("id", "unsupported diagnostic item id: "+id)
		}
	}}
	h := newTestRouter(backend)

	rec := do(t, h, http.MethodPost, "/api/diagnostics/fix", map[string]string{"id": "results_dir"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode[fixDiagnosticResponse](t, rec).Status)

	rec = do(t, h, http.MethodPost, "/api/diagnostics/fix", map[string]string{"id": "providers"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[fixDiagnosticResponse](t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.True(t, resp.Report.HasFailures)

	rec = do(t, h, http.MethodPost, "/api/diagnostics/fix", map[string]string{"id": "model_path"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/diagnostics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.DiagnosticReport](t, rec).Items, 1)
}
