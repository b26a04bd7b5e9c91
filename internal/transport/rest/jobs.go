package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"glossary-review/internal/domain"
)

// JobHandler serves the job lifecycle endpoints.
type JobHandler struct {
	backend Backend
	log     *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(backend Backend, logger *slog.Logger) *JobHandler {
	return &JobHandler{backend: backend, log: logger.With("handler", "jobs")}
}

type startRequest struct {
	Rounds    *int   `json:"rounds"`
	Directory string `json:"directory"`
	Context   string `json:"context"`
}

// Status returns the job snapshot with log lines after ?since=.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	writeJSON(w, http.StatusOK, h.backend.GetStatus(since))
}

// Start launches a job. Rounds default to 1; a directory in the body runs
// the job on that task and saves it as the default once the job starts.
func (h *JobHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	rounds := 1
	if req.Rounds != nil {
		rounds = *req.Rounds
	}

	var (
		result domain.StartResult
		err    error
	)
	if dir := strings.TrimSpace(req.Directory); dir != "" {
		result, err = h.backend.StartTask(rounds, domain.TaskConfig{Directory: dir, Context: req.Context})
	} else {
		result, err = h.backend.StartJob(rounds)
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.ErrorContext(r.Context(), "start job", slog.String("error", err.Error()))
		}
		writeJSON(w, status, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stop requests the running job to stop.
func (h *JobHandler) Stop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.StopJob())
}
