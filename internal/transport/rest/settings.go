package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"glossary-review/internal/domain"
)

// SettingsHandler serves configuration, prompt and task endpoints.
type SettingsHandler struct {
	backend Backend
	log     *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(backend Backend, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{backend: backend, log: logger.With("handler", "settings")}
}

type successResponse struct {
	Status string `json:"status"`
}

var success = successResponse{Status: "success"}

type testConnectionRequest struct {
	Providers []domain.Provider `json:"providers"`
}

type checkFolderRequest struct {
	Path string `json:"path"`
}

type fixDiagnosticRequest struct {
	ID string `json:"id"`
}

type fixDiagnosticResponse struct {
	Status  string                  `json:"status"`
	Message string                  `json:"message,omitempty"`
	Report  domain.DiagnosticReport `json:"report"`
}

func (h *SettingsHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.backend.GetConfig()
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *SettingsHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var update domain.ConfigUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	if _, err := h.backend.SaveConfig(update); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

func (h *SettingsHandler) GetPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.backend.GetPrompts()
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *SettingsHandler) SavePrompts(w http.ResponseWriter, r *http.Request) {
	var prompts domain.Prompts
	if err := decodeJSON(w, r, &prompts); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	if err := h.backend.SavePrompts(prompts); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

// TestConnection checks the providers in the body, or the saved ones when
// the body names none.
func (h *SettingsHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	report, err := h.backend.TestConnection(req.Providers)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *SettingsHandler) TestPrompt(w http.ResponseWriter, r *http.Request) {
	var req domain.PromptTest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	result, err := h.backend.TestPrompt(req)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SettingsHandler) CheckFolder(w http.ResponseWriter, r *http.Request) {
	var req checkFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.backend.CheckFolder(req.Path))
}

func (h *SettingsHandler) SaveTaskConfig(w http.ResponseWriter, r *http.Request) {
	var task domain.TaskConfig
	if err := decodeJSON(w, r, &task); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	if _, err := h.backend.SaveTaskConfig(task); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, success)
}

func (h *SettingsHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.backend.Version()})
}

func (h *SettingsHandler) CheckUpdate(w http.ResponseWriter, r *http.Request) {
	check, err := h.backend.CheckUpdate()
	if err != nil {
		h.log.WarnContext(r.Context(), "check update", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, domain.UpdateCheck{})
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *SettingsHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backend.GetDiagnostics())
}

func (h *SettingsHandler) RefreshDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, err := h.backend.RefreshDiagnostics()
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// FixDiagnostic runs the remediation for one item. A failed fix still
// returns the refreshed report.
func (h *SettingsHandler) FixDiagnostic(w http.ResponseWriter, r *http.Request) {
	var req fixDiagnosticRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	report, err := h.backend.FixDiagnostic(req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeDomainError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, fixDiagnosticResponse{Status: "error", Message: err.Error(), Report: report})
		return
	}
	writeJSON(w, http.StatusOK, fixDiagnosticResponse{Status: "success", Report: report})
}
