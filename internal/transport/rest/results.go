package rest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// ResultsHandler serves result files and the run ledger.
type ResultsHandler struct {
	backend Backend
	log     *slog.Logger
}

// NewResultsHandler creates a ResultsHandler.
func NewResultsHandler(backend Backend, logger *slog.Logger) *ResultsHandler {
	return &ResultsHandler{backend: backend, log: logger.With("handler", "results")}
}

type uploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.backend.ListResults()
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *ResultsHandler) Content(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("filename"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "Filename required")
		return
	}
	records, err := h.backend.ReadResult(name)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Upload stores a multipart "file" field as a result file.
func (h *ResultsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file part")
			return
		}
		writeError(w, http.StatusBadRequest, "Upload failed: "+err.Error())
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Upload failed: "+err.Error())
		return
	}

	name, err := h.backend.ImportResult(header.Filename, string(data))
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: "success", Filename: name})
}

// Runs lists ledger entries, newest first. ?limit= defaults to 50.
func (h *ResultsHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	runs, err := h.backend.ListRuns(limit)
	if err != nil {
		writeDomainError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
