package domain

import "time"

// DiagnosticStatus indicates whether a single startup check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one startup check result with optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates startup checks for UI and API responses.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// FolderCheck reports whether a directory can serve as a work source.
type FolderCheck struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ProviderTestStatus is the outcome of one connectivity check.
type ProviderTestStatus string

const (
	ProviderTestValid   ProviderTestStatus = "valid"
	ProviderTestInvalid ProviderTestStatus = "invalid"
)

// ProviderTestResult is one provider's connectivity check result.
type ProviderTestResult struct {
	Key     string             `json:"key"`
	Status  ProviderTestStatus `json:"status"`
	Message string             `json:"message"`
}

// ConnectionReport aggregates connection test results for a test-connection request.
type ConnectionReport struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Results []ProviderTestResult `json:"results"`
}
