package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// JobState tracks the lifecycle of the single review job.
type JobState string

const (
	JobStateIdle     JobState = "idle"
	JobStateRunning  JobState = "running"
	JobStateStopping JobState = "stopping"
)

// JobOutcome records how a finished job ended.
type JobOutcome string

const (
	JobOutcomeCompleted JobOutcome = "completed"
	JobOutcomeStopped   JobOutcome = "stopped"
	JobOutcomeFailed    JobOutcome = "failed"
)

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID        string    `json:"id"`
	State     JobState  `json:"state"`
	Round     int       `json:"round"`
	Rounds    int       `json:"rounds"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Provider is one configured LLM endpoint, credential and model.
type Provider struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	Enabled bool   `json:"enabled"`
}

// ProviderKey is the identity tuple of a provider.
type ProviderKey struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Key returns the provider identity.
func (p Provider) Key() ProviderKey {
	return ProviderKey{BaseURL: p.BaseURL, APIKey: p.APIKey, Model: p.Model}
}

// MaskedKey hides all but the first six characters of the API key.
func (p Provider) MaskedKey() string {
	runes := []rune(p.APIKey)
	if len(runes) <= 6 {
		return p.APIKey
	}
	return string(runes[:6]) + "..."
}

// UnmarshalJSON treats a missing "enabled" flag as enabled.
func (p *Provider) UnmarshalJSON(data []byte) error {
	type plain Provider
	decoded := plain{Enabled: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Provider(decoded)
	return nil
}

// Prompts holds user-editable prompt text.
type Prompts struct {
	BatchReview string `json:"batch_review"`
}

// Config is the user configuration persisted in cfg.json.
type Config struct {
	Providers         []Provider `json:"providers"`
	MaxWorkers        int        `json:"MAX_WORKERS"`
	BatchSize         int        `json:"BATCH_SIZE"`
	ConnectTimeout    float64    `json:"connect_timeout,omitempty"`
	DefaultDirectory  string     `json:"default_directory,omitempty"`
	LastTaskDirectory string     `json:"last_task_directory,omitempty"`
	LastTaskContext   string     `json:"last_task_context,omitempty"`
	ResumePartial     bool       `json:"resume_partial,omitempty"`
	Prompts           Prompts    `json:"prompts"`

	// Legacy single-provider fields. APIKey may hold several newline-separated keys.
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// EnabledProviders returns the providers eligible for selection, in configured order.
func (c Config) EnabledProviders() []Provider {
	out := make([]Provider, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// ResultsDirectory returns the directory that holds result files.
func (c Config) ResultsDirectory() string {
	if dir := strings.TrimSpace(c.LastTaskDirectory); dir != "" {
		return dir
	}
	return strings.TrimSpace(c.DefaultDirectory)
}

// WorkItem is one glossary term queued for review.
type WorkItem struct {
	Term                string `json:"term"`
	OriginalTranslation string `json:"original_translation"`
	Context             string `json:"context"`
	Frequency           int    `json:"frequency"`
	Category            string `json:"category,omitempty"`
}

// Judgment is the verdict for one work item in one round.
type Judgment struct {
	Term                   string `json:"term"`
	OriginalTranslation    string `json:"original_translation"`
	Round                  int    `json:"round"`
	Emoji                  string `json:"emoji"`
	RecommendedTranslation string `json:"recommended_translation"`
	ShouldDelete           bool   `json:"should_delete"`
	DeletionReason         string `json:"deletion_reason,omitempty"`
	Justification          string `json:"justification"`
	OriginalCategory       string `json:"original_category,omitempty"`
	SuggestedCategory      string `json:"suggested_category,omitempty"`
	Failed                 bool   `json:"failed,omitempty"`
}

// ErrorEmoji marks a judgment that could not be obtained from any provider.
const ErrorEmoji = "⛔"

// Progress reports how far the current job has advanced.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// NewProgress builds a progress value with a clamped percentage.
func NewProgress(current, total int, message string) Progress {
	percent := 0
	if total > 0 {
		percent = 100 * current / total
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return Progress{Current: current, Total: total, Percent: percent, Message: message}
}

// JobStatus is the polling snapshot of the review job.
type JobStatus struct {
	Running  bool     `json:"running"`
	State    JobState `json:"state"`
	JobID    string   `json:"job_id,omitempty"`
	Round    int      `json:"round"`
	Rounds   int      `json:"rounds"`
	Progress Progress `json:"progress"`
	Logs     []string `json:"logs"`
	LastSeq  int64    `json:"last_seq"`
}

// TaskConfig names the work source for the next job.
type TaskConfig struct {
	Directory string `json:"directory"`
	Context   string `json:"context"`
}

// StartResult is the response of a start request.
type StartResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// PromptTest is a single-term dry run of the review prompt.
type PromptTest struct {
	Term         string `json:"korean_term"`
	Translation  string `json:"chinese_translation"`
	Context      string `json:"context"`
	CustomPrompt string `json:"custom_prompt"`
}

// RunRecord is one entry in the run ledger.
type RunRecord struct {
	ID              string     `json:"id"`
	Directory       string     `json:"directory"`
	RoundsPlanned   int        `json:"rounds_planned"`
	RoundsCompleted int        `json:"rounds_completed"`
	Items           int        `json:"items"`
	Outcome         JobOutcome `json:"outcome,omitempty"`
	Message         string     `json:"message,omitempty"`
	ResultFile      string     `json:"result_file,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// PromptTestResult is the outcome of a prompt dry run: a judgment or an error.
type PromptTestResult struct {
	Result  *Judgment `json:"result,omitempty"`
	Error   string    `json:"error,omitempty"`
	Details string    `json:"details,omitempty"`
}

// ConfigUpdate is a partial config change; nil fields keep their saved value.
type ConfigUpdate struct {
	Providers        *[]Provider `json:"providers,omitempty"`
	MaxWorkers       *int        `json:"MAX_WORKERS,omitempty"`
	BatchSize        *int        `json:"BATCH_SIZE,omitempty"`
	ConnectTimeout   *float64    `json:"connect_timeout,omitempty"`
	DefaultDirectory *string     `json:"default_directory,omitempty"`
	ResumePartial    *bool       `json:"resume_partial,omitempty"`
}
