package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"glossary-review/internal/domain"
	"glossary-review/internal/glossary"
	"glossary-review/internal/provider"
	"glossary-review/internal/results"
	"glossary-review/internal/review"
)

// MaxRounds is the largest number of rounds a single job may run.
const MaxRounds = 10

// ConfigSource loads the saved user configuration.
type ConfigSource interface {
	Load() (domain.Config, error)
}

// WorkSource turns a task directory into work items.
type WorkSource interface {
	Load(dir string) (*glossary.Sheet, error)
}

// ResultStore persists judgments for the running job.
type ResultStore interface {
	Activate(dir string, resume bool) ([]results.Record, error)
	Append(judgments []domain.Judgment) error
	Records() ([]results.Record, error)
	ActivePath() string
}

// OutputWriter produces the final spreadsheets once a job ends.
type OutputWriter interface {
	WriteOutputs(dir string, sheet *glossary.Sheet, records []results.Record) ([]string, error)
}

// RunLedger records job runs.
type RunLedger interface {
	Begin(ctx context.Context, run domain.RunRecord) error
	Finish(ctx context.Context, run domain.RunRecord) error
}

// Options carries the optional collaborators of a Controller.
type Options struct {
	Caller      provider.Caller
	CallTimeout time.Duration
	MaxTokens   int
	Outputs     OutputWriter
	Ledger      RunLedger
	Logger      *slog.Logger
	NewID       func() string

	// OnChange is called after every log line and state change.
	OnChange func()
}

// Controller runs review jobs one at a time and exposes their status.
type Controller struct {
	config  ConfigSource
	work    WorkSource
	store   ResultStore
	opts    Options
	log     *slog.Logger
	manager *Manager
	logs    *LogBuffer
	tracker *Tracker

	startMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// run is the state owned by one job's supervising goroutine.
type run struct {
	id         string
	dir        string
	sheet      *glossary.Sheet
	cfg        domain.Config
	startRound int
	rounds     int
	history    review.History
	record     domain.RunRecord
}

// NewController creates an idle controller.
func NewController(cfg ConfigSource, work WorkSource, store ResultStore, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Caller == nil {
		opts.Caller = provider.NewHTTPCaller(nil)
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Controller{
		config:  cfg,
		work:    work,
		store:   store,
		opts:    opts,
		log:     opts.Logger.With("component", "job_controller"),
		manager: NewManager(),
		logs:    NewLogBuffer(),
		tracker: NewTracker(),
	}
}

// Start validates the saved task and launches a job of the given number of
// rounds. It returns the new job ID.
func (c *Controller) Start(rounds int) (string, error) {
	return c.StartTask(rounds, nil)
}

// StartTask is Start with task overriding the saved task folder and
// background for this job only. The saved config is not modified.
func (c *Controller) StartTask(rounds int, task *domain.TaskConfig) (string, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.manager.IsRunning() {
		return "", domain.ErrAlreadyRunning
	}
	if rounds < 1 || rounds > MaxRounds {
		return "", domain.NewValidationError("rounds", fmt.Sprintf("must be between 1 and %d", MaxRounds))
	}

	cfg, err := c.config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if task != nil {
		cfg.LastTaskDirectory = task.Directory
		cfg.LastTaskContext = task.Context
	}
	dir := strings.TrimSpace(cfg.LastTaskDirectory)
	if dir == "" {
		return "", fmt.Errorf("no task directory saved: %w", domain.ErrNoConfig)
	}
	if len(cfg.EnabledProviders()) == 0 {
		return "", domain.ErrNoProviders
	}

	sheet, err := c.work.Load(dir)
	if err != nil {
		return "", err
	}
	if len(sheet.Items) == 0 {
		return "", domain.NewValidationError("glossary", "no terms found in "+filepath.Base(sheet.Path))
	}

	existing, err := c.store.Activate(dir, cfg.ResumePartial)
	if err != nil {
		return "", err
	}

	r := &run{
		id:         c.opts.NewID(),
		dir:        dir,
		sheet:      sheet,
		cfg:        cfg,
		startRound: 1,
		rounds:     rounds,
		history:    review.History{},
	}
	for _, rec := range existing {
		r.history.Add(rec.Judgment())
		if rec.Round >= r.startRound {
			r.startRound = rec.Round + 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	if err := c.manager.Start(r.id, rounds); err != nil {
		cancel()
		return "", err
	}

	c.logs.Reset()
	c.tracker.Reset(len(sheet.Items)*rounds, "Starting")
	c.logf("Task started: %d terms, %d rounds, %d providers", len(sheet.Items), rounds, len(cfg.EnabledProviders()))
	if len(existing) > 0 {
		c.logf("Resuming from %d saved judgments; continuing at round %d", len(existing), r.startRound)
	}

	r.record = domain.RunRecord{
		ID:            r.id,
		Directory:     dir,
		RoundsPlanned: rounds,
		Items:         len(sheet.Items),
		ResultFile:    c.store.ActivePath(),
		StartedAt:     time.Now().UTC(),
	}
	if c.opts.Ledger != nil {
		if err := c.opts.Ledger.Begin(context.Background(), r.record); err != nil {
			c.log.Warn("record run start failed", "job_id", r.id, "error", err)
		}
	}

	go c.supervise(ctx, r, done)
	return r.id, nil
}

// Stop asks the running job to finish after its in-flight calls. Calling it
// while idle or already stopping does nothing.
func (c *Controller) Stop() {
	if !c.manager.RequestStop() {
		return
	}
	c.logf("Stop requested, waiting for in-flight requests to finish")

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status returns a snapshot with the log lines after seq.
func (c *Controller) Status(since int64) domain.JobStatus {
	job := c.manager.Current()
	last := c.logs.LastSeq()
	entries := c.logs.Since(since)
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Seq > last {
			break
		}
		lines = append(lines, entry.Line)
	}
	return domain.JobStatus{
		Running:  job.State != domain.JobStateIdle,
		State:    job.State,
		JobID:    job.ID,
		Round:    job.Round,
		Rounds:   job.Rounds,
		Progress: c.tracker.Snapshot(),
		Logs:     lines,
		LastSeq:  last,
	}
}

// Wait blocks until the current job ends or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) supervise(ctx context.Context, r *run, done chan struct{}) {
	defer close(done)

	outcome, message, completed := c.runRounds(ctx, r)
	c.finish(r, outcome, message, completed)
}

// runRounds executes rounds in order until all are done, a stop is requested
// or the result store fails.
func (c *Controller) runRounds(ctx context.Context, r *run) (outcome domain.JobOutcome, message string, completed int) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error("review job panicked", "job_id", r.id, "panic", p)
			outcome = domain.JobOutcomeFailed
			message = fmt.Sprintf("Task failed: internal error: %v", p)
		}
	}()

	snapshot := r.cfg
	for i := 0; i < r.rounds; i++ {
		if ctx.Err() != nil {
			return domain.JobOutcomeStopped, "Task stopped by user", completed
		}

		round := r.startRound + i
		c.manager.SetRound(round)
		snapshot = c.snapshot(snapshot)
		pool := provider.NewPool(snapshot.EnabledProviders(), c.opts.Logger)
		executor := review.NewExecutor(pool, c.opts.Caller, review.Settings{
			MaxWorkers:  snapshot.MaxWorkers,
			BatchSize:   snapshot.BatchSize,
			CallTimeout: c.opts.CallTimeout,
			MaxTokens:   c.opts.MaxTokens,
			Prompt:      snapshot.Prompts.BatchReview,
			Background:  r.cfg.LastTaskContext,
		}, c.opts.Logger)

		label := fmt.Sprintf("Round %d (%d/%d)", round, i+1, r.rounds)
		c.tracker.SetMessage(label)
		c.logf("===== %s started: %d terms, %d workers, %d providers =====",
			label, len(r.sheet.Items), max(snapshot.MaxWorkers, 1), pool.Len())

		judgments := executor.RunRound(ctx, review.RoundRequest{
			Items:   r.sheet.Items,
			Round:   round,
			History: r.history,
		}, review.Hooks{
			OnLog: func(line string) { c.logf("%s", line) },
			OnJudgments: func(batch []domain.Judgment) {
				c.tracker.Advance(len(batch), label)
				c.changed()
			},
		})

		if err := c.store.Append(judgments); err != nil {
			return domain.JobOutcomeFailed, fmt.Sprintf("Task failed: %v", err), completed
		}
		r.history.Add(judgments...)

		if len(judgments) < len(r.sheet.Items) {
			c.logf("%s stopped early: %d/%d terms judged", label, len(judgments), len(r.sheet.Items))
			return domain.JobOutcomeStopped, "Task stopped by user", completed
		}
		completed++
		c.logf("===== %s finished: %d judgments saved =====", label, len(judgments))
	}
	return domain.JobOutcomeCompleted, "Task completed", completed
}

// snapshot reloads the config for the next round. The previous snapshot is
// kept when the file cannot be read or has no enabled providers.
func (c *Controller) snapshot(prev domain.Config) domain.Config {
	cfg, err := c.config.Load()
	if err != nil {
		c.log.Warn("reload config failed, keeping previous settings", "error", err)
		return prev
	}
	if len(cfg.EnabledProviders()) == 0 {
		c.logf("Warning: no enabled providers in saved config, keeping previous provider list")
		cfg.Providers = prev.Providers
	}
	return cfg
}

func (c *Controller) finish(r *run, outcome domain.JobOutcome, message string, completed int) {
	if outcome != domain.JobOutcomeFailed && c.opts.Outputs != nil {
		c.writeOutputs(r)
	}

	finished := time.Now().UTC()
	r.record.RoundsCompleted = completed
	r.record.Outcome = outcome
	r.record.Message = message
	r.record.FinishedAt = &finished
	if c.opts.Ledger != nil {
		if err := c.opts.Ledger.Finish(context.Background(), r.record); err != nil {
			c.log.Warn("record run finish failed", "job_id", r.id, "error", err)
		}
	}

	c.tracker.SetMessage(message)
	c.logf("%s", message)
	c.log.Info("review job finished", "job_id", r.id, "outcome", outcome, "rounds_completed", completed)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	if err := c.manager.Finish(); err != nil {
		c.log.Warn("finish job", "job_id", r.id, "error", err)
	}
	c.changed()
}

func (c *Controller) writeOutputs(r *run) {
	records, err := c.store.Records()
	if err != nil {
		c.logf("Warning: could not read results for output: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	written, err := c.opts.Outputs.WriteOutputs(r.dir, r.sheet, records)
	for _, path := range written {
		c.logf("Saved %s", filepath.Base(path))
	}
	if err != nil {
		c.logf("Warning: could not write outputs: %v", err)
	}
}

// logf appends one line to the job console and mirrors it to the process log.
func (c *Controller) logf(format string, args ...any) {
	entry := c.logs.Append(fmt.Sprintf(format, args...))
	c.log.Info(entry.Line, "job_id", c.manager.Current().ID, "seq", entry.Seq)
	c.changed()
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}
