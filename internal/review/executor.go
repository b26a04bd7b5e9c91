package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"glossary-review/internal/config"
	"glossary-review/internal/domain"
	"glossary-review/internal/provider"
)

const defaultCallTimeout = 300 * time.Second

// Settings is the per-round snapshot of tunables.
type Settings struct {
	MaxWorkers  int
	BatchSize   int
	CallTimeout time.Duration
	MaxTokens   int
	Prompt      string
	Background  string
}

// RoundRequest describes one pass over the work items.
type RoundRequest struct {
	Items   []domain.WorkItem
	Round   int
	History History
}

// Hooks receive progress from a running round. Both may be nil.
type Hooks struct {
	OnLog       func(line string)
	OnJudgments func(judgments []domain.Judgment)
}

// Executor runs rounds over a provider pool with a bounded worker pool.
type Executor struct {
	pool     *provider.Pool
	caller   provider.Caller
	settings Settings
	log      *slog.Logger
}

// NewExecutor creates an executor bound to one pool and settings snapshot.
func NewExecutor(pool *provider.Pool, caller provider.Caller, settings Settings, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if settings.MaxWorkers < 1 {
		settings.MaxWorkers = 1
	}
	if settings.BatchSize < 1 {
		settings.BatchSize = 1
	}
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = defaultCallTimeout
	}
	if strings.TrimSpace(settings.Prompt) == "" {
		settings.Prompt = config.DefaultBatchReviewPrompt
	}
	return &Executor{
		pool:     pool,
		caller:   caller,
		settings: settings,
		log:      log.With("component", "round_executor"),
	}
}

// RunRound judges every item once. Workers pull batches from a shared cursor
// and stop pulling when ctx is cancelled; dispatched calls run to completion.
func (e *Executor) RunRound(ctx context.Context, req RoundRequest, hooks Hooks) []domain.Judgment {
	batches := split(req.Items, e.settings.BatchSize)
	workers := min(e.settings.MaxWorkers, len(batches))

	var (
		next    atomic.Int64
		mu      sync.Mutex
		results = make([]domain.Judgment, 0, len(req.Items))
		g       errgroup.Group
	)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if ctx.Err() != nil {
					return nil
				}
				idx := int(next.Add(1) - 1)
				if idx >= len(batches) {
					return nil
				}

				judgments := e.runBatch(ctx, idx, batches[idx], req, hooks)

				mu.Lock()
				results = append(results, judgments...)
				mu.Unlock()
				if hooks.OnJudgments != nil {
					hooks.OnJudgments(judgments)
				}
			}
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) runBatch(ctx context.Context, idx int, items []domain.WorkItem, req RoundRequest, hooks Hooks) []domain.Judgment {
	entries := make([]batchEntry, 0, len(items))
	for _, item := range items {
		var hint *string
		if req.History != nil {
			hint = req.History.Context(strings.TrimSpace(item.Term))
		}
		entries = append(entries, newBatchEntry(item, TierOf(strings.TrimSpace(item.Term), item.Frequency, e.settings.Background), hint))
	}
	prompt, err := BuildPrompt(e.settings.Prompt, e.settings.Background, entries)
	if err != nil {
		return failAll(items, req.Round, fmt.Errorf("build prompt: %w", err))
	}

	p, err := e.pool.Select()
	if err != nil {
		return failAll(items, req.Round, err)
	}

	emit(hooks, fmt.Sprintf("Starting batch %d (%d terms) on %s...", idx+1, len(items), provider.Label(p)))
	judgments, missing, err := e.attempt(ctx, p, prompt, items, req.Round)
	if err != nil {
		e.pool.ReportFailure(p, err)
		emit(hooks, fmt.Sprintf("Batch %d failed on %s: %v", idx+1, provider.Label(p), err))

		if ctx.Err() != nil {
			emit(hooks, fmt.Sprintf("Batch %d retry skipped: stop requested", idx+1))
			return e.terminal(hooks, items, req.Round, err)
		}
		alt, ok := e.pool.SelectExcluding(p.Key())
		if !ok {
			return e.terminal(hooks, items, req.Round, err)
		}
		emit(hooks, fmt.Sprintf("Retrying batch %d on %s...", idx+1, provider.Label(alt)))
		judgments, missing, err = e.attempt(ctx, alt, prompt, items, req.Round)
		if err != nil {
			e.pool.ReportFailure(alt, err)
			emit(hooks, fmt.Sprintf("Batch %d failed on %s: %v", idx+1, provider.Label(alt), err))
			return e.terminal(hooks, items, req.Round, err)
		}
	}

	for _, j := range judgments {
		emit(hooks, fmt.Sprintf("Processed: %s -> %s", j.Term, j.Emoji))
	}
	if len(missing) > 0 {
		emit(hooks, fmt.Sprintf("Warning: batch %d returned no result for %d terms", idx+1, len(missing)))
		judgments = append(judgments, failAll(missing, req.Round, errors.New("no result returned for term"))...)
	}
	return judgments
}

// attempt makes one provider call. The call is detached from ctx cancellation
// and bounded only by the call timeout.
func (e *Executor) attempt(ctx context.Context, p domain.Provider, prompt string, items []domain.WorkItem, round int) ([]domain.Judgment, []domain.WorkItem, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.CallTimeout)
	defer cancel()

	text, err := e.caller.Complete(callCtx, p, provider.Request{Prompt: prompt, MaxTokens: e.settings.MaxTokens})
	if err != nil {
		return nil, nil, err
	}
	verdicts, err := ParseResponse(text)
	if err != nil {
		return nil, nil, &domain.ProviderError{Provider: provider.Label(p), Err: err}
	}
	judgments, missing := Reconcile(items, verdicts, round)
	return judgments, missing, nil
}

func (e *Executor) terminal(hooks Hooks, items []domain.WorkItem, round int, err error) []domain.Judgment {
	out := failAll(items, round, err)
	for _, j := range out {
		emit(hooks, fmt.Sprintf("Processed: %s -> %s", j.Term, j.Emoji))
	}
	return out
}

// TestTerm runs a single term through the review prompt and returns the first verdict
// along with the raw response text.
func (e *Executor) TestTerm(ctx context.Context, item domain.WorkItem, customPrompt string) (domain.Judgment, string, error) {
	userPrompt := e.settings.Prompt
	if strings.TrimSpace(customPrompt) != "" {
		userPrompt = customPrompt
	}
	if strings.TrimSpace(item.Context) == "" {
		item.Context = "无上下文"
	}

	prompt, err := BuildPrompt(userPrompt, e.settings.Background, []batchEntry{newBatchEntry(item, TierTest, nil)})
	if err != nil {
		return domain.Judgment{}, "", err
	}
	p, err := e.pool.Select()
	if err != nil {
		return domain.Judgment{}, "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.settings.CallTimeout)
	defer cancel()
	text, err := e.caller.Complete(callCtx, p, provider.Request{Prompt: prompt, MaxTokens: e.settings.MaxTokens})
	if err != nil {
		return domain.Judgment{}, "", err
	}

	verdicts, err := ParseResponse(text)
	if err != nil || len(verdicts) == 0 {
		return domain.Judgment{}, text, ErrUnparseable
	}
	return toJudgment(item, verdicts[0], 1), text, nil
}

func split(items []domain.WorkItem, size int) [][]domain.WorkItem {
	batches := make([][]domain.WorkItem, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

func failAll(items []domain.WorkItem, round int, err error) []domain.Judgment {
	out := make([]domain.Judgment, 0, len(items))
	for _, item := range items {
		out = append(out, FailedJudgment(item, round, err))
	}
	return out
}

func emit(hooks Hooks, line string) {
	if hooks.OnLog != nil {
		hooks.OnLog(line)
	}
}
