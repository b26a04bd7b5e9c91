package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"glossary-review/internal/domain"
)

const checkMaxTokens = 5

// Test checks every enabled provider concurrently, each under its own timeout.
// Failures become invalid results; the call itself never fails.
func Test(ctx context.Context, caller Caller, providers []domain.Provider, timeout time.Duration, log *slog.Logger) domain.ConnectionReport {
	if log == nil {
		log = slog.Default()
	}

	type target struct {
		label    string
		provider domain.Provider
	}
	targets := make([]target, 0, len(providers))
	for idx, p := range providers {
		if !p.Enabled {
			continue
		}
		targets = append(targets, target{label: fmt.Sprintf("#%d %s", idx+1, p.Model), provider: p})
	}

	results := make([]domain.ProviderTestResult, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			results[i] = checkOne(ctx, caller, t.label, t.provider, timeout)
			log.Debug("provider check finished",
				slog.String("provider", Label(t.provider)),
				slog.String("status", string(results[i].Status)),
			)
			return nil
		})
	}
	_ = g.Wait()

	return Summarize(results)
}

func checkOne(ctx context.Context, caller Caller, label string, p domain.Provider, timeout time.Duration) domain.ProviderTestResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := fmt.Sprintf("Hi from review tool check %d %d", time.Now().Unix(), 1000+rand.IntN(9000))
	_, err := caller.Complete(callCtx, p, Request{Prompt: prompt, MaxTokens: checkMaxTokens})
	if err == nil {
		return domain.ProviderTestResult{Key: label, Status: domain.ProviderTestValid, Message: "OK"}
	}
	return domain.ProviderTestResult{Key: label, Status: domain.ProviderTestInvalid, Message: checkMessage(err, timeout)}
}

func checkMessage(err error, timeout time.Duration) string {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.Timeout:
			return fmt.Sprintf("Timeout (%ds) - Server did not respond in time.", int(timeout.Seconds()))
		case pe.StatusCode > 0:
			return fmt.Sprintf("HTTP %d: %v", pe.StatusCode, pe.Err)
		default:
			return fmt.Sprintf("Error: %v", pe.Err)
		}
	}
	return fmt.Sprintf("Error: %v", err)
}

// Summarize aggregates connection test results into the overall verdict.
func Summarize(results []domain.ProviderTestResult) domain.ConnectionReport {
	if len(results) == 0 {
		return domain.ConnectionReport{
			Status:  "error",
			Message: "No API providers configured",
			Results: []domain.ProviderTestResult{},
		}
	}

	valid := 0
	for _, r := range results {
		if r.Status == domain.ProviderTestValid {
			valid++
		}
	}

	report := domain.ConnectionReport{Results: results}
	switch {
	case valid == len(results):
		report.Status, report.Message = "success", "All providers operational"
	case valid > 0:
		report.Status, report.Message = "warning", fmt.Sprintf("Partial: %d/%d providers working", valid, len(results))
	default:
		report.Status, report.Message = "error", "All providers failed"
	}
	return report
}
