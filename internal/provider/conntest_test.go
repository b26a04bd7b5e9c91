package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glossary-review/internal/domain"
)

// fakeCaller answers by API key.
type fakeCaller struct {
	complete func(ctx context.Context, p domain.Provider, req Request) (string, error)
}

func (f *fakeCaller) Complete(ctx context.Context, p domain.Provider, req Request) (string, error) {
	return f.complete(ctx, p, req)
}

func TestTest_MixedResults(t *testing.T) {
	caller := &fakeCaller{complete: func(ctx context.Context, p domain.Provider, req Request) (string, error) {
		assert.Equal(t, checkMaxTokens, req.MaxTokens)
		switch p.APIKey {
		case "good":
			return "hi", nil
		case "auth":
			return "", &domain.ProviderError{StatusCode: http.StatusUnauthorized, Err: assert.AnError}
		default:
			<-ctx.Done()
			return "", &domain.ProviderError{Timeout: true, Err: ctx.Err()}
		}
	}}

	providers := []domain.Provider{
		{APIKey: "good", Model: "m1", Enabled: true},
		{APIKey: "off", Model: "m2", Enabled: false},
		{APIKey: "auth", Model: "m3", Enabled: true},
		{APIKey: "slow", Model: "m4", Enabled: true},
	}

	report := Test(context.Background(), caller, providers, 30*time.Millisecond, nil)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "warning", report.Status)
	assert.Equal(t, "Partial: 1/3 providers working", report.Message)

	assert.Equal(t, "#1 m1", report.Results[0].Key)
	assert.Equal(t, domain.ProviderTestValid, report.Results[0].Status)
	assert.Equal(t, "#3 m3", report.Results[1].Key)
	assert.Contains(t, report.Results[1].Message, "HTTP 401:")
	assert.Equal(t, "#4 m4", report.Results[2].Key)
	assert.Contains(t, report.Results[2].Message, "Timeout (0s)")
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	assert.Equal(t, "error", empty.Status)
	assert.Equal(t, "No API providers configured", empty.Message)

	all := Summarize([]domain.ProviderTestResult{{Status: domain.ProviderTestValid}})
	assert.Equal(t, "success", all.Status)

	none := Summarize([]domain.ProviderTestResult{{Status: domain.ProviderTestInvalid}})
	assert.Equal(t, "error", none.Status)
}

func TestMaskedKey(t *testing.T) {
	assert.Equal(t, "sk-abc...", domain.Provider{APIKey: "sk-abcdef123"}.MaskedKey())
	assert.Equal(t, "short", domain.Provider{APIKey: "short"}.MaskedKey())
}
