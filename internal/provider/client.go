package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"glossary-review/internal/domain"
)

const (
	defaultMaxTokens   = 8192
	defaultTemperature = 0.1
	maxErrorBodyBytes  = 4096
	maxErrorMessage    = 300
	userAgent          = "glossary-review/1.0"
)

// Request is one completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Caller issues a single completion against one provider.
type Caller interface {
	Complete(ctx context.Context, p domain.Provider, req Request) (string, error)
}

// HTTPCaller talks to OpenAI-compatible chat completion endpoints,
// and to the Anthropic Messages API when the base URL points there.
type HTTPCaller struct {
	client *http.Client
}

// NewHTTPCaller creates a caller. A nil client uses a plain http.Client;
// per-call deadlines come from the context.
func NewHTTPCaller(client *http.Client) *HTTPCaller {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCaller{client: client}
}

// Complete sends the prompt and returns the first text answer.
func (c *HTTPCaller) Complete(ctx context.Context, p domain.Provider, req Request) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}

	var (
		text string
		err  error
	)
	if IsAnthropic(p.BaseURL) {
		text, err = c.completeAnthropic(ctx, p, req)
	} else {
		text, err = c.completeOpenAI(ctx, p, req)
	}
	if err != nil {
		return "", wrapCallError(p, err)
	}
	return text, nil
}

// IsAnthropic reports whether the base URL targets the Anthropic API.
func IsAnthropic(baseURL string) bool {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "anthropic.com")
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPCaller) completeOpenAI(ctx context.Context, p domain.Provider, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &domain.ProviderError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorMessage(raw)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", errors.New(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *HTTPCaller) completeAnthropic(ctx context.Context, p domain.Provider, req Request) (string, error) {
	baseURL := strings.TrimSuffix(strings.TrimRight(p.BaseURL, "/"), "/v1")
	client := anthropic.NewClient(
		option.WithAPIKey(p.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(c.client),
		option.WithMaxRetries(0),
	)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &domain.ProviderError{
				StatusCode: apiErr.StatusCode,
				Err:        errors.New(errorMessage([]byte(apiErr.RawJSON()))),
			}
		}
		return "", err
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in response")
}

// wrapCallError labels the error with the provider and flags timeouts.
func wrapCallError(p domain.Provider, err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		pe.Provider = Label(p)
		pe.Timeout = pe.Timeout || isTimeout(err)
		return pe
	}
	return &domain.ProviderError{
		Provider: Label(p),
		Timeout:  isTimeout(err),
		Err:      err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorMessage extracts a readable message from an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty response body"
	}
	if utf8.RuneCountInString(msg) > maxErrorMessage {
		msg = string([]rune(msg)[:maxErrorMessage]) + "..."
	}
	return msg
}

// Label identifies a provider in logs without exposing its key.
func Label(p domain.Provider) string {
	host := p.BaseURL
	if u, err := url.Parse(p.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("%s@%s(%s)", p.Model, host, p.MaskedKey())
}
