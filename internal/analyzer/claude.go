// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	defaultClaudeModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens   = 2048
	anthropicVersion   = "2023-06-01"
)

// ClaudeBackend calls the Claude Messages API with one prompt per analysis.
type ClaudeBackend struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	MaxRetries int
	Client     *http.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnalyzePaper renders the paper prompt and decodes the model's JSON answer.
func (c *ClaudeBackend) AnalyzePaper(ctx context.Context, req PaperRequest) (types.PaperAnalysis, error) {
	prompt, err := render(paperPromptTmpl, req)
	if err != nil {
		return types.PaperAnalysis{}, fmt.Errorf("rendering paper prompt: %w", err)
	}
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return types.PaperAnalysis{}, err
	}
	return DecodePaper([]byte(text))
}

// AnalyzeRepository renders the repository prompt and decodes the model's JSON answer.
func (c *ClaudeBackend) AnalyzeRepository(ctx context.Context, req RepositoryRequest) (types.RepositoryAnalysis, error) {
	prompt, err := render(repositoryPromptTmpl, req)
	if err != nil {
		return types.RepositoryAnalysis{}, fmt.Errorf("rendering repository prompt: %w", err)
	}
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return types.RepositoryAnalysis{}, err
	}
	return DecodeRepository([]byte(text))
}

// complete sends one user message and returns the concatenated text blocks.
func (c *ClaudeBackend) complete(ctx context.Context, prompt string) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultClaudeModel
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := claudeAPIURL
	if c.BaseURL != "" {
		url = c.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("%w: calling Claude API: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Backend: "claude", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", malformed("decoding Claude response: %v", err)
	}

	var text strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", malformed("no text content in Claude response (stop_reason %q)", cResp.StopReason)
	}
	return text.String(), nil
}
