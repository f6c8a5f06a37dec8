// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

// openAIAPIBase is the chat completions endpoint. Package-level var for
// test substitution.
var openAIAPIBase = "https://api.openai.com/v1/chat/completions"

// openAISystemPrompt pins the completion to bare JSON output.
const openAISystemPrompt = "You are a precise extraction engine that returns valid JSON only."

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func newOpenAIClient(cfg types.ExtractionConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required when provider is openai")
	}
	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *OpenAIClient) Provider() string { return "openai" }
func (c *OpenAIClient) Model() string    { return c.model }

// OpenAI API JSON structures.
type openAIRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIAPIBase, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(excerpt))
	}

	var oResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return "", fmt.Errorf("decoding OpenAI response: %w", err)
	}
	if len(oResp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI response contained no choices")
	}

	text := strings.TrimSpace(oResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("OpenAI response content was empty")
	}
	return text, nil
}
