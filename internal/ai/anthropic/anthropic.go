package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"humanornot/internal/ai"
)

const apiVersion = "2023-06-01"

type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	http    *http.Client
}

func New(apiKey, model string) *Client {
	if model == "" {
		model = "claude-3-sonnet-20240229"
	}
	return &Client{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com",
		Model:   model,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Generate(ctx context.Context, system string, history []ai.Turn, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("missing ANTHROPIC_API_KEY")
	}
	msgs := make([]map[string]string, 0, len(history)+1)
	for _, t := range history {
		role := "user"
		if t.FromAgent {
			role = "assistant"
		}
		msgs = append(msgs, map[string]string{"role": role, "content": t.Content})
	}
	msgs = append(msgs, map[string]string{"role": "user", "content": prompt})
	payload := map[string]any{
		"model":      c.Model,
		"max_tokens": 300,
		"system":     system,
		"messages":   msgs,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/messages", bytes.NewReader(b))
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("anthropic status %d", resp.StatusCode)
	}
	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", errors.New("no content")
	}
	return strings.TrimSpace(out.Content[0].Text), nil
}
