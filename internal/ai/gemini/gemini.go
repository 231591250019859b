package gemini

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

type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	http    *http.Client
}

func New(apiKey, model string) *Client {
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &Client{
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com",
		Model:   model,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Generate(ctx context.Context, system string, history []ai.Turn, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("missing GEMINI_API_KEY")
	}
	// Gemini gets the conversation flattened into a single text block with
	// speaker prefixes, plus the current prompt.
	var sb strings.Builder
	for _, t := range history {
		sb.WriteString(t.Author)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	sb.WriteString(prompt)
	payload := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": system}},
		},
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": sb.String()}}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.7,
			"maxOutputTokens": 300,
		},
	}
	b, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no candidates")
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}
