// Package ai wraps an OpenAI-style chat completions endpoint for the ask
// command. Replies are trimmed to chat-safe length.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onnwee/kickbot/telemetry"
)

// MaxReplyLen caps replies so they fit in a single chat message.
const MaxReplyLen = 400

// Client calls a chat completions API.
type Client struct {
	rc    *resty.Client
	model string
}

// NewClient builds a completions client. baseURL is the API root
// (e.g. https://api.openai.com/v1).
func NewClient(baseURL, apiKey, model string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(20 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{rc: rc, model: model}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask sends the user's question and returns a single short answer.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question empty")
	}
	telemetry.Init()

	var res completionResponse
	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model: c.model,
			Messages: []message{
				{Role: "system", Content: "You are a concise chat bot for a livestream. Answer in one or two short sentences."},
				{Role: "user", Content: question},
			},
			MaxTokens:   150,
			Temperature: 0.7,
		}).
		SetResult(&res).
		Post("/chat/completions")
	if telemetry.AIRequestDuration != nil {
		telemetry.AIRequestDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		countFailure()
		return "", err
	}
	if resp.IsError() {
		countFailure()
		return "", fmt.Errorf("completion request failed: %s: %s", resp.Status(), resp.String())
	}
	if res.Error != nil {
		countFailure()
		return "", fmt.Errorf("completion error: %s", res.Error.Message)
	}
	if len(res.Choices) == 0 {
		countFailure()
		return "", errors.New("no completion choices returned")
	}
	answer := strings.TrimSpace(res.Choices[0].Message.Content)
	answer = strings.ReplaceAll(answer, "\n", " ")
	if len(answer) > MaxReplyLen {
		answer = answer[:MaxReplyLen-3] + "..."
	}
	return answer, nil
}

func countFailure() {
	if telemetry.AIRequestsFailed != nil {
		telemetry.AIRequestsFailed.Inc()
	}
}
