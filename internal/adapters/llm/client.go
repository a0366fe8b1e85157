// Package llm is an OpenAI-compatible chat-completion client, grounded
// on the embedding client's circuit-breaker-plus-retry shape.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/longregen/alicia/internal/adapters/circuitbreaker"
	"github.com/longregen/alicia/internal/adapters/retry"
	"github.com/longregen/alicia/internal/ports"
)

const ChatTimeout = 60 * time.Second

// Client is an OpenAI-compatible /v1/chat/completions client.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, model string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: ChatTimeout,
		},
		retryConfig: retry.BackoffConfig{
			InitialInterval: time.Second,
			Multiplier:      2,
			MaxRetries:      3,
			MaxInterval:     10 * time.Second,
		},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *responseFmt  `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Chat returns the model's free-form text reply.
func (c *Client) Chat(ctx context.Context, messages []ports.LLMMessage) (*ports.LLMResponse, error) {
	return c.complete(ctx, messages, false)
}

// ChatJSON instructs the model to reply with a JSON object only.
func (c *Client) ChatJSON(ctx context.Context, messages []ports.LLMMessage) (*ports.LLMResponse, error) {
	return c.complete(ctx, messages, true)
}

func (c *Client) complete(ctx context.Context, messages []ports.LLMMessage, jsonOnly bool) (*ports.LLMResponse, error) {
	var result *ports.LLMResponse
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
		defer cancel()

		r, err := c.doComplete(ctx, messages, jsonOnly)
		if err != nil {
			log.Printf("[llm.Client] completion failed: baseURL=%s, model=%s, jsonOnly=%v, error=%v", c.baseURL, c.model, jsonOnly, err)
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (c *Client) doComplete(ctx context.Context, messages []ports.LLMMessage, jsonOnly bool) (*ports.LLMResponse, error) {
	req := chatRequest{Model: c.model}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if jsonOnly {
		req.ResponseFormat = &responseFmt{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return 0, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &ports.LLMResponse{Content: parsed.Choices[0].Message.Content}, nil
}
