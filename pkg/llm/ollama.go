package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gemma3:4b"
)

// OllamaClient handles chat interactions with a local Ollama server
type OllamaClient struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOllamaClient creates a new Ollama chat client
func NewOllamaClient(opts Options) *OllamaClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	return &OllamaClient{
		baseURL:   baseURL,
		model:     model,
		maxTokens: opts.MaxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

// ChatRequest represents a request to Ollama's chat API
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *ChatOptions  `json:"options,omitempty"`
}

// ChatMessage represents a single message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// ChatOptions for controlling chat generation
type ChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ChatResponse represents Ollama's chat response
type ChatResponse struct {
	Model           string      `json:"model"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

func (c *OllamaClient) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	requestBody := ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: &ChatOptions{
			Temperature: req.Temperature,
			NumPredict:  maxTokens(req, c.maxTokens),
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, wrapError(ProviderOllama, 0, fmt.Errorf("failed to send chat request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, wrapError(ProviderOllama, resp.StatusCode,
			fmt.Errorf("chat request failed: %s", strings.TrimSpace(string(body))))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, wrapError(ProviderOllama, 0, fmt.Errorf("failed to decode chat response: %w", err))
	}
	if strings.TrimSpace(chatResp.Message.Content) == "" {
		return nil, wrapError(ProviderOllama, 0, errors.New("empty response"))
	}

	model := chatResp.Model
	if model == "" {
		model = c.model
	}
	return &Response{
		Text:  chatResp.Message.Content,
		Model: model,
		Usage: Usage{
			InputTokens:  chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
		},
	}, nil
}

// TestConnection checks that the server is reachable and the model is pulled
func (c *OllamaClient) TestConnection(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create test request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to Ollama server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama server returned status %d", resp.StatusCode)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return fmt.Errorf("failed to decode tags response: %w", err)
	}

	prefix := strings.Split(c.model, ":")[0]
	for _, model := range tagsResp.Models {
		if strings.HasPrefix(model.Name, prefix) {
			return nil
		}
	}
	return fmt.Errorf("chat model '%s' not found in Ollama", c.model)
}

func (c *OllamaClient) Provider() string { return ProviderOllama }

func (c *OllamaClient) Model() string { return c.model }
