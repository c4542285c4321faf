package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Role of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral chat completion request
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage counts tokens consumed by one completion
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Response is the generated text of a completion
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Client is implemented by every language-model provider
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() string
	Model() string
}

// ConnectionTester is implemented by clients that can check their backend
// without spending tokens
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"

	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// Options configures a provider client
type Options struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	// Timeout bounds a single HTTP exchange; callers normally bound the
	// whole call with a context deadline instead.
	Timeout time.Duration
}

// New creates the client for opts.Provider
func New(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderAnthropic, "":
		return NewAnthropicClient(opts)
	case ProviderOpenAI:
		return NewOpenAIClient(opts)
	case ProviderGemini:
		return NewGeminiClient(ctx, opts)
	case ProviderOllama:
		return NewOllamaClient(opts), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", opts.Provider)
	}
}

// Kind classifies upstream failures
type Kind int

const (
	KindUpstream Kind = iota
	KindAuthentication
	KindRateLimited
	KindInvalidRequest
	KindTimeout
)

var (
	ErrUpstream       = errors.New("language model request failed")
	ErrAuthentication = errors.New("language model authentication failed")
	ErrRateLimited    = errors.New("language model rate limit exceeded")
	ErrInvalidRequest = errors.New("language model rejected the request")
	ErrTimeout        = errors.New("language model request timed out")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuthentication:
		return ErrAuthentication
	case KindRateLimited:
		return ErrRateLimited
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrUpstream
	}
}

// Error wraps a provider failure. errors.Is matches the sentinel for its Kind.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Provider, e.Kind.sentinel(), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

// KindForStatus maps an HTTP status code onto a failure kind
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthentication
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUpstream
	}
}

// wrapError builds an *Error, treating context deadlines as timeouts
func wrapError(provider string, status int, err error) error {
	kind := KindForStatus(status)
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

func maxTokens(req Request, fallback int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxTokens
}
