// Package llm defines the completion interface shared by the language model
// providers and the implementations for OpenAI, Gemini and Bedrock.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a provider-neutral chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a single completion call. A negative Temperature leaves the
// provider default in place. APIKey overrides the process credential for
// providers that support per-call keys.
type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	APIKey      string
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes chat requests.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// UserPrompt builds a request with one system instruction and one user message.
func UserPrompt(system, user string) Request {
	req := Request{
		Messages:    []ChatMessage{{Role: RoleUser, Content: user}},
		Temperature: 0,
	}
	if system != "" {
		req.System = []string{system}
	}
	return req
}
