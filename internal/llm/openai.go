package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements Client with the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI client. apiKey may be empty when every
// request carries its own key.
func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	all := []option.RequestOption{option.WithMaxRetries(0)}
	if strings.TrimSpace(apiKey) != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	return &OpenAIClient{
		client: openai.NewClient(all...),
		model:  model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) != "" {
			messages = append(messages, openai.SystemMessage(block))
		}
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(content))
		default:
			return Response{}, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
	}
	if len(messages) == 0 {
		return Response{}, errors.New("llm: openai requires at least one message")
	}

	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = c.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature >= 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(float64(req.TopP))
	}

	var callOpts []option.RequestOption
	if strings.TrimSpace(req.APIKey) != "" {
		callOpts = append(callOpts, option.WithAPIKey(req.APIKey))
	}

	out, err := c.client.Chat.Completions.New(ctx, params, callOpts...)
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai completion failed: %w", err)
	}
	if len(out.Choices) == 0 {
		return Response{}, errors.New("llm: openai returned no choices")
	}

	choice := out.Choices[0]
	return Response{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(out.Usage.PromptTokens),
			OutputTokens: int32(out.Usage.CompletionTokens),
			TotalTokens:  int32(out.Usage.TotalTokens),
		},
	}, nil
}
