package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	googleoption "google.golang.org/api/option"
)

const (
	defaultOpenAIEmbeddingModel  = "text-embedding-3-small"
	defaultBedrockEmbeddingModel = "amazon.titan-embed-text-v2:0"
	defaultGeminiEmbeddingModel  = "text-embedding-004"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// OpenAIEmbedder embeds with the OpenAI embeddings API in one batch call.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model string, opts ...option.RequestOption) *OpenAIEmbedder {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIEmbeddingModel
	}
	all := []option.RequestOption{option.WithMaxRetries(0)}
	if strings.TrimSpace(apiKey) != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	return &OpenAIEmbedder{client: openai.NewClient(all...), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: openai embeddings failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("llm: embedding response size mismatch")
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = toFloat32(item.Embedding)
	}
	return out, nil
}

type bedrockInvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEmbedder embeds with a Titan text embedding model, one call per text.
type BedrockEmbedder struct {
	api     bedrockInvokeModelAPI
	modelID string
}

func NewBedrockEmbedder(api bedrockInvokeModelAPI, modelID string) *BedrockEmbedder {
	if api == nil {
		panic("llm: bedrock runtime client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultBedrockEmbeddingModel
	}
	return &BedrockEmbedder{api: api, modelID: modelID}
}

func (e *BedrockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for _, text := range texts {
		payload, err := json.Marshal(map[string]any{"inputText": text})
		if err != nil {
			return nil, fmt.Errorf("llm: embedding request marshal: %w", err)
		}
		out, err := e.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(e.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        payload,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: bedrock embedding failed: %w", err)
		}

		var decoded struct {
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal(out.Body, &decoded); err != nil {
			return nil, fmt.Errorf("llm: embedding response parse: %w", err)
		}
		if len(decoded.Embedding) == 0 {
			return nil, errors.New("llm: embedding response was empty")
		}
		embeddings = append(embeddings, toFloat32(decoded.Embedding))
	}
	return embeddings, nil
}

// GeminiEmbedder embeds with a Gemini embedding model in one batch call.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiEmbeddingModel
	}
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini embeddings failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, errors.New("llm: embedding response size mismatch")
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, item := range resp.Embeddings {
		out[i] = item.Values
	}
	return out, nil
}

// Close releases resources held by the Gemini client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}
