package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// ProviderRules selects the keyword oracle instead of a language model.
const ProviderRules = "rules"

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	return cfg.LLMProvider == "bedrock" || cfg.LLMFallbackProvider == "bedrock" ||
		(cfg.SpeechEnabled() && cfg.AudioBucket != "")
}

// BuildLLMClient builds the configured provider, wrapped with the fallback
// provider when one is set. It returns nil, nil for the rules provider.
// awsCfg is only read for bedrock.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.LLMProvider == ProviderRules {
		logger.Info("language model disabled; using keyword oracle")
		return nil, nil
	}

	primary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		logger.Info("language model configured", "provider", cfg.LLMProvider)
		return primary, nil
	}
	fallback, err := buildProvider(ctx, cfg.LLMFallbackProvider, cfg, awsCfg)
	if err != nil {
		logger.Warn("fallback language model unavailable", "provider", cfg.LLMFallbackProvider, "error", err)
		return primary, nil
	}
	logger.Info("language model configured", "provider", cfg.LLMProvider, "fallback", cfg.LLMFallbackProvider)
	return llm.NewFallbackClient(primary, fallback, logger), nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai", "":
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, errors.New("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		if awsCfg == nil {
			return nil, errors.New("bootstrap: aws config is required for the bedrock provider")
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
}

// BuildEmbedder returns the embedding backend matching the LLM provider, or
// nil for the rules provider, which keeps keyword retrieval.
func BuildEmbedder(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config) (llm.Embedder, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case ProviderRules:
		return nil, nil
	case "openai", "":
		return llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel), nil
	case "gemini":
		embedder, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		return embedder, nil
	case "bedrock":
		if awsCfg == nil {
			return nil, errors.New("bootstrap: aws config is required for bedrock embeddings")
		}
		return llm.NewBedrockEmbedder(bedrockruntime.NewFromConfig(*awsCfg), cfg.EmbeddingModel), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
}

// oracleModel is the model used for short extraction calls.
func oracleModel(cfg *appconfig.Config) string {
	if cfg.LLMProvider == "openai" {
		return cfg.OpenAIFastModel
	}
	return ""
}

// answerModel is the model used for knowledge answers.
func answerModel(cfg *appconfig.Config) string {
	if cfg.LLMProvider == "openai" {
		return cfg.OpenAIModel
	}
	return ""
}
