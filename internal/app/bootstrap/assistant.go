package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/agenda-assistant/internal/billing"
	"github.com/wolfman30/agenda-assistant/internal/booking"
	"github.com/wolfman30/agenda-assistant/internal/calendar"
	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	"github.com/wolfman30/agenda-assistant/internal/dialogue"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/internal/memory"
	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
	"github.com/wolfman30/agenda-assistant/internal/oracle"
	"github.com/wolfman30/agenda-assistant/internal/speech"
	"github.com/wolfman30/agenda-assistant/internal/userconfig"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// Assistant is the fully wired dialogue service.
type Assistant struct {
	Engine  *dialogue.Engine
	Handler *dialogue.Handler
	Stores  *Stores
}

// AssistantDeps carries the process-level resources the assistant is built on.
type AssistantDeps struct {
	Stores   *Stores
	LLM      llm.Client   // nil selects the keyword oracle
	Embedder llm.Embedder // nil keeps keyword retrieval
	AWS      *aws.Config
	Registry prometheus.Registerer
	Logger   *logging.Logger
}

// BuildAssistant wires gateways, oracle, knowledge base and speech into the
// dialogue engine and its HTTP handler.
func BuildAssistant(ctx context.Context, cfg *appconfig.Config, deps AssistantDeps) (*Assistant, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if deps.Stores == nil {
		return nil, errors.New("bootstrap: stores are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clock := booking.NewClock(cfg.UTCOffsetHours)
	gatewayMetrics := metrics.NewGatewayMetrics(deps.Registry)

	cal := calendar.NewClient(cfg.PanelBaseURL, logger,
		calendar.WithTimeout(cfg.GatewayTimeout),
		calendar.WithReadRetries(cfg.ReadRetries),
		calendar.WithLocation(clock.Location()),
		calendar.WithMetrics(gatewayMetrics),
	)
	configs := userconfig.NewClient(cfg.PanelBaseURL, logger,
		userconfig.WithCache(deps.Stores.ConfigCache),
		userconfig.WithTimeout(cfg.GatewayTimeout),
		userconfig.WithMetrics(gatewayMetrics),
	)

	var nlu dialogue.Oracle
	var kb *knowledge.Answerer
	if deps.LLM != nil {
		nlu = oracle.NewLLM(deps.LLM, clock,
			oracle.WithModel(oracleModel(cfg)),
			oracle.WithTimeout(cfg.OracleTimeout),
			oracle.WithLogger(logger),
		)
		kbOpts := []knowledge.AnswererOption{
			knowledge.WithModel(answerModel(cfg)),
			knowledge.WithHistory(deps.Stores.History),
			knowledge.WithLogger(logger),
		}
		if deps.Embedder != nil {
			kbOpts = append(kbOpts, knowledge.WithRetriever(
				knowledge.NewEmbeddingRetriever(deps.Stores.Knowledge, deps.Embedder, logger)))
		}
		kb = knowledge.NewAnswerer(deps.LLM, deps.Stores.Knowledge, kbOpts...)
	} else {
		nlu = oracle.NewRules(clock)
	}

	if cfg.KnowledgeBase != "" {
		n, err := knowledge.Seed(ctx, deps.Stores.Knowledge, cfg.KnowledgeBase)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: seed knowledge base: %w", err)
		}
		logger.Info("knowledge base seeded", "documents", n, "path", cfg.KnowledgeBase)
	}

	synth, err := buildSpeech(cfg, deps.AWS, gatewayMetrics)
	if err != nil {
		return nil, err
	}

	engineDeps := dialogue.Deps{
		Oracle:        nlu,
		Availability:  cal,
		Billing:       billing.NewClient(cfg.BillingBaseURL, cfg.GatewayTimeout, logger, gatewayMetrics),
		Memory:        memory.NewClient(cfg.PanelBaseURL, cfg.GatewayTimeout, logger, gatewayMetrics),
		Configs:       configs,
		Locker:        deps.Stores.Locker,
		States:        deps.Stores.States,
		Offers:        deps.Stores.Offers,
		Pending:       deps.Stores.Pending,
		Bindings:      deps.Stores.Bindings,
		Clock:         clock,
		InvoiceAmount: cfg.InvoiceAmount,
		Metrics:       metrics.NewDialogueMetrics(deps.Registry),
		Logger:        logger,
	}
	// Typed nils must not reach the engine's optional interfaces.
	if kb != nil {
		engineDeps.Knowledge = kb
	}
	if synth != nil {
		engineDeps.Speech = synth
	}
	engine, err := dialogue.NewEngine(engineDeps)
	if err != nil {
		return nil, err
	}

	desk := dialogue.NewQuestionDesk(cal, nlu, engineDeps.Knowledge, clock, logger)
	return &Assistant{
		Engine:  engine,
		Handler: dialogue.NewHandler(engine, desk, logger),
		Stores:  deps.Stores,
	}, nil
}

func buildSpeech(cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.GatewayMetrics) (*speech.Synthesizer, error) {
	if !cfg.SpeechEnabled() {
		return nil, nil
	}
	opts := []speech.ElevenLabsOption{speech.WithMetrics(m)}
	if cfg.ElevenLabsVoiceID != "" {
		opts = append(opts, speech.WithVoice(cfg.ElevenLabsVoiceID))
	}
	tts, err := speech.NewElevenLabs(cfg.ElevenLabsAPIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: speech: %w", err)
	}

	var audio speech.AudioStore
	switch {
	case cfg.AudioBucket != "":
		if awsCfg == nil {
			return nil, errors.New("bootstrap: aws config is required for AUDIO_BUCKET")
		}
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		audio = speech.NewS3Store(client, cfg.AudioBucket)
	default:
		audio = speech.NewDirStore(cfg.AudioDir)
	}
	return speech.NewSynthesizer(tts, audio), nil
}
