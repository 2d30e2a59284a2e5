package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/agenda-assistant/internal/config"
	"github.com/wolfman30/agenda-assistant/internal/dialogue"
	"github.com/wolfman30/agenda-assistant/internal/keylock"
	"github.com/wolfman30/agenda-assistant/internal/knowledge"
	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/internal/store"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

func testConfig(panelURL string) *appconfig.Config {
	return &appconfig.Config{
		PanelBaseURL:   panelURL,
		BillingBaseURL: panelURL,
		GatewayTimeout: 2 * time.Second,
		UTCOffsetHours: -3,
		StateTTL:       time.Hour,
		UserConfigTTL:  time.Minute,
		LockTimeout:    time.Second,
		LLMProvider:    ProviderRules,
	}
}

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.Discard(), true))
}

func TestBuildPostgresPoolDisabled(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), &appconfig.Config{})
	require.NoError(t, err)
	assert.Nil(t, pool)

	_, err = BuildPostgresPool(context.Background(), &appconfig.Config{DatabaseURL: "::not a url"})
	require.Error(t, err)
}

func TestBuildStoresInMemory(t *testing.T) {
	s := BuildStores(nil, nil, StoreOptions{StateTTL: time.Hour})

	assert.IsType(t, &store.MemoryStore[dialogue.State]{}, s.States)
	assert.IsType(t, &store.KeyedBindings{}, s.Bindings)
	assert.IsType(t, &keylock.Local{}, s.Locker)
	assert.IsType(t, &knowledge.MemoryRepository{}, s.Knowledge)
	assert.Len(t, s.sweepers, 5)

	ctx, cancel := context.WithCancel(context.Background())
	s.RunSweepers(ctx)
	cancel()
}

func TestBuildStoresRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := BuildStores(client, nil, StoreOptions{StateTTL: time.Hour})
	assert.IsType(t, &keylock.Redis{}, s.Locker)
	assert.Empty(t, s.sweepers)

	ctx := context.Background()
	require.NoError(t, s.States.Set(ctx, "5511999", dialogue.StateAwaitingManualDate))
	assert.True(t, mr.Exists("dialogue:state:5511999"))
	assert.Equal(t, time.Hour, mr.TTL("dialogue:state:5511999"))

	require.NoError(t, s.Bindings.Bind(ctx, "5511999", "cus_1"))
	assert.Zero(t, mr.TTL("billing:customer:5511999"), "bindings never expire")
	id, ok, err := s.Bindings.CustomerID(ctx, "5511999")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cus_1", id)
}

func TestBuildAssistantServesGenerate(t *testing.T) {
	panel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get-config":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"openaiKey":"","asaasKey":"","customInstructions":""}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(panel.Close)

	kbPath := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(kbPath, []byte("- topic: Hours\n  content: We are open from 8h to 18h.\n"), 0o600))

	cfg := testConfig(panel.URL)
	cfg.KnowledgeBase = kbPath
	stores := BuildStores(nil, nil, StoreOptions{StateTTL: time.Hour, UserConfigTTL: time.Minute})
	a, err := BuildAssistant(context.Background(), cfg, AssistantDeps{
		Stores:   stores,
		Registry: prometheus.NewRegistry(),
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)

	docs, err := stores.Knowledge.Documents(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	body := strings.NewReader(`{"sender":"5511999","message":"please cancel my appointment"}`)
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	a.Handler.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Got it, your appointment request has been cancelled.", resp["response"])
	assert.Nil(t, resp["audio_path"])

	_, ok, err := stores.States.Get(context.Background(), "5511999")
	require.NoError(t, err)
	assert.False(t, ok, "the initial state is not persisted")
	_, ok, err = stores.ConfigCache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok, "config is cached under a token hash")
}

func TestBuildAssistantErrors(t *testing.T) {
	_, err := BuildAssistant(context.Background(), nil, AssistantDeps{})
	require.Error(t, err)

	_, err = BuildAssistant(context.Background(), testConfig("http://panel"), AssistantDeps{})
	require.Error(t, err)

	cfg := testConfig("http://panel")
	cfg.KnowledgeBase = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = BuildAssistant(context.Background(), cfg, AssistantDeps{
		Stores:   BuildStores(nil, nil, StoreOptions{}),
		Registry: prometheus.NewRegistry(),
		Logger:   logging.Discard(),
	})
	require.Error(t, err)
}

func TestBuildSpeech(t *testing.T) {
	cfg := testConfig("http://panel")
	synth, err := buildSpeech(cfg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, synth, "speech is off without a key")

	cfg.ElevenLabsAPIKey = "el-key"
	cfg.AudioBucket = "audio"
	_, err = buildSpeech(cfg, nil, nil)
	require.Error(t, err, "bucket storage needs aws config")

	cfg.AudioBucket = ""
	cfg.AudioDir = t.TempDir()
	synth, err = buildSpeech(cfg, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, synth)
}

func TestBuildLLMClient(t *testing.T) {
	ctx := context.Background()

	client, err := BuildLLMClient(ctx, &appconfig.Config{LLMProvider: ProviderRules}, nil, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: "openai", OpenAIModel: "gpt-4o"}, nil, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: "bedrock"}, nil, logging.Discard())
	require.Error(t, err)

	_, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: "mystery"}, nil, logging.Discard())
	require.Error(t, err)

	// An unusable fallback keeps the primary.
	client, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: "openai", LLMFallbackProvider: "bedrock"}, nil, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildEmbedder(t *testing.T) {
	ctx := context.Background()

	embedder, err := BuildEmbedder(ctx, &appconfig.Config{LLMProvider: ProviderRules}, nil)
	require.NoError(t, err)
	assert.Nil(t, embedder, "the rules provider keeps keyword retrieval")

	embedder, err = BuildEmbedder(ctx, &appconfig.Config{LLMProvider: "openai", EmbeddingModel: "text-embedding-3-large"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIEmbedder{}, embedder)

	_, err = BuildEmbedder(ctx, &appconfig.Config{LLMProvider: "bedrock"}, nil)
	require.Error(t, err)

	_, err = BuildEmbedder(ctx, &appconfig.Config{LLMProvider: "mystery"}, nil)
	require.Error(t, err)

	_, err = BuildEmbedder(ctx, nil, nil)
	require.Error(t, err)
}

func TestNeedsAWS(t *testing.T) {
	assert.False(t, NeedsAWS(&appconfig.Config{LLMProvider: "openai"}))
	assert.True(t, NeedsAWS(&appconfig.Config{LLMFallbackProvider: "bedrock"}))
	assert.True(t, NeedsAWS(&appconfig.Config{ElevenLabsAPIKey: "k", AudioBucket: "b"}))
	assert.False(t, NeedsAWS(&appconfig.Config{ElevenLabsAPIKey: "k", AudioDir: "/tmp"}))
}
