// Package speech turns reply text into audio files the messaging side can
// send as voice notes.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/agenda-assistant/internal/observability/metrics"
)

const (
	defaultElevenLabsURL = "https://api.elevenlabs.io"
	defaultVoiceID       = "yM93hbw8Qtvdma2wCnJG"
	defaultTTSModel      = "eleven_multilingual_v2"
	outputFormat         = "mp3_44100_128"
)

// ElevenLabs is a text-to-speech client.
type ElevenLabs struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	voiceID    string
	modelID    string
	metrics    *metrics.GatewayMetrics
	tracer     trace.Tracer
}

type ElevenLabsOption func(*ElevenLabs)

func WithBaseURL(u string) ElevenLabsOption {
	return func(e *ElevenLabs) { e.baseURL = strings.TrimRight(u, "/") }
}

func WithVoice(voiceID string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if voiceID != "" {
			e.voiceID = voiceID
		}
	}
}

func WithMetrics(m *metrics.GatewayMetrics) ElevenLabsOption {
	return func(e *ElevenLabs) { e.metrics = m }
}

func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) (*ElevenLabs, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("speech: elevenlabs api key is required")
	}
	e := &ElevenLabs{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    defaultElevenLabsURL,
		apiKey:     apiKey,
		voiceID:    defaultVoiceID,
		modelID:    defaultTTSModel,
		tracer:     otel.Tracer("assistant.internal.speech"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Convert returns MP3 audio for text.
func (e *ElevenLabs) Convert(ctx context.Context, text string) ([]byte, error) {
	ctx, span := e.tracer.Start(ctx, "speech.convert")
	defer span.End()
	start := time.Now()
	status := "error"
	defer func() {
		e.metrics.ObserveRequest("speech", "convert", status, time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(map[string]string{"text": text, "model_id": e.modelID})
	if err != nil {
		return nil, fmt.Errorf("speech: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", e.baseURL, url.PathEscape(e.voiceID), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("speech: http request: %w", err)
	}
	defer resp.Body.Close()
	status = fmt.Sprintf("%d", resp.StatusCode)

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(audio)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("speech: elevenlabs returned %d: %s", resp.StatusCode, msg)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech: elevenlabs returned no audio")
	}
	return audio, nil
}
