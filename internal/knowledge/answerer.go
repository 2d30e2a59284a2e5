package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/internal/store"
	"github.com/wolfman30/agenda-assistant/internal/tenancy"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

const (
	// MaxHistoryTurns bounds the per-user question/answer history.
	MaxHistoryTurns = 20
	retrieveK       = 3
)

// NoSlotsTodayFallback is used when the composer cannot reach the model.
const NoSlotsTodayFallback = "There are no more available times today. Would you like me to check tomorrow?"

var errEmptyAnswer = errors.New("knowledge: model returned an empty answer")

// Query is one question addressed to the knowledge base.
type Query struct {
	UserID       string
	Text         string
	Instructions string
}

// Turn is one remembered exchange.
type Turn struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

// Answerer composes replies from retrieved documents, the user's recent
// history and the business's persona instructions.
type Answerer struct {
	client    llm.Client
	retriever Retriever
	history   store.KeyedStore[[]Turn]
	model     string
	timeout   time.Duration
	logger    *logging.Logger
}

type AnswererOption func(*Answerer)

func WithModel(model string) AnswererOption {
	return func(a *Answerer) { a.model = model }
}

func WithTimeout(d time.Duration) AnswererOption {
	return func(a *Answerer) { a.timeout = d }
}

// WithHistory keeps the last MaxHistoryTurns exchanges per user.
func WithHistory(h store.KeyedStore[[]Turn]) AnswererOption {
	return func(a *Answerer) { a.history = h }
}

// WithRetriever replaces the default keyword retriever.
func WithRetriever(r Retriever) AnswererOption {
	return func(a *Answerer) { a.retriever = r }
}

func WithLogger(l *logging.Logger) AnswererOption {
	return func(a *Answerer) { a.logger = l }
}

func NewAnswerer(client llm.Client, repo Repository, opts ...AnswererOption) *Answerer {
	a := &Answerer{
		client:  client,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.retriever == nil {
		a.retriever = NewKeywordRetriever(repo)
	}
	if a.logger == nil {
		a.logger = logging.Default()
	}
	return a
}

// Answer replies to a free-form question and records the exchange.
func (a *Answerer) Answer(ctx context.Context, q Query) (string, error) {
	relevant, err := a.retriever.Retrieve(ctx, q.Text, retrieveK)
	if err != nil {
		return "", fmt.Errorf("knowledge: retrieve: %w", err)
	}
	history := a.loadHistory(ctx, q.UserID)

	req := llm.Request{
		Model:       a.model,
		System:      answerSystem(q.Instructions, relevant),
		Messages:    historyMessages(history, q.Text),
		MaxTokens:   400,
		Temperature: 0.6,
	}
	answer, err := a.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("knowledge: answer: %w", err)
	}
	a.saveHistory(ctx, q.UserID, history, Turn{Question: q.Text, Answer: answer})
	return answer, nil
}

// NoSlotsToday writes a short message saying today is fully booked and
// offering to look at tomorrow. Failures fall back to a fixed sentence.
func (a *Answerer) NoSlotsToday(ctx context.Context, q Query) (string, error) {
	system := []string{noSlotsTodayPrompt}
	if strings.TrimSpace(q.Instructions) != "" {
		system = append([]string{q.Instructions}, system...)
	}
	req := llm.Request{
		Model:       a.model,
		System:      system,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: q.Text}},
		MaxTokens:   120,
		Temperature: 0.3,
	}
	text, err := a.complete(ctx, req)
	if err != nil {
		a.logger.Warn("no-slots composition failed", "user_id", q.UserID, "error", err)
		return NoSlotsTodayFallback, nil
	}
	return text, nil
}

func (a *Answerer) complete(ctx context.Context, req llm.Request) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	req.APIKey = tenancy.LLMKeyFromContext(ctx)
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errEmptyAnswer
	}
	return text, nil
}

func (a *Answerer) loadHistory(ctx context.Context, userID string) []Turn {
	if a.history == nil || userID == "" {
		return nil
	}
	turns, _, err := a.history.Get(ctx, userID)
	if err != nil {
		a.logger.Warn("history load failed", "user_id", userID, "error", err)
		return nil
	}
	return turns
}

func (a *Answerer) saveHistory(ctx context.Context, userID string, turns []Turn, latest Turn) {
	if a.history == nil || userID == "" {
		return
	}
	turns = append(turns, latest)
	if len(turns) > MaxHistoryTurns {
		turns = turns[len(turns)-MaxHistoryTurns:]
	}
	if err := a.history.Set(ctx, userID, turns); err != nil {
		a.logger.Warn("history save failed", "user_id", userID, "error", err)
	}
}

const answerPrompt = `Answer the customer's question clearly, briefly and kindly.
Whenever possible use the business information below. If it does not cover the question, say you will check with the team instead of guessing.`

const noSlotsTodayPrompt = `You are a scheduling assistant. There are no more free times today.
Tell the customer that in one or two friendly sentences and ask whether they would like you to look at tomorrow's availability.`

func answerSystem(instructions string, docs []Document) []string {
	var system []string
	if strings.TrimSpace(instructions) != "" {
		system = append(system, strings.TrimSpace(instructions))
	}
	system = append(system, answerPrompt)
	if len(docs) > 0 {
		var b strings.Builder
		b.WriteString("Business information:\n")
		for _, d := range docs {
			b.WriteString("- ")
			b.WriteString(d.Text())
			b.WriteString("\n")
		}
		system = append(system, strings.TrimRight(b.String(), "\n"))
	}
	return system
}

func historyMessages(history []Turn, question string) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, 2*len(history)+1)
	for _, t := range history {
		msgs = append(msgs,
			llm.ChatMessage{Role: llm.RoleUser, Content: t.Question},
			llm.ChatMessage{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return append(msgs, llm.ChatMessage{Role: llm.RoleUser, Content: question})
}
