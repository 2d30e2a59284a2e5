package tenancy

import "context"

type ctxKey string

const (
	tokenKey  ctxKey = "assistant.auth_token"
	numberKey ctxKey = "assistant.connected_number"
	llmKey    ctxKey = "assistant.llm_key"
)

// WithToken stores the caller's bearer token so outbound backend calls can forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext extracts the bearer token if present.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// WithConnectedNumber stores the business number the message arrived on.
func WithConnectedNumber(ctx context.Context, number string) context.Context {
	return context.WithValue(ctx, numberKey, number)
}

// ConnectedNumberFromContext extracts the connected business number if present.
func ConnectedNumberFromContext(ctx context.Context) (string, bool) {
	number, ok := ctx.Value(numberKey).(string)
	return number, ok && number != ""
}

// WithLLMKey stores the per-user language model key resolved from configuration.
func WithLLMKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, llmKey, key)
}

// LLMKeyFromContext returns the per-user language model key, or "".
func LLMKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(llmKey).(string)
	return key
}
