package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

func TestFallbackClient(t *testing.T) {
	failing := ClientFunc(func(context.Context, Request) (Response, error) {
		return Response{}, errors.New("primary down")
	})
	var fallbackReq Request
	backup := ClientFunc(func(_ context.Context, req Request) (Response, error) {
		fallbackReq = req
		return Response{Text: "SCHEDULE"}, nil
	})
	ok := ClientFunc(func(context.Context, Request) (Response, error) {
		return Response{Text: "CHECK"}, nil
	})

	t.Run("primary success skips fallback", func(t *testing.T) {
		c := NewFallbackClient(ok, backup, logging.Discard())
		resp, err := c.Complete(context.Background(), UserPrompt("", "hi"))
		require.NoError(t, err)
		assert.Equal(t, "CHECK", resp.Text)
	})

	t.Run("primary failure uses fallback without tenant key or model", func(t *testing.T) {
		c := NewFallbackClient(failing, backup, logging.Discard())
		req := UserPrompt("", "hi")
		req.APIKey = "sk-tenant"
		req.Model = "gpt-4o-mini"
		resp, err := c.Complete(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "SCHEDULE", resp.Text)
		assert.Empty(t, fallbackReq.APIKey)
		assert.Empty(t, fallbackReq.Model)
	})

	t.Run("no fallback returns primary error", func(t *testing.T) {
		c := NewFallbackClient(failing, nil, logging.Discard())
		_, err := c.Complete(context.Background(), UserPrompt("", "hi"))
		require.EqualError(t, err, "primary down")
	})

	t.Run("both failing returns fallback error", func(t *testing.T) {
		c := NewFallbackClient(failing, ClientFunc(func(context.Context, Request) (Response, error) {
			return Response{}, errors.New("fallback down")
		}), logging.Discard())
		_, err := c.Complete(context.Background(), UserPrompt("", "hi"))
		require.EqualError(t, err, "fallback down")
	})
}
