package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const knowledgeKey = "assistant:knowledge:docs"

// Repository holds the knowledge base documents.
type Repository interface {
	Replace(ctx context.Context, docs []Document) error
	Documents(ctx context.Context) ([]Document, error)
}

// RedisRepository stores documents as JSON entries of a Redis list so every
// instance serves the same knowledge base.
type RedisRepository struct {
	client *redis.Client
	key    string
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	if client == nil {
		panic("knowledge: redis client cannot be nil")
	}
	return &RedisRepository{client: client, key: knowledgeKey}
}

// Replace swaps the whole list atomically.
func (r *RedisRepository) Replace(ctx context.Context, docs []Document) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	if len(docs) > 0 {
		args := make([]interface{}, 0, len(docs))
		for _, d := range docs {
			data, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("knowledge: encode document: %w", err)
			}
			args = append(args, data)
		}
		pipe.RPush(ctx, r.key, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("knowledge: replace documents: %w", err)
	}
	return nil
}

func (r *RedisRepository) Documents(ctx context.Context) ([]Document, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("knowledge: load documents: %w", err)
	}
	docs := make([]Document, 0, len(raw))
	for _, item := range raw {
		var d Document
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			return nil, fmt.Errorf("knowledge: decode document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// MemoryRepository keeps documents in process.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs []Document
}

func NewMemoryRepository(docs ...Document) *MemoryRepository {
	return &MemoryRepository{docs: append([]Document(nil), docs...)}
}

func (r *MemoryRepository) Replace(_ context.Context, docs []Document) error {
	r.mu.Lock()
	r.docs = append([]Document(nil), docs...)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Documents(_ context.Context) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Document(nil), r.docs...), nil
}
