package knowledge

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/wolfman30/agenda-assistant/internal/llm"
	"github.com/wolfman30/agenda-assistant/pkg/logging"
)

// EmbeddingRetriever ranks documents by cosine similarity between the query
// embedding and each document's embedding. Document vectors are cached by
// text, so a reseeded knowledge base only embeds what changed. When the
// embedding backend fails it falls back to keyword ranking.
type EmbeddingRetriever struct {
	repo     Repository
	embedder llm.Embedder
	logger   *logging.Logger

	mu      sync.Mutex
	vectors map[string][]float32
}

func NewEmbeddingRetriever(repo Repository, embedder llm.Embedder, logger *logging.Logger) *EmbeddingRetriever {
	if embedder == nil {
		panic("knowledge: embedder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmbeddingRetriever{
		repo:     repo,
		embedder: embedder,
		logger:   logger,
		vectors:  make(map[string][]float32),
	}
}

func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	docs, err := r.repo.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 || k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ranked, err := r.rank(ctx, docs, query, k)
	if err != nil {
		r.logger.Warn("embedding retrieval failed; using keyword ranking", "error", err)
		return RankByKeywords(docs, query, k), nil
	}
	return ranked, nil
}

func (r *EmbeddingRetriever) rank(ctx context.Context, docs []Document, query string, k int) ([]Document, error) {
	docVecs, err := r.documentVectors(ctx, docs)
	if err != nil {
		return nil, err
	}
	out, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.New("knowledge: query embedding missing")
	}
	queryVec := out[0]

	type scored struct {
		doc   Document
		score float64
	}
	results := make([]scored, len(docs))
	for i, d := range docs {
		results[i] = scored{doc: d, score: cosineSimilarity(queryVec, docVecs[i])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > k {
		results = results[:k]
	}
	ranked := make([]Document, len(results))
	for i, res := range results {
		ranked[i] = res.doc
	}
	return ranked, nil
}

// documentVectors returns one vector per doc, embedding only texts not seen
// before. Vectors of documents no longer in the knowledge base are dropped.
func (r *EmbeddingRetriever) documentVectors(ctx context.Context, docs []Document) ([][]float32, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text()
	}

	r.mu.Lock()
	var missing []string
	seen := make(map[string]struct{}, len(texts))
	for _, text := range texts {
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		if _, ok := r.vectors[text]; !ok {
			missing = append(missing, text)
		}
	}
	r.mu.Unlock()

	if len(missing) > 0 {
		vecs, err := r.embedder.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missing) {
			return nil, errors.New("knowledge: embedding response size mismatch")
		}
		r.mu.Lock()
		for i, text := range missing {
			r.vectors[text] = vecs[i]
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for text := range r.vectors {
		if _, ok := seen[text]; !ok {
			delete(r.vectors, text)
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = r.vectors[text]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
