package knowledge

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "of": {}, "to": {}, "and": {}, "or": {},
	"do": {}, "does": {}, "you": {}, "i": {}, "me": {}, "my": {}, "what": {}, "how": {}, "in": {},
	"o": {}, "os": {}, "as": {}, "de": {}, "da": {}, "e": {}, "um": {}, "uma": {},
	"que": {}, "qual": {}, "para": {}, "com": {}, "no": {}, "na": {}, "voce": {}, "vcs": {},
}

// Retriever picks the documents most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// KeywordRetriever ranks the repository by keyword overlap. It serves the
// keyword-oracle mode, where no embedding model is configured.
type KeywordRetriever struct {
	repo Repository
}

func NewKeywordRetriever(repo Repository) *KeywordRetriever {
	return &KeywordRetriever{repo: repo}
}

func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	docs, err := r.repo.Documents(ctx)
	if err != nil {
		return nil, err
	}
	return RankByKeywords(docs, query, k), nil
}

// RankByKeywords returns up to k documents ranked by keyword overlap with
// query. Documents without any overlap are never returned.
func RankByKeywords(docs []Document, query string, k int) []Document {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}
	type scored struct {
		doc   Document
		score int
		index int
	}
	var ranked []scored
	for i, d := range docs {
		words := make(map[string]int)
		for w := range tokenize(d.Text()) {
			words[w]++
		}
		score := 0
		for t := range terms {
			if _, ok := words[t]; ok {
				score += 2
				if strings.Contains(strings.ToLower(fold(d.Topic)), t) {
					score++
				}
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{doc: d, score: score, index: i})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Document, len(ranked))
	for i, r := range ranked {
		out[i] = r.doc
	}
	return out
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(fold(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// fold strips diacritics so "preço" and "preco" match.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
