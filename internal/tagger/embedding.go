package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"
)

// Embedding tag derivation: embed the document and a set of candidate
// terms through an OpenAI-compatible /embeddings endpoint, then rank
// candidates by cosine similarity to the document vector.

const (
	maxCandidates   = 64
	maxDocRunes     = 2000
	defaultTimeout  = 30 * time.Second
	retryAttempts   = 3
	retryBaseDelay  = 100 * time.Millisecond
	retryMaxDelay   = 5 * time.Second
	retryMultiplier = 2.0
)

// Embedding calls a remote embedding model to rank candidate tags.
type Embedding struct {
	endpoint string
	apiKey   string
	model    string
	topK     int
	client   *http.Client
}

// NewEmbedding creates an embedding-backed tagger. endpoint is the full
// URL of an OpenAI-compatible embeddings endpoint; apiKey may be empty
// for unauthenticated local servers.
func NewEmbedding(endpoint, apiKey, model string, topK int) *Embedding {
	if topK <= 0 {
		topK = 5
	}
	return &Embedding{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		topK:     topK,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

// DeriveTags implements Tagger.
func (e *Embedding) DeriveTags(ctx context.Context, text string) ([]string, error) {
	doc := truncateRunes(text, maxDocRunes)
	candidates := candidateTerms(text, maxCandidates)
	if len(candidates) == 0 {
		return []string{}, nil
	}

	inputs := append([]string{doc}, candidates...)
	vectors, err := e.embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("tagger: embed: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("tagger: got %d vectors for %d inputs", len(vectors), len(inputs))
	}

	docVec := vectors[0]
	type scored struct {
		term  string
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{term: c, score: cosine(docVec, vectors[i+1])}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].term < ranked[j].term
	})

	n := e.topK
	if n > len(ranked) {
		n = len(ranked)
	}
	tags := make([]string, n)
	for i := 0; i < n; i++ {
		tags[i] = ranked[i].term
	}
	return tags, nil
}

type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// embed performs one batched embeddings call with bounded exponential
// backoff on failure.
func (e *Embedding) embed(ctx context.Context, inputs []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: inputs})
	if err != nil {
		return nil, err
	}

	return retryWithBackoff(ctx, func() ([][]float64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("embeddings endpoint returned %s", resp.Status)
		}

		var out embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}
		vectors := make([][]float64, len(out.Data))
		for i, d := range out.Data {
			vectors[i] = d.Embedding
		}
		return vectors, nil
	})
}

// retryWithBackoff retries fn with exponential backoff. Retries stop on
// context cancellation.
func retryWithBackoff[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := retryBaseDelay

	for attempt := 0; attempt < retryAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * retryMultiplier)
				if delay > retryMaxDelay {
					delay = retryMaxDelay
				}
			}
		}
	}
	return zero, lastErr
}

// candidateTerms returns up to limit distinct tokens from text, most
// frequent first, as candidates for embedding-based ranking.
func candidateTerms(text string, limit int) []string {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}
	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
