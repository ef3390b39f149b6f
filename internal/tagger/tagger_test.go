package tagger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestKeyword_TopKByFrequency(t *testing.T) {
	k := NewKeyword(2)
	text := "kernel kernel kernel scheduler scheduler memory"
	tags, err := k.DeriveTags(context.Background(), text)
	if err != nil {
		t.Fatalf("DeriveTags: %v", err)
	}
	want := []string{"kernel", "scheduler"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestKeyword_Deterministic(t *testing.T) {
	k := NewKeyword(3)
	text := "alpha beta gamma alpha beta gamma"
	first, _ := k.DeriveTags(context.Background(), text)
	for i := 0; i < 5; i++ {
		again, _ := k.DeriveTags(context.Background(), text)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: tags = %v, want %v", i, again, first)
		}
	}
}

func TestKeyword_StopwordsAndShortTokens(t *testing.T) {
	k := NewKeyword(10)
	tags, _ := k.DeriveTags(context.Background(), "the and for a of kernel")
	if !reflect.DeepEqual(tags, []string{"kernel"}) {
		t.Errorf("tags = %v, want [kernel]", tags)
	}
}

func TestKeyword_EmptyText(t *testing.T) {
	k := NewKeyword(5)
	tags, err := k.DeriveTags(context.Background(), "")
	if err != nil {
		t.Fatalf("DeriveTags: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("Hello, World! go2 123 the kernel-panic")
	want := []string{"hello", "world", "go2", "kernel", "panic"}
	if !reflect.DeepEqual(toks, want) {
		t.Errorf("tokens = %v, want %v", toks, want)
	}
}

// fakeEmbeddings serves deterministic vectors: the document vector is
// fixed, and each candidate gets a vector whose similarity to the
// document increases with its position in the input batch being smaller.
func fakeEmbeddings(t *testing.T, fail *int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && *fail > 0 {
			*fail--
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type datum struct {
			Embedding []float64 `json:"embedding"`
		}
		out := struct {
			Data []datum `json:"data"`
		}{}
		for i := range req.Input {
			// Index 0 is the document. Later candidates point further
			// away from the document vector.
			angle := float64(i) * 0.2
			out.Data = append(out.Data, datum{Embedding: []float64{1, angle}})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func TestEmbedding_RanksByCosine(t *testing.T) {
	srv := httptest.NewServer(fakeEmbeddings(t, nil))
	defer srv.Close()

	e := NewEmbedding(srv.URL, "", "test-model", 2)
	tags, err := e.DeriveTags(context.Background(), "zebra zebra apple mango")
	if err != nil {
		t.Fatalf("DeriveTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2: %v", len(tags), tags)
	}
	// Candidates are ordered most-frequent-first (zebra, apple, mango);
	// the fake server makes earlier inputs more similar to the document.
	if tags[0] != "zebra" {
		t.Errorf("top tag = %q, want zebra", tags[0])
	}
}

func TestEmbedding_RetriesTransientFailure(t *testing.T) {
	fail := 1
	srv := httptest.NewServer(fakeEmbeddings(t, &fail))
	defer srv.Close()

	e := NewEmbedding(srv.URL, "", "test-model", 3)
	if _, err := e.DeriveTags(context.Background(), "alpha beta"); err != nil {
		t.Fatalf("DeriveTags after transient failure: %v", err)
	}
	if fail != 0 {
		t.Errorf("server failure budget not consumed: %d", fail)
	}
}

func TestEmbedding_NoCandidates(t *testing.T) {
	e := NewEmbedding("http://unused.invalid", "", "", 5)
	tags, err := e.DeriveTags(context.Background(), "a of it")
	if err != nil {
		t.Fatalf("DeriveTags: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want none (no network call)", tags)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float64{1, 0}, []float64{1, 0}); got != 1 {
		t.Errorf("identical vectors: cosine = %v, want 1", got)
	}
	if got := cosine([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: cosine = %v, want 0", got)
	}
	if got := cosine([]float64{1, 0}, []float64{0, 0}); got != 0 {
		t.Errorf("zero vector: cosine = %v, want 0", got)
	}
}
