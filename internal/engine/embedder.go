package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/lucidmem/lucid/internal/store"
)

// Embedder generates vector embeddings for text. Failures never corrupt
// engine state; the retrieval pipeline recovers from them locally.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
	Dimensions() int
}

// ollamaMaxBatch caps inputs per request so a large regeneration backlog
// doesn't turn into one oversized request the provider rejects.
const ollamaMaxBatch = 32

// OllamaEmbedder uses Ollama's embedding API.
type OllamaEmbedder struct {
	url    string
	model  string
	dims   int
	client *http.Client
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
func NewOllamaEmbedder(url, model string, dims int) *OllamaEmbedder {
	return &OllamaEmbedder{
		url:    url,
		model:  model,
		dims:   dims,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OllamaEmbedder) Model() string   { return "ollama:" + o.model }
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

// Embed returns the unit vector for one text.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := o.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in chunks of ollamaMaxBatch and stitches the
// results back together in input order.
func (o *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaMaxBatch {
		end := start + ollamaMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := o.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// doEmbed performs one request against /api/embed and returns normalized
// vectors, one per input, all of the same dimensionality.
func (o *OllamaEmbedder) doEmbed(ctx context.Context, inputs []string) ([][]float64, error) {
	body, err := json.Marshal(struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: o.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed api: %w: %w", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed status %d: %s: %w", resp.StatusCode, respBody, ErrProviderFailure)
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs: %w",
			len(result.Embeddings), len(inputs), ErrProviderFailure)
	}

	dims := len(result.Embeddings[0])
	for i, vec := range result.Embeddings {
		if len(vec) != dims {
			return nil, fmt.Errorf("embedding %d has %d dims, batch has %d: %w",
				i, len(vec), dims, ErrProviderFailure)
		}
		Normalize(vec)
	}
	o.dims = dims
	return result.Embeddings, nil
}

// ProbeOllama reports whether Ollama is reachable at url and the model
// actually produces vectors — a 200 with an empty embedding list still means
// the model is unusable.
func ProbeOllama(url, model string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	probe := &OllamaEmbedder{url: url, model: model, client: &http.Client{}}
	vec, err := probe.Embed(ctx, "probe")
	return err == nil && len(vec) > 0
}

// gistStopwords are function words that carry no signal in memory gists.
// Gists are prose sentences, so without this the vocabulary fills up with
// articles and prepositions before any domain terms make the cut.
var gistStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "in": true, "is": true, "it": true, "its": true,
	"not": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "were": true, "with": true,
}

// gistTerms extracts the indexable terms from gist text: lowercase runs of
// letters, digits, hyphens and underscores, minus stopwords and single
// characters.
func gistTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})

	terms := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || gistStopwords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// TFIDFEmbedder is the offline fallback when no provider is reachable. Its
// vocabulary comes from the stored gists and tags, so similarity is only as
// good as what the store already knows — enough for recall, nothing more.
type TFIDFEmbedder struct {
	index map[string]int // term → vector position
	idf   []float64      // smoothed inverse document frequency per position
	dims  int
}

// NewTFIDFEmbedder builds a TF-IDF embedder over the store's gists and tags.
// Terms present in more than half the documents are dropped outright: in a
// memory store they are almost always the assistant's own boilerplate
// ("decided", "learned") and discriminate nothing.
func NewTFIDFEmbedder(db *store.DB, maxTerms int) (*TFIDFEmbedder, error) {
	if maxTerms <= 0 {
		maxTerms = 512
	}

	memories, err := db.ListMemories("", "")
	if err != nil {
		return nil, fmt.Errorf("list memories for tfidf: %w", err)
	}

	// One document per memory: its gist plus its tags. Tags are curated
	// signal and deserve vocabulary slots even when absent from the gist.
	df := make(map[string]int)
	numDocs := 0
	for _, m := range memories {
		doc := m.Gist
		if len(m.Tags) > 0 {
			doc += " " + strings.Join(m.Tags, " ")
		}
		terms := gistTerms(doc)
		if len(terms) == 0 {
			continue
		}
		numDocs++
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if !seen[term] {
				df[term]++
				seen[term] = true
			}
		}
	}

	type termFreq struct {
		term string
		freq int
	}
	candidates := make([]termFreq, 0, len(df))
	for term, freq := range df {
		if numDocs > 1 && freq*2 > numDocs {
			continue // ubiquitous term, no discriminating power
		}
		candidates = append(candidates, termFreq{term, freq})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].freq != candidates[j].freq {
			return candidates[i].freq > candidates[j].freq
		}
		return candidates[i].term < candidates[j].term
	})
	if len(candidates) > maxTerms {
		candidates = candidates[:maxTerms]
	}

	dims := len(candidates)
	if dims == 0 {
		dims = 1 // avoid zero-length vectors on an empty store
	}

	emb := &TFIDFEmbedder{
		index: make(map[string]int, len(candidates)),
		idf:   make([]float64, dims),
		dims:  dims,
	}
	n := float64(numDocs)
	if n == 0 {
		n = 1
	}
	for i, c := range candidates {
		emb.index[c.term] = i
		// Smoothed IDF: never zero, never infinite, even for df == numDocs.
		emb.idf[i] = math.Log((1+n)/(1+float64(c.freq))) + 1
	}
	return emb, nil
}

func (t *TFIDFEmbedder) Model() string   { return "tfidf" }
func (t *TFIDFEmbedder) Dimensions() int { return t.dims }

// Embed generates a normalized TF-IDF vector for the given text. Terms
// outside the vocabulary are ignored.
func (t *TFIDFEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, t.dims)

	counts := make(map[int]int)
	for _, term := range gistTerms(text) {
		if pos, ok := t.index[term]; ok {
			counts[pos]++
		}
	}
	for pos, count := range counts {
		// Log-scaled TF: a term repeated five times is not five times the
		// evidence.
		vec[pos] = (1 + math.Log(float64(count))) * t.idf[pos]
	}

	Normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (t *TFIDFEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := t.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}
