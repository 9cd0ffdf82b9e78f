// Package vectorize builds a shared TF-IDF vector space over joined documents
// and provides cosine similarity between the resulting sparse vectors.
package vectorize

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern selects runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`\b\w\w+\b`)

// Term is one non-zero entry of a sparse vector.
type Term struct {
	Col    int
	Weight float64
}

// Vector is a sparse L2-normalized term-weight vector, entries sorted by
// ascending column. The sorted layout keeps every float accumulation in a
// fixed order, so fitting and scoring are bit-for-bit reproducible.
type Vector []Term

// Model is a TF-IDF model fitted once over a single corpus. The vocabulary is
// derived only from that corpus.
type Model struct {
	// Vocabulary maps a term to its column index; columns follow
	// lexicographic term order so fitting is deterministic.
	Vocabulary map[string]int
	// IDF holds the smoothed inverse document frequency per column:
	// ln((1+n)/(1+df)) + 1.
	IDF []float64
	// Vectors holds one normalized document vector per input document,
	// in corpus order.
	Vectors []Vector
}

// Fit tokenizes docs, builds the vocabulary and IDF weights, and returns the
// fitted model with one L2-normalized vector per document.
func Fit(docs []string) *Model {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		c := make(map[string]int)
		for _, tok := range Tokenize(doc) {
			c[tok]++
		}
		counts[i] = c
		for term := range c {
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(docs))
	for col, term := range terms {
		vocab[term] = col
		idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([]Vector, len(docs))
	for i, c := range counts {
		v := make(Vector, 0, len(c))
		for term, cnt := range c {
			col := vocab[term]
			v = append(v, Term{Col: col, Weight: float64(cnt) * idf[col]})
		}
		sort.Slice(v, func(a, b int) bool { return v[a].Col < v[b].Col })
		normalizeL2(v)
		vectors[i] = v
	}
	return &Model{Vocabulary: vocab, IDF: idf, Vectors: vectors}
}

// Tokenize lowercases text and returns its word tokens of length two or more.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
