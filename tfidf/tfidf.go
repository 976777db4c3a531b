// Package tfidf implements the term-weight model shared by keyword extraction
// and gap analysis: raw term counts, smoothed inverse document frequency and
// L2-normalized rows, over a vocabulary capped by corpus frequency.
//
// A Model is fitted once over a complete corpus. Weights of different fits are
// not comparable because the feature axes depend on the whole corpus.
package tfidf

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	DefaultMaxFeatures = 1000
	roundScale         = 1e9
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

type Options struct {
	MaxFeatures int
	NGramMin    int
	NGramMax    int
	// StopWords are dropped before n-grams are built. Nil means the English set.
	StopWords map[string]struct{}
}

func DefaultOptions() Options {
	return Options{
		MaxFeatures: DefaultMaxFeatures,
		NGramMin:    1,
		NGramMax:    2,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = DefaultMaxFeatures
	}
	if o.NGramMin <= 0 {
		o.NGramMin = 1
	}
	if o.NGramMax < o.NGramMin {
		o.NGramMax = o.NGramMin
	}
	if o.StopWords == nil {
		o.StopWords = englishStopWords
	}
	return o
}

// Tokenize lowercases text and returns its word tokens, stop words removed.
func Tokenize(text string, stopWords map[string]struct{}) []string {
	if stopWords == nil {
		stopWords = englishStopWords
	}
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Terms returns the n-gram terms of text in order of appearance.
func Terms(text string, opts Options) []string {
	opts = opts.withDefaults()
	tokens := Tokenize(text, opts.StopWords)
	var terms []string
	for i := range tokens {
		for n := opts.NGramMin; n <= opts.NGramMax; n++ {
			if i+n > len(tokens) {
				break
			}
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

type Term struct {
	Term   string
	Weight float64
}

type Model struct {
	vocab []string
	index map[string]int
	idf   []float64
	rows  []map[int]float64
}

// Fit builds the model over docs. Empty documents get all-zero rows; a corpus
// without any term yields an empty vocabulary.
func Fit(docs []string, opts Options) *Model {
	opts = opts.withDefaults()

	counts := make([]map[string]int, len(docs))
	total := make(map[string]int)
	var order []string
	for i, doc := range docs {
		counts[i] = make(map[string]int)
		for _, term := range Terms(doc, opts) {
			if _, seen := total[term]; !seen {
				order = append(order, term)
			}
			total[term]++
			counts[i][term]++
		}
	}

	first := make(map[string]int, len(order))
	for i, term := range order {
		first[term] = i
	}
	if len(order) > opts.MaxFeatures {
		ranked := append([]string(nil), order...)
		sort.SliceStable(ranked, func(a, b int) bool {
			return total[ranked[a]] > total[ranked[b]]
		})
		ranked = ranked[:opts.MaxFeatures]
		sort.Slice(ranked, func(a, b int) bool {
			return first[ranked[a]] < first[ranked[b]]
		})
		order = ranked
	}

	m := &Model{
		vocab: order,
		index: make(map[string]int, len(order)),
		idf:   make([]float64, len(order)),
		rows:  make([]map[int]float64, len(docs)),
	}
	n := float64(len(docs))
	for i, term := range order {
		m.index[term] = i
		df := 0
		for _, c := range counts {
			if c[term] > 0 {
				df++
			}
		}
		m.idf[i] = math.Log((1+n)/(1+float64(df))) + 1
	}

	for d, c := range counts {
		row := make(map[int]float64, len(c))
		var norm float64
		for term, count := range c {
			idx, ok := m.index[term]
			if !ok {
				continue
			}
			w := float64(count) * m.idf[idx]
			row[idx] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for idx, w := range row {
				row[idx] = w / norm
			}
		}
		m.rows[d] = row
	}
	return m
}

// Vocabulary returns the fitted terms in order of first occurrence.
func (m *Model) Vocabulary() []string {
	return append([]string(nil), m.vocab...)
}

func (m *Model) Docs() int {
	return len(m.rows)
}

// Weight returns the weight of term in document doc, 0 when either is unknown.
func (m *Model) Weight(doc int, term string) float64 {
	if doc < 0 || doc >= len(m.rows) {
		return 0
	}
	idx, ok := m.index[term]
	if !ok {
		return 0
	}
	return m.rows[doc][idx]
}

// TopTerms returns up to n terms of doc with a positive weight, weight
// descending, ties broken by first occurrence in the corpus.
func (m *Model) TopTerms(doc, n int) []Term {
	if doc < 0 || doc >= len(m.rows) || n <= 0 {
		return nil
	}
	idxs := make([]int, 0, len(m.rows[doc]))
	for idx, w := range m.rows[doc] {
		if w > 0 {
			idxs = append(idxs, idx)
		}
	}
	row := m.rows[doc]
	sort.Slice(idxs, func(a, b int) bool {
		wa, wb := row[idxs[a]], row[idxs[b]]
		if wa != wb {
			return wa > wb
		}
		return idxs[a] < idxs[b]
	})
	if len(idxs) > n {
		idxs = idxs[:n]
	}
	out := make([]Term, len(idxs))
	for i, idx := range idxs {
		out[i] = Term{Term: m.vocab[idx], Weight: row[idx]}
	}
	return out
}

// Round fixes a weight to nine decimal places so serialized output does not
// depend on platform-specific float noise.
func Round(x float64) float64 {
	return math.Round(x*roundScale) / roundScale
}
