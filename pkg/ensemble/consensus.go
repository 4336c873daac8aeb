package ensemble

import (
	"github.com/rhuss/consensus/pkg/structured"
)

// SimilarityFunc returns how alike two answers are, in [0, 1].
type SimilarityFunc func(a, b string) float64

// StructuralSimilarity compares answers by their JSON structure and leaf
// values (Jaccard over flattened path=value features). When either answer
// carries no JSON payload, word-token Jaccard is used instead.
func StructuralSimilarity(a, b string) float64 {
	return flatten(a).similarity(flatten(b))
}

// flattened is an answer reduced to the sets StructuralSimilarity compares.
type flattened struct {
	features map[string]struct{} // nil when the answer carries no JSON
	tokens   map[string]struct{}
}

func flatten(text string) flattened {
	f := flattened{tokens: structured.Tokens(text)}
	if v, ok := structured.Extract(text); ok {
		f.features = structured.Features(v)
	}
	return f
}

func (f flattened) similarity(o flattened) float64 {
	if f.features != nil && o.features != nil {
		return structured.Jaccard(f.features, o.features)
	}
	return structured.Jaccard(f.tokens, o.tokens)
}

// pairwise returns a similarity lookup over texts. With no custom function
// every text is flattened once up front rather than once per pair.
func pairwise(texts []string, sim SimilarityFunc) func(i, j int) float64 {
	if sim != nil {
		return func(i, j int) float64 { return sim(texts[i], texts[j]) }
	}
	flat := make([]flattened, len(texts))
	for i, t := range texts {
		flat[i] = flatten(t)
	}
	return func(i, j int) float64 { return flat[i].similarity(flat[j]) }
}

// selection is the outcome of reducing answers to one.
type selection struct {
	index     int
	agreement float64
}

// selectConsensus picks the answer with the highest mean similarity to the
// other answers. Ties go to the lowest index, which is configuration order.
// A single answer agrees with itself. A nil sim means StructuralSimilarity.
func selectConsensus(texts []string, sim SimilarityFunc) selection {
	n := len(texts)
	if n <= 1 {
		return selection{index: 0, agreement: 1}
	}

	score := pairwise(texts, sim)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := clamp(score(i, j))
			matrix[i][j] = s
			matrix[j][i] = s
		}
	}

	best := selection{index: -1, agreement: -1}
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if i != j {
				sum += matrix[i][j]
			}
		}
		mean := sum / float64(n-1)
		if mean > best.agreement {
			best = selection{index: i, agreement: mean}
		}
	}
	return best
}
